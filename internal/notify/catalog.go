package notify

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"

	"unfollowninja/internal/model"
)

// Message keys. The English text doubles as the key.
const (
	msgSuspended    = "%[1]s has been suspended %[2]s."
	msgDeleted      = "%[1]s has left Twitter %[2]s."
	msgBlockedBy    = "%[1]s blocked you %[2]s."
	msgBlocking     = "You blocked %[1]s %[2]s."
	msgUnfollowed   = "%[1]s unfollowed you %[2]s."
	msgFollowedFor  = "This account followed you for %[1]s (%[2]s)."
	msgBeforeSignup = "This account followed you before you signed up to @unfollowninja!"
	msgSomeone      = "one of your followers"
	msgHeader       = "%d twitter users unfollowed you:"
	msgMore         = "and %d more."
	msgRateLimited  = "Twitter rate limit reached, next check possible in %d minutes."

	calToday     = "Today at %[1]s"
	calYesterday = "Yesterday at %[1]s"
	calLastWeek  = "Last %[1]s at %[2]s"
	calTomorrow  = "Tomorrow at %[1]s"
	calNextWeek  = "%[1]s at %[2]s"
)

const (
	emojiSeeNoEvil   = "🙈"
	emojiNoEntry     = "⛔"
	emojiPoop        = "💩"
	emojiBrokenHeart = "💔"
	emojiWave        = "👋"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

// langPack holds the formatting data x/text does not provide.
type langPack struct {
	tag        language.Tag
	timeLayout string
	dateLayout string
	weekdays   [7]string
	durations  []humanize.RelTimeMagnitude
}

var packs = map[model.Lang]langPack{
	model.LangEnglish: {
		tag:        language.English,
		timeLayout: "3:04 PM",
		dateLayout: "01/02/2006",
		weekdays:   [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		durations: []humanize.RelTimeMagnitude{
			{D: 45 * time.Second, Format: "a few seconds", DivBy: time.Second},
			{D: 2 * time.Minute, Format: "a minute", DivBy: time.Second},
			{D: time.Hour, Format: "%d minutes", DivBy: time.Minute},
			{D: 2 * time.Hour, Format: "an hour", DivBy: time.Minute},
			{D: day, Format: "%d hours", DivBy: time.Hour},
			{D: 2 * day, Format: "a day", DivBy: time.Hour},
			{D: month, Format: "%d days", DivBy: day},
			{D: 2 * month, Format: "a month", DivBy: day},
			{D: year, Format: "%d months", DivBy: month},
			{D: 2 * year, Format: "a year", DivBy: day},
			{D: math.MaxInt64, Format: "%d years", DivBy: year},
		},
	},
	model.LangFrench: {
		tag:        language.French,
		timeLayout: "15:04",
		dateLayout: "02/01/2006",
		weekdays:   [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
		durations: []humanize.RelTimeMagnitude{
			{D: 45 * time.Second, Format: "quelques secondes", DivBy: time.Second},
			{D: 2 * time.Minute, Format: "une minute", DivBy: time.Second},
			{D: time.Hour, Format: "%d minutes", DivBy: time.Minute},
			{D: 2 * time.Hour, Format: "une heure", DivBy: time.Minute},
			{D: day, Format: "%d heures", DivBy: time.Hour},
			{D: 2 * day, Format: "un jour", DivBy: time.Hour},
			{D: month, Format: "%d jours", DivBy: day},
			{D: 2 * month, Format: "un mois", DivBy: day},
			{D: year, Format: "%d mois", DivBy: month},
			{D: 2 * year, Format: "un an", DivBy: day},
			{D: math.MaxInt64, Format: "%d ans", DivBy: year},
		},
	},
}

// DefaultLang is used for any language without a pack.
const DefaultLang = model.LangEnglish

var matcher = language.NewMatcher([]language.Tag{language.English, language.French})

// ResolveLang maps a user language code onto a supported language.
func ResolveLang(lang model.Lang) model.Lang {
	tag, err := language.Parse(string(lang))
	if err != nil {
		return DefaultLang
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLang
	}
	switch idx {
	case 1:
		return model.LangFrench
	default:
		return model.LangEnglish
	}
}

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	en := map[string]string{
		msgSuspended:    msgSuspended,
		msgDeleted:      msgDeleted,
		msgBlockedBy:    msgBlockedBy,
		msgBlocking:     msgBlocking,
		msgUnfollowed:   msgUnfollowed,
		msgFollowedFor:  msgFollowedFor,
		msgBeforeSignup: msgBeforeSignup,
		msgSomeone:      msgSomeone,
		msgMore:         msgMore,
		calToday:        calToday,
		calYesterday:    calYesterday,
		calLastWeek:     calLastWeek,
		calTomorrow:     calTomorrow,
		calNextWeek:     calNextWeek,
	}
	fr := map[string]string{
		msgSuspended:    "%[1]s a été suspendu %[2]s.",
		msgDeleted:      "%[1]s a quitté Twitter %[2]s.",
		msgBlockedBy:    "%[1]s vous a bloqué %[2]s.",
		msgBlocking:     "Vous avez bloqué %[1]s %[2]s.",
		msgUnfollowed:   "%[1]s ne vous suit plus %[2]s.",
		msgFollowedFor:  "Ce compte vous a suivi pendant %[1]s (%[2]s).",
		msgBeforeSignup: "Ce compte vous suivait avant votre inscription à @unfollowninja !",
		msgSomeone:      "un de vos abonnés",
		msgMore:         "et %d de plus.",
		calToday:        "Aujourd’hui à %[1]s",
		calYesterday:    "Hier à %[1]s",
		calLastWeek:     "%[1]s dernier à %[2]s",
		calTomorrow:     "Demain à %[1]s",
		calNextWeek:     "%[1]s à %[2]s",
	}
	for k, v := range en {
		_ = b.SetString(language.English, k, v)
	}
	for k, v := range fr {
		_ = b.SetString(language.French, k, v)
	}

	_ = b.Set(language.English, msgHeader, plural.Selectf(1, "%d",
		plural.One, "%d twitter user unfollowed you:",
		plural.Other, "%d twitter users unfollowed you:"))
	_ = b.Set(language.French, msgHeader, plural.Selectf(1, "%d",
		plural.One, "%d utilisateur de twitter ne vous suit plus :",
		plural.Other, "%d utilisateurs de twitter ne vous suivent plus :"))
	_ = b.Set(language.English, msgRateLimited, plural.Selectf(1, "%d",
		plural.One, "Twitter rate limit reached, next check possible in %d minute.",
		plural.Other, "Twitter rate limit reached, next check possible in %d minutes."))
	_ = b.Set(language.French, msgRateLimited, plural.Selectf(1, "%d",
		plural.One, "Limite de l’API Twitter atteinte, prochaine vérification possible dans %d minute.",
		plural.Other, "Limite de l’API Twitter atteinte, prochaine vérification possible dans %d minutes."))
	return b
}
