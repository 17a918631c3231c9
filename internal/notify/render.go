// Package notify renders classified unfollow events into one localized message.
package notify

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"unfollowninja/internal/model"
)

// Renderer formats notification messages. Language and time zone are explicit
// inputs; a Renderer holds no per-message state and is safe for concurrent use.
type Renderer struct {
	catalog *catalog.Builder
	loc     *time.Location
	nowFn   func() time.Time
}

// NewRenderer renders calendar times in loc, UTC when loc is nil.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{catalog: newCatalog(), loc: loc, nowFn: time.Now}
}

// Render returns the notification for events plus leftovers more unfollowers
// that were not classified. A single event renders as its own two lines; more
// get a header with the total count and one bullet each. Render returns ""
// when there is nothing to report.
func (r *Renderer) Render(events []model.FollowEvent, lang model.Lang, leftovers int) string {
	if len(events) == 0 && leftovers <= 0 {
		return ""
	}
	lang = ResolveLang(lang)
	pack := packs[lang]
	p := message.NewPrinter(pack.tag, message.Catalog(r.catalog))

	entries := make([]string, 0, len(events))
	for _, e := range events {
		entries = append(entries, r.action(p, e)+"\n"+r.followTime(p, pack, e))
	}
	if len(entries) == 1 {
		return entries[0]
	}

	var sb strings.Builder
	sb.WriteString(p.Sprintf(msgHeader, len(entries)+max(leftovers, 0)))
	for _, entry := range entries {
		sb.WriteString("\n  • ")
		sb.WriteString(entry)
	}
	if leftovers > 0 {
		sb.WriteString("\n • ")
		sb.WriteString(p.Sprintf(msgMore, leftovers))
	}
	return sb.String()
}

func (r *Renderer) action(p *message.Printer, e model.FollowEvent) string {
	username := p.Sprintf(msgSomeone)
	if e.Username != "" {
		username = "@" + e.Username
	}
	fate := e.Fate
	if fate == model.FateUndecided {
		fate = e.DecideFate()
	}
	switch fate {
	case model.FateSuspended:
		return p.Sprintf(msgSuspended, username, emojiSeeNoEvil)
	case model.FateDeleted:
		return p.Sprintf(msgDeleted, username, emojiSeeNoEvil)
	case model.FateBlockedBy:
		return p.Sprintf(msgBlockedBy, username, emojiNoEntry)
	case model.FateBlocking:
		return p.Sprintf(msgBlocking, username, strings.Repeat(emojiPoop, 3))
	default:
		emoji := emojiWave
		if e.Relationship.Following.IsTrue() {
			emoji = emojiBrokenHeart
		}
		return p.Sprintf(msgUnfollowed, username, emoji)
	}
}

func (r *Renderer) followTime(p *message.Printer, pack langPack, e model.FollowEvent) string {
	if e.FollowTime <= 0 {
		return p.Sprintf(msgBeforeSignup)
	}
	followed := time.UnixMilli(e.FollowTime)
	duration := humanize.CustomRelTime(followed, time.UnixMilli(e.UnfollowTime), "", "", pack.durations)
	return p.Sprintf(msgFollowedFor, duration, r.calendar(p, pack, followed))
}

// RateLimited tells the account owner how many minutes remain until the
// follower quota resets, rounded up and at least one.
func (r *Renderer) RateLimited(lang model.Lang, retryAfter time.Duration) string {
	p := message.NewPrinter(packs[ResolveLang(lang)].tag, message.Catalog(r.catalog))
	minutes := int((retryAfter + time.Minute - 1) / time.Minute)
	return p.Sprintf(msgRateLimited, max(minutes, 1))
}
