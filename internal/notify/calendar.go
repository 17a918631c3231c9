package notify

import (
	"math"
	"time"

	"golang.org/x/text/message"
)

// calendar describes t relative to the current day in the renderer's zone:
// today, yesterday, a weekday within the last week, or a plain date.
func (r *Renderer) calendar(p *message.Printer, pack langPack, t time.Time) string {
	t = t.In(r.loc)
	now := r.nowFn().In(r.loc)
	clock := t.Format(pack.timeLayout)
	weekday := pack.weekdays[t.Weekday()]

	switch d := dayDiff(t, now); {
	case d < -6:
		return t.Format(pack.dateLayout)
	case d < -1:
		return p.Sprintf(calLastWeek, weekday, clock)
	case d < 0:
		return p.Sprintf(calYesterday, clock)
	case d < 1:
		return p.Sprintf(calToday, clock)
	case d < 2:
		return p.Sprintf(calTomorrow, clock)
	case d < 7:
		return p.Sprintf(calNextWeek, weekday, clock)
	default:
		return t.Format(pack.dateLayout)
	}
}

// dayDiff is the number of calendar days from now's day to t's day.
func dayDiff(t, now time.Time) int {
	t0 := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	n0 := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Round(t0.Sub(n0).Hours() / 24))
}
