package classify

import (
	"time"

	"unfollowninja/internal/model"
)

const (
	// DeletedGrace is the follow age under which a deleted account counts as a glitch.
	DeletedGrace = 24 * time.Hour
	// MinFollowAge is the follow age at or under which an unfollow is ignored.
	MinFollowAge = 7 * time.Minute
)

// IsNoise reports whether an unfollow event should not be notified.
func IsNoise(e model.FollowEvent) bool {
	age := e.FollowAge()
	switch {
	case e.Relationship.FollowedBy.IsTrue():
		return true
	case e.Deleted && age < DeletedGrace:
		return true
	case age <= MinFollowAge:
		return true
	}
	return false
}

// Filter returns the events that are not noise, preserving order.
func Filter(events []model.FollowEvent) []model.FollowEvent {
	out := make([]model.FollowEvent, 0, len(events))
	for _, e := range events {
		if !IsNoise(e) {
			out = append(out, e)
		}
	}
	return out
}
