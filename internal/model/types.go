package model

import (
	"sort"
	"time"
)

// User represents the subset of Twitter user fields the checker needs.
type User struct {
	ID       string
	Username string
	Name     string
}

// Lang is a notification language code such as "en" or "fr".
type Lang string

const (
	LangEnglish Lang = "en"
	LangFrench  Lang = "fr"
)

// FollowerSet is the complete follower-id set of an account at one point in time.
// The zero value is an empty set. A FollowerSet is never modified after construction.
type FollowerSet struct {
	ids map[string]struct{}
}

// NewFollowerSet builds a set from ids, dropping duplicates and empty ids.
func NewFollowerSet(ids []string) FollowerSet {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		m[id] = struct{}{}
	}
	return FollowerSet{ids: m}
}

func (s FollowerSet) Len() int { return len(s.ids) }

func (s FollowerSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the ids in ascending order.
func (s FollowerSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Difference returns the ids of s that are not in other, in ascending order.
func (s FollowerSet) Difference(other FollowerSet) []string {
	out := make([]string, 0)
	for id := range s.ids {
		if !other.Has(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Tristate is a boolean that may be unknown.
type Tristate int8

const (
	Unknown Tristate = iota
	False
	True
)

// TristateOf converts a known boolean.
func TristateOf(b bool) Tristate {
	if b {
		return True
	}
	return False
}

func (t Tristate) IsTrue() bool { return t == True }

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Relationship is the source account's relationship to a former follower.
type Relationship struct {
	Blocking   Tristate
	BlockedBy  Tristate
	Following  Tristate
	FollowedBy Tristate
}

// Fate is the reason a follower disappeared.
type Fate int

const (
	FateUndecided Fate = iota
	FateSuspended
	FateDeleted
	FateBlockedBy
	FateBlocking
	FateUnfollowed
)

func (f Fate) String() string {
	switch f {
	case FateSuspended:
		return "suspended"
	case FateDeleted:
		return "deleted"
	case FateBlockedBy:
		return "blocked_by"
	case FateBlocking:
		return "blocking"
	case FateUnfollowed:
		return "unfollowed"
	default:
		return "undecided"
	}
}

// FollowEvent describes one follower that disappeared since the previous snapshot.
// Times are epoch milliseconds; zero means unknown.
type FollowEvent struct {
	ID                 string
	FollowTime         int64
	UnfollowTime       int64
	FollowDetectedTime int64

	Username     string
	Suspended    bool
	Deleted      bool
	Relationship Relationship
	// FriendshipErrorCode is the API error code of a failed relationship lookup, 0 if none.
	FriendshipErrorCode int
	Fate                Fate
}

// FollowAge is the time between the follow being first recorded and the unfollow.
func (e FollowEvent) FollowAge() time.Duration {
	return time.Duration(e.UnfollowTime-e.FollowDetectedTime) * time.Millisecond
}

// DecideFate resolves the event's fate with first-match priority
// suspended, deleted, blocked by, blocking, unfollowed.
func (e FollowEvent) DecideFate() Fate {
	switch {
	case e.Suspended:
		return FateSuspended
	case e.Deleted:
		return FateDeleted
	case e.Relationship.BlockedBy.IsTrue():
		return FateBlockedBy
	case e.Relationship.Blocking.IsTrue():
		return FateBlocking
	default:
		return FateUnfollowed
	}
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }
