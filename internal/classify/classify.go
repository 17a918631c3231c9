// Package classify works out why each former follower disappeared and drops
// disappearances that are most likely transient.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"unfollowninja/internal/model"
	"unfollowninja/internal/xclient"
)

// MaxEvents bounds how many events one cycle classifies individually.
const MaxEvents = 50

// ErrLookupFailed wraps a failed batch user lookup.
var ErrLookupFailed = errors.New("user lookup failed")

type UserLookup interface {
	LookupUsers(ctx context.Context, ids []string) ([]model.User, error)
}

type RelationshipLookup interface {
	ShowFriendship(ctx context.Context, targetID string) (xclient.Friendship, error)
}

// UsernameCache returns "" with a nil error on a miss.
type UsernameCache interface {
	CachedUsername(ctx context.Context, id string) (string, error)
}

// Result holds the classified events and the ids beyond MaxEvents.
type Result struct {
	// Classified is every in-scope event with its fate decided.
	Classified []model.FollowEvent
	// Notify is Classified minus the noise.
	Notify []model.FollowEvent
	// Leftovers were counted but not looked up.
	Leftovers []string
}

// Classifier enriches unfollow events from the social graph.
type Classifier struct {
	users         UserLookup
	relationships RelationshipLookup
	cache         UsernameCache
	logger        *zap.Logger
	concurrency   int
	timeout       time.Duration
}

// NewClassifier builds a Classifier issuing at most concurrency relationship
// lookups at once, each bounded by timeout.
func NewClassifier(users UserLookup, relationships RelationshipLookup, cache UsernameCache, logger *zap.Logger, concurrency int, timeout time.Duration) *Classifier {
	if concurrency <= 0 {
		concurrency = 8
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Classifier{
		users:         users,
		relationships: relationships,
		cache:         cache,
		logger:        logger.Named("classifier"),
		concurrency:   concurrency,
		timeout:       timeout,
	}
}

// Classify enriches the first MaxEvents events. Only a failed batch user
// lookup fails the call; relationship and cache failures degrade single events.
func (c *Classifier) Classify(ctx context.Context, events []model.FollowEvent) (Result, error) {
	inScope := make([]model.FollowEvent, 0, min(len(events), MaxEvents))
	var leftovers []string
	for i, e := range events {
		if i < MaxEvents {
			inScope = append(inScope, e)
			continue
		}
		leftovers = append(leftovers, e.ID)
	}
	if len(inScope) == 0 {
		return Result{Leftovers: leftovers}, nil
	}

	if err := c.applyUserLookup(ctx, inScope); err != nil {
		return Result{}, err
	}
	c.applyRelationships(ctx, inScope)
	c.applyCachedUsernames(ctx, inScope)

	for i := range inScope {
		inScope[i].Fate = inScope[i].DecideFate()
	}

	notify := Filter(inScope)
	c.logger.Debug("Classified unfollowers",
		zap.Int("classified", len(inScope)),
		zap.Int("notify", len(notify)),
		zap.Int("leftovers", len(leftovers)),
		zap.Any("events", inScope))

	return Result{Classified: inScope, Notify: notify, Leftovers: leftovers}, nil
}

// applyUserLookup marks every event suspended, then clears the flag for the
// ids the batch lookup still returns.
func (c *Classifier) applyUserLookup(ctx context.Context, events []model.FollowEvent) error {
	ids := make([]string, len(events))
	for i := range events {
		events[i].Suspended = true
		ids[i] = events[i].ID
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	users, err := c.users.LookupUsers(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	byID := make(map[string]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range events {
		if u, ok := byID[events[i].ID]; ok {
			events[i].Suspended = false
			events[i].Username = u.Username
		}
	}
	return nil
}

type relationshipResult struct {
	index      int
	friendship xclient.Friendship
	err        error
}

// applyRelationships looks every event up concurrently. Each task reports its
// own error; none of them cancels the others.
func (c *Classifier) applyRelationships(ctx context.Context, events []model.FollowEvent) {
	p := pool.NewWithResults[relationshipResult]().WithMaxGoroutines(c.concurrency)
	for i := range events {
		id := events[i].ID
		p.Go(func() relationshipResult {
			ctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			f, err := c.relationships.ShowFriendship(ctx, id)
			return relationshipResult{index: i, friendship: f, err: err}
		})
	}

	for _, r := range p.Wait() {
		e := &events[r.index]
		if r.err != nil {
			e.FriendshipErrorCode = xclient.ErrorCode(r.err)
			if e.FriendshipErrorCode == xclient.CodeUserNotFound {
				e.Suspended = false
				e.Deleted = true
			}
			c.logger.Warn("Relationship lookup failed",
				zap.String("followerID", e.ID),
				zap.Int("code", e.FriendshipErrorCode),
				zap.Error(r.err))
			continue
		}
		e.Relationship = r.friendship.Relationship
		if e.Username == "" {
			e.Username = r.friendship.TargetUsername
		}
	}
}

func (c *Classifier) applyCachedUsernames(ctx context.Context, events []model.FollowEvent) {
	if c.cache == nil {
		return
	}
	for i := range events {
		if events[i].Username != "" {
			continue
		}
		name, err := c.cache.CachedUsername(ctx, events[i].ID)
		if err != nil {
			c.logger.Warn("Username cache lookup failed",
				zap.String("followerID", events[i].ID),
				zap.Error(err))
			continue
		}
		events[i].Username = name
	}
}
