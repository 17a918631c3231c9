// Package detect diffs two follower snapshots into unfollow events.
package detect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"unfollowninja/internal/model"
)

// Store exposes the per-follower timestamps recorded by earlier cycles.
// Both methods return 0 with a nil error when the follow predates tracking.
type Store interface {
	FollowTime(ctx context.Context, accountID, followerID string) (int64, error)
	FollowDetectedTime(ctx context.Context, accountID, followerID string) (int64, error)
}

// Diff is the outcome of comparing two snapshots.
type Diff struct {
	Unfollowers  []model.FollowEvent
	NewFollowers []string
	Recap        string
}

// Detector computes Diffs. It never writes to the store.
type Detector struct {
	store  Store
	logger *zap.Logger
	nowFn  func() time.Time
}

func NewDetector(store Store, logger *zap.Logger) *Detector {
	return &Detector{store: store, logger: logger.Named("detector"), nowFn: time.Now}
}

// Detect returns previous-current as unfollow events stamped with the
// detection time, and current-previous as new follower ids.
func (d *Detector) Detect(ctx context.Context, accountID string, previous, current model.FollowerSet) (Diff, error) {
	unfollowerIDs := previous.Difference(current)
	newFollowers := current.Difference(previous)
	now := model.Millis(d.nowFn())

	events := make([]model.FollowEvent, 0, len(unfollowerIDs))
	for _, id := range unfollowerIDs {
		followTime, err := d.store.FollowTime(ctx, accountID, id)
		if err != nil {
			return Diff{}, fmt.Errorf("follow time of %s: %w", id, err)
		}
		detected, err := d.store.FollowDetectedTime(ctx, accountID, id)
		if err != nil {
			return Diff{}, fmt.Errorf("follow detected time of %s: %w", id, err)
		}
		if detected > now {
			detected = now
		}
		events = append(events, model.FollowEvent{
			ID:                 id,
			FollowTime:         followTime,
			UnfollowTime:       now,
			FollowDetectedTime: detected,
		})
	}

	recap := fmt.Sprintf("User %s has %d new followers, and %d unfollowers", accountID, len(newFollowers), len(events))
	d.logger.Debug(recap)
	return Diff{Unfollowers: events, NewFollowers: newFollowers, Recap: recap}, nil
}
