// Package followers fetches the complete follower-id snapshot of an account.
package followers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"unfollowninja/internal/model"
	"unfollowninja/internal/xclient"
)

// Cursor sentinels of the followers/ids endpoint.
const (
	FirstCursor = "-1"
	LastCursor  = "0"
)

// ErrRateLimited matches every *RateLimitedError.
var ErrRateLimited = errors.New("rate limited")

// RateLimitedError reports that the endpoint quota is spent until Reset.
type RateLimitedError struct {
	RetryAfter time.Duration
	Reset      time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("followers/ids rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// IDSource returns one page of follower ids.
type IDSource interface {
	FollowerIDs(ctx context.Context, userID, cursor string) (xclient.IDPage, error)
}

// Fetcher pages through an IDSource under its rate-limit budget.
type Fetcher struct {
	source IDSource
	logger *zap.Logger
	nowFn  func() time.Time
}

func NewFetcher(source IDSource, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		logger: logger.Named("fetcher"),
		nowFn:  time.Now,
	}
}

// Fetch returns every follower id of userID as of now.
// Pages are requested one after the other. When the last page reported an
// exhausted quota the next request is not issued and a *RateLimitedError is
// returned instead. Transient failures are returned without retry.
func (f *Fetcher) Fetch(ctx context.Context, userID string) (model.FollowerSet, error) {
	var (
		ids       []string
		cursor    = FirstCursor
		remaining = -1
		reset     time.Time
		pages     int
	)
	for cursor != LastCursor {
		if remaining == 0 {
			return model.FollowerSet{}, f.rateLimited(reset)
		}
		page, err := f.source.FollowerIDs(ctx, userID, cursor)
		if err != nil {
			if isRateLimitResponse(err) {
				if !page.Reset.IsZero() {
					reset = page.Reset
				}
				return model.FollowerSet{}, f.rateLimited(reset)
			}
			return model.FollowerSet{}, fmt.Errorf("fetch followers page %d: %w", pages+1, err)
		}
		pages++
		ids = append(ids, page.IDs...)
		cursor = page.NextCursor
		if cursor == "" {
			cursor = LastCursor
		}
		remaining = page.Remaining
		reset = page.Reset
	}

	f.logger.Debug("Fetched follower snapshot",
		zap.String("userID", userID),
		zap.Int("pages", pages),
		zap.Int("followers", len(ids)),
		zap.Int("remaining", remaining))
	return model.NewFollowerSet(ids), nil
}

func (f *Fetcher) rateLimited(reset time.Time) error {
	now := f.nowFn()
	if reset.IsZero() {
		reset = now.Add(15 * time.Minute)
	}
	retry := reset.Sub(now)
	if retry < 0 {
		retry = 0
	}
	return &RateLimitedError{RetryAfter: retry, Reset: reset}
}

func isRateLimitResponse(err error) bool {
	var apiErr *xclient.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Code == xclient.CodeRateLimitExceeded
}
