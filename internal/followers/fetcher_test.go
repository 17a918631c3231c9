package followers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unfollowninja/internal/xclient"
)

type fakeSource struct {
	pages   map[string]xclient.IDPage
	errs    map[string]error
	cursors []string
}

func (f *fakeSource) FollowerIDs(ctx context.Context, userID, cursor string) (xclient.IDPage, error) {
	f.cursors = append(f.cursors, cursor)
	if err := f.errs[cursor]; err != nil {
		return f.pages[cursor], err
	}
	return f.pages[cursor], nil
}

func newTestFetcher(src IDSource, now time.Time) *Fetcher {
	f := NewFetcher(src, zap.NewNop())
	f.nowFn = func() time.Time { return now }
	return f
}

func TestFetchFollowsCursorToTheEnd(t *testing.T) {
	now := time.Unix(1700000000, 0)
	src := &fakeSource{pages: map[string]xclient.IDPage{
		"-1": {IDs: []string{"1", "2"}, NextCursor: "c2", Remaining: 10, Reset: now.Add(time.Minute)},
		"c2": {IDs: []string{"3"}, NextCursor: "c3", Remaining: 9, Reset: now.Add(time.Minute)},
		"c3": {IDs: []string{"4", "2"}, NextCursor: "0", Remaining: 8, Reset: now.Add(time.Minute)},
	}}

	set, err := newTestFetcher(src, now).Fetch(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, set.IDs())
	assert.Equal(t, []string{"-1", "c2", "c3"}, src.cursors)
}

func TestFetchStopsWhenQuotaIsExhausted(t *testing.T) {
	now := time.Unix(1700000000, 0)
	src := &fakeSource{pages: map[string]xclient.IDPage{
		"-1": {IDs: []string{"1"}, NextCursor: "c2", Remaining: 0, Reset: now.Add(10 * time.Minute)},
		"c2": {IDs: []string{"2"}, NextCursor: "0", Remaining: 5},
	}}

	_, err := newTestFetcher(src, now).Fetch(context.Background(), "me")
	require.ErrorIs(t, err, ErrRateLimited)
	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 10*time.Minute, rl.RetryAfter)
	assert.Equal(t, []string{"-1"}, src.cursors, "no request may follow an exhausted quota")
}

func TestFetchLastPageWithZeroQuotaSucceeds(t *testing.T) {
	now := time.Unix(1700000000, 0)
	src := &fakeSource{pages: map[string]xclient.IDPage{
		"-1": {IDs: []string{"1"}, NextCursor: "0", Remaining: 0, Reset: now.Add(time.Minute)},
	}}

	set, err := newTestFetcher(src, now).Fetch(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestFetchSurfacesErrorsWithoutRetry(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{
		pages: map[string]xclient.IDPage{"-1": {IDs: []string{"1"}, NextCursor: "c2", Remaining: 3}},
		errs:  map[string]error{"c2": boom},
	}

	_, err := newTestFetcher(src, time.Now()).Fetch(context.Background(), "me")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"-1", "c2"}, src.cursors)
}

func TestFetchMapsTooManyRequests(t *testing.T) {
	now := time.Unix(1700000000, 0)
	src := &fakeSource{errs: map[string]error{"-1": &xclient.APIError{Status: http.StatusTooManyRequests, Code: xclient.CodeRateLimitExceeded}}}

	_, err := newTestFetcher(src, now).Fetch(context.Background(), "me")
	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 15*time.Minute, rl.RetryAfter)
}

func TestFetchUsesResetOfRejectedPage(t *testing.T) {
	now := time.Unix(1700000000, 0)
	src := &fakeSource{
		pages: map[string]xclient.IDPage{"-1": {Remaining: 0, Reset: now.Add(2 * time.Minute)}},
		errs:  map[string]error{"-1": &xclient.APIError{Status: http.StatusTooManyRequests, Code: xclient.CodeRateLimitExceeded}},
	}

	_, err := newTestFetcher(src, now).Fetch(context.Background(), "me")
	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 2*time.Minute, rl.RetryAfter)
	assert.Equal(t, now.Add(2*time.Minute), rl.Reset)
}
