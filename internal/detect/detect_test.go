package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unfollowninja/internal/model"
)

type fakeStore struct {
	follow   map[string]int64
	detected map[string]int64
	err      error
}

func (f fakeStore) FollowTime(ctx context.Context, accountID, followerID string) (int64, error) {
	return f.follow[followerID], f.err
}

func (f fakeStore) FollowDetectedTime(ctx context.Context, accountID, followerID string) (int64, error) {
	return f.detected[followerID], f.err
}

func newTestDetector(s Store, now time.Time) *Detector {
	d := NewDetector(s, zap.NewNop())
	d.nowFn = func() time.Time { return now }
	return d
}

func eventIDs(events []model.FollowEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestDetectComputesBothDifferences(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	store := fakeStore{
		follow:   map[string]int64{"a": 1600000000000},
		detected: map[string]int64{"a": 1600000000100},
	}
	prev := model.NewFollowerSet([]string{"a", "b", "c"})
	cur := model.NewFollowerSet([]string{"c", "d"})

	diff, err := newTestDetector(store, now).Detect(context.Background(), "me", prev, cur)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, eventIDs(diff.Unfollowers))
	assert.Equal(t, []string{"d"}, diff.NewFollowers)
	assert.Equal(t, "User me has 1 new followers, and 2 unfollowers", diff.Recap)

	a := diff.Unfollowers[0]
	assert.Equal(t, int64(1600000000000), a.FollowTime)
	assert.Equal(t, int64(1600000000100), a.FollowDetectedTime)
	assert.Equal(t, now.UnixMilli(), a.UnfollowTime)

	b := diff.Unfollowers[1]
	assert.Zero(t, b.FollowTime, "unknown follow time must not fail")
	assert.Zero(t, b.FollowDetectedTime)
}

func TestDetectIsPure(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	d := newTestDetector(fakeStore{}, now)
	prev := model.NewFollowerSet([]string{"1", "2", "3", "4"})
	cur := model.NewFollowerSet([]string{"5", "6"})

	first, err := d.Detect(context.Background(), "me", prev, cur)
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), "me", prev, cur)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"1", "2", "3", "4"}, eventIDs(first.Unfollowers))
	assert.Equal(t, []string{"5", "6"}, first.NewFollowers)
}

func TestDetectEmptyPrevious(t *testing.T) {
	diff, err := newTestDetector(fakeStore{}, time.Now()).Detect(context.Background(), "me", model.FollowerSet{}, model.NewFollowerSet([]string{"1"}))
	require.NoError(t, err)
	assert.Empty(t, diff.Unfollowers)
	assert.Equal(t, []string{"1"}, diff.NewFollowers)
}

func TestDetectKeepsUnfollowAfterDetection(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	store := fakeStore{detected: map[string]int64{"a": now.UnixMilli() + 5000}}
	diff, err := newTestDetector(store, now).Detect(context.Background(), "me", model.NewFollowerSet([]string{"a"}), model.FollowerSet{})
	require.NoError(t, err)
	e := diff.Unfollowers[0]
	assert.GreaterOrEqual(t, e.UnfollowTime, e.FollowDetectedTime)
}

func TestDetectStoreFailure(t *testing.T) {
	boom := errors.New("db closed")
	_, err := newTestDetector(fakeStore{err: boom}, time.Now()).Detect(context.Background(), "me", model.NewFollowerSet([]string{"a"}), model.FollowerSet{})
	assert.ErrorIs(t, err, boom)
}
