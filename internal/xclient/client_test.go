package xclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unfollowninja/internal/model"
)

// newTestClient points a client at ts with fixed signing inputs.
func newTestClient(ts *httptest.Server) *Client {
	c := NewClient(Credentials{ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as"}, time.Second)
	c.httpClient = ts.Client()
	c.baseURL = ts.URL
	c.nowFn = func() time.Time { return time.Unix(1700000000, 0) }
	c.nonceFn = func() string { return "nonce" }
	return c
}

func TestFollowerIDsParsesPageAndRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, endpointFollowerIDs, r.URL.Path)
		assert.Equal(t, "-1", r.URL.Query().Get("cursor"))
		assert.Equal(t, "true", r.URL.Query().Get("stringify_ids"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "))
		w.Header().Set("X-Rate-Limit-Remaining", "14")
		w.Header().Set("X-Rate-Limit-Reset", "1700000900")
		_, _ = w.Write([]byte(`{"ids":["1","2","3"],"next_cursor_str":"0"}`))
	}))
	defer ts.Close()

	page, err := newTestClient(ts).FollowerIDs(context.Background(), "", "-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, page.IDs)
	assert.Equal(t, "0", page.NextCursor)
	assert.Equal(t, 14, page.Remaining)
	assert.Equal(t, time.Unix(1700000900, 0), page.Reset)
}

func TestFollowerIDsMissingRateLimitHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ids":[],"next_cursor_str":"0"}`))
	}))
	defer ts.Close()

	page, err := newTestClient(ts).FollowerIDs(context.Background(), "", "-1")
	require.NoError(t, err)
	assert.Equal(t, -1, page.Remaining)
}

func TestFollowerIDsRateLimitedKeepsReset(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rate-Limit-Remaining", "0")
		w.Header().Set("X-Rate-Limit-Reset", "1700000120")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`))
	}))
	defer ts.Close()

	page, err := newTestClient(ts).FollowerIDs(context.Background(), "", "-1")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeRateLimitExceeded))
	assert.Equal(t, 0, page.Remaining)
	assert.Equal(t, time.Unix(1700000120, 0), page.Reset)
}

func TestFollowerIDsServerErrorHasNoReset(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	page, err := newTestClient(ts).FollowerIDs(context.Background(), "", "-1")
	require.Error(t, err)
	assert.Equal(t, -1, page.Remaining)
	assert.True(t, page.Reset.IsZero())
}

func TestLookupUsers(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1,2", r.URL.Query().Get("user_id"))
		_, _ = w.Write([]byte(`[{"id_str":"1","screen_name":"alice","name":"Alice"}]`))
	}))
	defer ts.Close()

	users, err := newTestClient(ts).LookupUsers(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []model.User{{ID: "1", Username: "alice", Name: "Alice"}}, users)
}

func TestLookupUsersNoMatchesIsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"code":17,"message":"No user matches for specified terms."}]}`))
	}))
	defer ts.Close()

	users, err := newTestClient(ts).LookupUsers(context.Background(), []string{"9"})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestLookupUsersServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).LookupUsers(context.Background(), []string{"9"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestShowFriendship(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("target_id"))
		_, _ = w.Write([]byte(`{"relationship":{"source":{"blocking":false,"blocked_by":true,"following":true},"target":{"screen_name":"bob"}}}`))
	}))
	defer ts.Close()

	f, err := newTestClient(ts).ShowFriendship(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "bob", f.TargetUsername)
	assert.Equal(t, model.False, f.Relationship.Blocking)
	assert.Equal(t, model.True, f.Relationship.BlockedBy)
	assert.Equal(t, model.True, f.Relationship.Following)
	assert.Equal(t, model.Unknown, f.Relationship.FollowedBy)
}

func TestShowFriendshipUserNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"code":50,"message":"User not found."}]}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts).ShowFriendship(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeUserNotFound))
	assert.Equal(t, CodeUserNotFound, ErrorCode(err))
}

func TestCallsTimeOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.timeout = 50 * time.Millisecond
	_, err := c.ShowFriendship(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, 0, ErrorCode(err))
}
