package xclient

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"unfollowninja/internal/metrics"
	"unfollowninja/internal/model"
)

const (
	endpointFollowerIDs = "/followers/ids.json"
	endpointUsersLookup = "/users/lookup.json"
	endpointFriendship  = "/friendships/show.json"

	// MaxLookupIDs is the largest id batch users/lookup accepts.
	MaxLookupIDs = 100
)

// Credentials are the OAuth 1.0a user-context keys of the tracked account.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// IDPage is one page of follower ids.
type IDPage struct {
	IDs        []string
	NextCursor string
	// Remaining is the x-rate-limit-remaining header, -1 when absent.
	Remaining int
	Reset     time.Time
}

// Client is an OAuth 1.0a client for the Twitter v1.1 REST API.
// It never retries: failed calls are returned to the caller.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	nowFn      func() time.Time
	nonceFn    func() string
}

func NewClient(creds Credentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = time.Duration(getEnvInt("TWITTER_API_TIMEOUT_MS", 15000)) * time.Millisecond
	}
	return &Client{
		baseURL:    "https://api.twitter.com/1.1",
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newDefaultLimiter(),
		timeout:    timeout,
		nowFn:      time.Now,
		nonceFn:    func() string { return strconv.FormatInt(rand.Int63(), 36) },
	}
}

// FollowerIDs returns one page of the authenticated account's follower ids.
func (c *Client) FollowerIDs(ctx context.Context, userID, cursor string) (IDPage, error) {
	params := map[string]string{
		"cursor":        cursor,
		"stringify_ids": "true",
		"count":         "5000",
	}
	if userID != "" {
		params["user_id"] = userID
	}
	body, hdr, err := c.get(ctx, endpointFollowerIDs, params)
	if err != nil {
		// a rejected page still carries the window reset
		page := IDPage{Remaining: -1}
		if hdr.Get("X-Rate-Limit-Reset") != "" {
			page.Remaining, page.Reset = parseRateLimitHeaders(hdr, c.nowFn())
		}
		return page, err
	}
	var raw struct {
		IDs           []string `json:"ids"`
		NextCursorStr string   `json:"next_cursor_str"`
	}
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return IDPage{}, fmt.Errorf("decode followers/ids: %w", err)
	}
	remaining, reset := parseRateLimitHeaders(hdr, c.nowFn())
	return IDPage{
		IDs:        raw.IDs,
		NextCursor: raw.NextCursorStr,
		Remaining:  remaining,
		Reset:      reset,
	}, nil
}

// LookupUsers fetches users for up to MaxLookupIDs ids in one request.
// Ids missing from the result no longer exist on the network or are suspended.
func (c *Client) LookupUsers(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxLookupIDs {
		ids = ids[:MaxLookupIDs]
	}
	body, _, err := c.get(ctx, endpointUsersLookup, map[string]string{
		"user_id":          strings.Join(ids, ","),
		"include_entities": "false",
	})
	if err != nil {
		// users/lookup answers 404 when none of the ids matched
		if IsCode(err, CodeNoUserMatches) {
			return []model.User{}, nil
		}
		return nil, err
	}
	var raw []struct {
		IDStr      string `json:"id_str"`
		ScreenName string `json:"screen_name"`
		Name       string `json:"name"`
	}
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode users/lookup: %w", err)
	}
	out := make([]model.User, 0, len(raw))
	for _, u := range raw {
		out = append(out, model.User{ID: u.IDStr, Username: u.ScreenName, Name: u.Name})
	}
	return out, nil
}

// Friendship is the result of friendships/show for the authenticated account.
type Friendship struct {
	Relationship   model.Relationship
	TargetUsername string
}

// ShowFriendship returns the relationship between the authenticated account and targetID.
func (c *Client) ShowFriendship(ctx context.Context, targetID string) (Friendship, error) {
	body, _, err := c.get(ctx, endpointFriendship, map[string]string{"target_id": targetID})
	if err != nil {
		return Friendship{}, err
	}
	var raw struct {
		Relationship struct {
			Source struct {
				Blocking   *bool `json:"blocking"`
				BlockedBy  *bool `json:"blocked_by"`
				Following  *bool `json:"following"`
				FollowedBy *bool `json:"followed_by"`
			} `json:"source"`
			Target struct {
				ScreenName string `json:"screen_name"`
			} `json:"target"`
		} `json:"relationship"`
	}
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return Friendship{}, fmt.Errorf("decode friendships/show: %w", err)
	}
	src := raw.Relationship.Source
	return Friendship{
		Relationship: model.Relationship{
			Blocking:   tristate(src.Blocking),
			BlockedBy:  tristate(src.BlockedBy),
			Following:  tristate(src.Following),
			FollowedBy: tristate(src.FollowedBy),
		},
		TargetUsername: raw.Relationship.Target.ScreenName,
	}, nil
}

func tristate(b *bool) model.Tristate {
	if b == nil {
		return model.Unknown
	}
	return model.TristateOf(*b)
}

// get performs a signed GET and returns the body of a successful response.
// Non-2xx responses are returned as *APIError.
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + endpoint + "?" + encodeQuery(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, err
	}
	c.oauth1Sign(req, params)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncAPIError(endpoint)
		return nil, nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncAPIError(endpoint)
		return nil, nil, fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	if resp.StatusCode >= 400 {
		metrics.IncAPIError(endpoint)
		return nil, resp.Header, parseAPIError(resp.StatusCode, body)
	}
	return body, resp.Header, nil
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
