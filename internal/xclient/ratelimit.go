package xclient

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// newDefaultLimiter creates a rate limiter using env overrides if present.
func newDefaultLimiter() *rate.Limiter {
	rps := 2.0
	burst := 10
	if v := os.Getenv("TWITTER_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("TWITTER_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// parseRateLimitHeaders reads the remaining quota and the reset time of the
// endpoint window. Remaining is -1 when the header is missing or invalid; the
// reset falls back to 15 minutes after now.
func parseRateLimitHeaders(h http.Header, now time.Time) (int, time.Time) {
	remaining := -1
	if v := h.Get("X-Rate-Limit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			remaining = n
		}
	}
	reset := now.Add(15 * time.Minute)
	if v := h.Get("X-Rate-Limit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			reset = time.Unix(ts, 0)
		}
	}
	return remaining, reset
}
