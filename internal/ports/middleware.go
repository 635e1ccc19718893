package ports

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tavolo/tavolo/internal/ratelimiting"
	"github.com/tavolo/tavolo/internal/reporting"
)

func setRateLimitHeaders(header http.Header, limit int, decision ratelimiting.Decision) {
	header.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	header.Set("X-RateLimit-Reset", strconv.FormatInt(int64(math.Ceil(float64(decision.ResetAt.UnixMilli())/1000)), 10))
}

// Whole seconds until resetAt, at least one
func retryAfterSeconds(resetAt time.Time, now time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	return max(seconds, 1)
}

func NewRateLimitMiddleware(limiter *ratelimiting.SlidingWindowLimiter, keyFunc func(r *http.Request) string, nowFunc func() time.Time) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			decision, err := limiter.Check(ctx, keyFunc(r))
			if err != nil {
				reporting.Report(ctx, fmt.Errorf("failed to check rate limit %s: %w", limiter.Name(), err))
				next(w, r)
				return
			}

			setRateLimitHeaders(w.Header(), limiter.Limit(), decision)

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.ResetAt, nowFunc())))
				writeErrorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}
