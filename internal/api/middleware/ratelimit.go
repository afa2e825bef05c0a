package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/fetchstore/internal/api/shared"
	"golang.org/x/time/rate"
)

// ErrRateLimited is logged when a request is rejected by RateLimiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter rejects requests beyond a token bucket shared by all callers.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perSecond requests on average with bursts of up to
// burst requests.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Limit wraps next; rejected requests get 429 with a Retry-After header.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := l.limiter.Reserve()
		if !reservation.OK() {
			shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests,
				"Too many requests", ErrRateLimited)
			return
		}

		if delay := reservation.Delay(); delay > 0 {
			// Give the token back; the caller retries later.
			reservation.Cancel()
			w.Header().Set("Retry-After", retryAfterSeconds(delay))
			shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests,
				"Too many requests", ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
