package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"phishguard/internal/api/respond"
	"phishguard/pkg/errors"
)

// RateLimit admits requests through a process-wide token bucket and answers
// 429 when it is empty. A nil limiter disables limiting.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				respond.JSON(w, http.StatusTooManyRequests, respond.ErrorBody{
					Detail: "Rate limit exceeded",
					Error:  errors.ErrRateLimitExceeded.Error(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one listed is the outermost
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
