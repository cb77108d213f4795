// Package shield provides the HTTP middleware stack of the speakdown API:
// security headers, request body limits, HEAD handling and per-client rate
// limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack(shield.Config{MaxBodyBytes: 32 << 20, RatePerMinute: 120}) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"
	"time"
)

// Config selects the middleware of Stack.
type Config struct {
	// MaxBodyBytes caps request bodies; 0 disables the cap.
	MaxBodyBytes int64
	// RatePerMinute is the per-client request budget on non-excluded paths;
	// 0 disables rate limiting.
	RatePerMinute int
	// Exclude lists path prefixes that are never rate limited.
	Exclude []string
}

// Stack returns the middleware in order: HeadToGet, SecurityHeaders,
// MaxBody, RateLimiter.
func Stack(cfg Config) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
	}
	if cfg.MaxBodyBytes > 0 {
		stack = append(stack, MaxBody(cfg.MaxBodyBytes))
	}
	if cfg.RatePerMinute > 0 {
		rl := NewRateLimiter(RateLimitConfig{
			MaxRequests: cfg.RatePerMinute,
			Window:      time.Minute,
		}, cfg.Exclude...)
		stack = append(stack, rl.Middleware)
	}
	return stack
}
