// Package ratelimit throttles calls to the tracking service.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
)

// RateLimiter is a token bucket with an additional server-imposed cooldown.
// The bucket smooths our own request rate; the cooldown is set when the
// server answers 429 with Retry-After and pauses every caller until it ends.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *logging.Logger

	mu            sync.Mutex
	cooldownUntil time.Time
	lastWarnTime  time.Time
}

// NewRateLimiter creates a limiter refilling tokensPerSecond up to burst tokens.
// A non-positive rate disables limiting.
func NewRateLimiter(tokensPerSecond float64, burst int, logger *logging.Logger) *RateLimiter {
	limit := rate.Limit(tokensPerSecond)
	if tokensPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.OrNop(logger),
	}
}

// Wait blocks until the cooldown has passed and a token is available, or ctx
// is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if d := rl.CooldownRemaining(); d > 0 {
		rl.warn(d)
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	r := rl.limiter.Reserve()
	if !r.OK() {
		return rl.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	rl.warn(delay)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (rl *RateLimiter) warn(wait time.Duration) {
	if wait < constants.RateLimitWarningThreshold {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.lastWarnTime) > constants.RateLimitWarningInterval {
		rl.logger.Warnf("Rate limited: waiting ~%.1fs for API capacity...", wait.Seconds())
		rl.lastWarnTime = time.Now()
	}
}

// SetCooldown pauses all callers for d. A shorter cooldown never cuts an
// active longer one short.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns how long the current cooldown still lasts.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	d := time.Until(rl.cooldownUntil)
	if d < 0 {
		return 0
	}
	return d
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}
