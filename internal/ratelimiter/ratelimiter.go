package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing requests so that one host sees at most one
// request per interval. Hosts are independent of each other.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
	log      *slog.Logger
}

func New(interval time.Duration, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
		log:      log,
	}
}

// Wait blocks until a request to the host of rawURL is allowed or ctx is done.
// A non-positive interval disables pacing.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}

	if rl.interval <= 0 {
		return nil
	}

	r := rl.limiter(host).Reserve()
	if !r.OK() {
		return fmt.Errorf("reserve request slot (host = %s)", host)
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	rl.log.DebugContext(ctx, "Rate limiting request",
		"host", host,
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()

		return ctx.Err()
	}
}

func (rl *RateLimiter) limiter(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(rl.interval), 1)
		rl.limiters[host] = l
	}

	return l
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	if u.Host == "" {
		return "", errors.New("parse URL: missing host")
	}

	return strings.ToLower(u.Host), nil
}
