package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterSettings configures token-bucket rate limiting on the target
// host in addition to the fixed inter-page delay.
type RateLimiterSettings struct {
	Requests int
	Window   time.Duration
}

// Pacer enforces politeness between page fetches: a fixed delay since the
// previous fetch plus an optional token-bucket limit.
type Pacer struct {
	delay   time.Duration
	limiter *rate.Limiter

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a pacer with the given inter-page delay and optional
// rate limit.
func NewPacer(delay time.Duration, settings RateLimiterSettings) *Pacer {
	p := &Pacer{delay: delay}
	if settings.Requests > 0 && settings.Window > 0 {
		interval := settings.Window / time.Duration(settings.Requests)
		if interval <= 0 {
			interval = time.Millisecond
		}
		p.limiter = rate.NewLimiter(rate.Every(interval), settings.Requests)
	}
	return p
}

// Wait blocks until politeness constraints are satisfied or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var sleep time.Duration
	now := time.Now()
	p.mu.Lock()
	if p.delay > 0 && !p.last.IsZero() {
		if rest := p.last.Add(p.delay).Sub(now); rest > 0 {
			sleep = rest
		}
	}
	p.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
	return nil
}
