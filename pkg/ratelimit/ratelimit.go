// Package ratelimit paces probes. The scan is single-stream, so pacing is
// about staying under the radar of the Grafana host rather than about
// fairness between workers: either a steady rate via a token bucket, or a
// fixed pause between probes with optional random jitter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidRate is returned for negative or conflicting settings.
var ErrInvalidRate = errors.New("ratelimit: invalid pacing")

// Config holds pacing configuration. The zero value means unlimited.
type Config struct {
	// Rate limits probes per second (0 = unlimited).
	Rate float64

	// Delay is a fixed pause between consecutive probes.
	Delay time.Duration

	// Jitter adds a random extra pause in [0, Jitter) on top of Delay.
	Jitter time.Duration
}

// Validate rejects negative values and Rate combined with Delay.
func (c Config) Validate() error {
	if c.Rate < 0 || c.Delay < 0 || c.Jitter < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidRate)
	}
	if c.Rate > 0 && c.Delay > 0 {
		return fmt.Errorf("%w: rate and delay are mutually exclusive", ErrInvalidRate)
	}
	return nil
}

// Pacer gates each probe. A nil *Pacer never waits.
type Pacer struct {
	limiter *rate.Limiter
	delay   time.Duration
	jitter  time.Duration

	mu   sync.Mutex
	last time.Time
}

// New creates a pacer. It returns nil, nil when cfg imposes no limit.
func New(cfg Config) (*Pacer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rate == 0 && cfg.Delay == 0 && cfg.Jitter == 0 {
		return nil, nil
	}

	p := &Pacer{delay: cfg.Delay, jitter: cfg.Jitter}
	if cfg.Rate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return p, nil
}

// Wait blocks until the next probe may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pause := p.pause(); pause > 0 {
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.last = time.Now()
	return nil
}

// pause is what remains of delay+jitter since the previous probe. The
// first probe never waits on delay.
func (p *Pacer) pause() time.Duration {
	if p.last.IsZero() {
		return 0
	}
	want := p.delay
	if p.jitter > 0 {
		want += rand.N(p.jitter)
	}
	return want - time.Since(p.last)
}

// String describes the pacing for the config banner.
func (p *Pacer) String() string {
	switch {
	case p == nil:
		return "unlimited"
	case p.limiter != nil && p.jitter > 0:
		return fmt.Sprintf("%g/s +%s jitter", float64(p.limiter.Limit()), p.jitter)
	case p.limiter != nil:
		return fmt.Sprintf("%g/s", float64(p.limiter.Limit()))
	case p.jitter > 0:
		return fmt.Sprintf("%s +%s jitter", p.delay, p.jitter)
	default:
		return p.delay.String()
	}
}
