package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config bounds one cycle's worth of retrying.
type Config struct {
	MaxRetries   int // attempts after the first; 0 means a single attempt
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Validate reports the first violated bound. The config package
// enforces the same bounds at startup; this keeps the package usable on
// its own.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.InitialDelay <= 0 {
		return fmt.Errorf("initial delay must be positive, got %v", c.InitialDelay)
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max delay %v must not be below initial delay %v", c.MaxDelay, c.InitialDelay)
	}
	if c.Multiplier <= 1 {
		return fmt.Errorf("multiplier must be greater than 1, got %g", c.Multiplier)
	}
	return nil
}

// Policy produces full-jitter delays: the nth delay is drawn uniformly
// from [0, min(InitialDelay·Multiplier^(n-1), MaxDelay)). Randomizing
// the whole delay rather than a fraction keeps independently deployed
// units from retrying in lockstep after a shared outage.
//
// Policy implements backoff.BackOff; the attempt counter advances on
// each NextBackOff call and rewinds on Reset.
type Policy struct {
	cfg     Config
	attempt int
	rnd     func(int64) int64
}

func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg, rnd: rand.Int63n}
}

// delayCap returns the pre-jitter ceiling for the nth delay (1-based):
// min(InitialDelay·Multiplier^(n-1), MaxDelay).
func delayCap(cfg Config, n int) time.Duration {
	d := float64(cfg.InitialDelay)
	for i := 1; i < n; i++ {
		d *= cfg.Multiplier
		if d >= float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
	}
	return min(time.Duration(d), cfg.MaxDelay)
}

func (p *Policy) NextBackOff() time.Duration {
	p.attempt++
	c := delayCap(p.cfg, p.attempt)
	if c <= 0 {
		return 0
	}
	return time.Duration(p.rnd(int64(c)))
}

func (p *Policy) Reset() {
	p.attempt = 0
}

// Permanent marks err as non-retryable. Do returns the original error
// immediately without consuming further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with at most cfg.MaxRetries+1 attempts, sleeping a
// jittered delay between attempts. notify, when non-nil, observes every
// failed attempt together with the delay chosen before the next one.
// Cancelling ctx interrupts a delay in progress; Do then returns the
// context error. When attempts are exhausted the last failure is
// returned.
func Do(ctx context.Context, cfg Config, op backoff.Operation, notify backoff.Notify) error {
	retries := max(cfg.MaxRetries, 0)
	b := backoff.WithContext(backoff.WithMaxRetries(NewPolicy(cfg), uint64(retries)), ctx)
	return backoff.RetryNotify(op, b, notify)
}
