// Package clock drives the engine: a fixed-rate ticker with a start delay,
// and the countdown the phases are measured against.
package clock

import (
	"context"
	"sync/atomic"
	"time"
)

// Countdown is the number of seconds left in the current phase. It may go
// negative if nobody resets it.
type Countdown struct {
	v atomic.Int64
}

func (c *Countdown) Get() int       { return int(c.v.Load()) }
func (c *Countdown) Set(n int)      { c.v.Store(int64(n)) }
func (c *Countdown) Decrement() int { return int(c.v.Add(-1)) }

type Config struct {
	StartDelay time.Duration
	Period     time.Duration
}

type Ticker struct {
	cfg   Config
	ticks atomic.Uint64
}

func NewTicker(cfg Config) *Ticker {
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}
	return &Ticker{cfg: cfg}
}

// Ticks returns how many times the tick function has been called.
func (t *Ticker) Ticks() uint64 { return t.ticks.Load() }

// Run waits StartDelay, then calls fn once per Period until ctx is done.
// Ticks are fixed-rate: a slow fn causes dropped ticks, never a burst.
func (t *Ticker) Run(ctx context.Context, fn func()) error {
	if t.cfg.StartDelay > 0 {
		delay := time.NewTimer(t.cfg.StartDelay)
		select {
		case <-ctx.Done():
			delay.Stop()
			return ctx.Err()
		case <-delay.C:
		}
	}

	t.fire(fn)

	ticker := time.NewTicker(t.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.fire(fn)
		}
	}
}

func (t *Ticker) fire(fn func()) {
	t.ticks.Add(1)
	fn()
}
