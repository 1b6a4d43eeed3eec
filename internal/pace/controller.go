// Package pace implements the process-wide request pacer.
//
// Every outbound RPC call acquires the controller first; the controller is
// the only component that sleeps on its own judgment. It keeps a rolling
// window of request timestamps, picks a pacing mode from the observed rate,
// and moves the per-request delay in response to reported outcomes.
package pace

import (
	"context"
	"sync"
	"time"

	"solmon/internal/check"
)

// Mode is the controller's pacing regime.
type Mode uint8

const (
	ModeFast    Mode = iota + 1 // well under the endpoint budget
	ModeNormal                  // cruising
	ModeCareful                 // near the budget or recently rate-limited
)

func (m Mode) String() string {
	switch m {
	case ModeFast:
		return "fast"
	case ModeNormal:
		return "normal"
	case ModeCareful:
		return "careful"
	default:
		return "unknown"
	}
}

const (
	// Window is the span over which the request rate is measured.
	Window = 60 * time.Second
	// MaxCallsPerSecond is the endpoint budget the modes steer around.
	MaxCallsPerSecond = 25
	// BaseDelay is the starting per-request delay.
	BaseDelay = 250 * time.Millisecond
	// MinDelay and MaxDelay bound the delay whatever the outcome stream does.
	MinDelay = 80 * time.Millisecond
	MaxDelay = 3 * time.Second
	// BatchBase is the batch size in normal mode; fast adds four capped at
	// BatchFastCap, careful subtracts three floored at BatchFloor.
	BatchBase    = 12
	BatchFloor   = 6
	BatchFastCap = 20
	// BatchDelayBase is the between-batch pause before the mode factor.
	BatchDelayBase = time.Second

	carefulRateShare = 0.9 // of MaxCallsPerSecond
	fastRateShare    = 0.7

	fastStreak = 3 // successes before a delay cut in fast mode
	slowStreak = 5 // and in every other mode

	repeat429Window = 30 * time.Second

	maxWindowEntries = MaxCallsPerSecond * 60
)

// Controller regulates request pacing. All methods are safe for concurrent
// use; the zero value is not usable, call New.
type Controller struct {
	mu       sync.Mutex
	delay    time.Duration
	window   []time.Time
	streak   int
	mode     Mode
	last429  time.Time
	started  time.Time
	succeeds uint64
	fails    uint64
	limited  uint64

	// test seams
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New returns a controller at BaseDelay in normal mode.
func New() *Controller {
	c := &Controller{
		delay: BaseDelay,
		mode:  ModeNormal,
		now:   time.Now,
		sleep: sleepContext,
	}
	c.started = c.now()
	return c
}

// Acquire blocks for the current delay, records the request in the rolling
// window, and retunes the mode. It never lets the window exceed the endpoint
// budget: when the window is full it waits for the oldest entry to expire.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	d := c.delay
	c.mu.Unlock()
	if err := c.sleep(ctx, d); err != nil {
		return err
	}

	for {
		c.mu.Lock()
		now := c.now()
		c.trim(now)
		if len(c.window) < maxWindowEntries {
			c.window = append(c.window, now)
			c.retune(now)
			check.Assertf(len(c.window) <= maxWindowEntries,
				"window holds %d entries, budget %d", len(c.window), maxWindowEntries)
			c.mu.Unlock()
			return nil
		}
		wait := c.window[0].Add(Window).Sub(now)
		c.mu.Unlock()
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// OnSuccess reports a successful call. A long enough run of successes cuts
// the delay: three in fast mode multiply by 0.9, five elsewhere by 0.95,
// floored at MinDelay.
func (c *Controller) OnSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.succeeds++
	c.streak++

	needed, factor := slowStreak, 0.95
	if c.mode == ModeFast {
		needed, factor = fastStreak, 0.9
	}
	if c.streak >= needed {
		c.setDelay(time.Duration(float64(c.delay) * factor))
		c.streak = 0
	}
}

// OnRateLimit reports an HTTP 429. The delay grows by 1.3x, or by 1.8x with
// careful mode forced when the previous 429 was under thirty seconds ago.
func (c *Controller) OnRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limited++
	c.fails++
	c.streak = 0

	now := c.now()
	factor := 1.3
	if !c.last429.IsZero() && now.Sub(c.last429) <= repeat429Window {
		factor = 1.8
		c.mode = ModeCareful
	}
	c.last429 = now
	c.setDelay(time.Duration(float64(c.delay) * factor))
}

// OnNetworkError reports a transport failure. The delay grows by 1.2x.
func (c *Controller) OnNetworkError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fails++
	c.streak = 0
	c.setDelay(time.Duration(float64(c.delay) * 1.2))
}

// OptimalBatchSize returns how many accounts the scheduler should poll per
// batch under the current mode.
func (c *Controller) OptimalBatchSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return batchSize(c.mode)
}

// BatchDelay returns the between-batch pause under the current mode.
func (c *Controller) BatchDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case ModeFast:
		return time.Duration(float64(BatchDelayBase) * 0.7)
	case ModeCareful:
		return time.Duration(float64(BatchDelayBase) * 1.5)
	default:
		return BatchDelayBase
	}
}

// Mode returns the current pacing regime.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Stats is a point-in-time controller snapshot.
type Stats struct {
	Mode           Mode
	Delay          time.Duration
	WindowCalls    int // requests in the last sixty seconds
	CallsPerSecond float64
	BatchSize      int
	Successes      uint64
	Failures       uint64
	RateLimits     uint64
}

// Stats snapshots the controller for logging and the health surface.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trim(c.now())
	return Stats{
		Mode:           c.mode,
		Delay:          c.delay,
		WindowCalls:    len(c.window),
		CallsPerSecond: float64(len(c.window)) / Window.Seconds(),
		BatchSize:      batchSize(c.mode),
		Successes:      c.succeeds,
		Failures:       c.fails,
		RateLimits:     c.limited,
	}
}

// setDelay clamps into [MinDelay, MaxDelay]. Callers hold c.mu.
func (c *Controller) setDelay(d time.Duration) {
	if d < MinDelay {
		d = MinDelay
	}
	if d > MaxDelay {
		d = MaxDelay
	}
	c.delay = d
	check.Assert(c.delay >= MinDelay && c.delay <= MaxDelay, "delay out of bounds")
}

// trim drops window entries older than the measurement span. Callers hold c.mu.
func (c *Controller) trim(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(c.window) && !c.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.window = append(c.window[:0], c.window[i:]...)
	}
}

// retune picks the mode from the observed rate. A recent 429 holds careful
// mode even when the measured rate alone would relax it. Callers hold c.mu.
func (c *Controller) retune(now time.Time) {
	rate := float64(len(c.window)) / Window.Seconds()
	limit := float64(MaxCallsPerSecond)

	target := ModeNormal
	switch {
	case rate > carefulRateShare*limit:
		target = ModeCareful
	case rate < fastRateShare*limit:
		target = ModeFast
	}

	if c.mode == ModeCareful && target != ModeCareful &&
		!c.last429.IsZero() && now.Sub(c.last429) <= repeat429Window {
		return
	}
	c.mode = target
}

func batchSize(m Mode) int {
	switch m {
	case ModeFast:
		return min(BatchBase+4, BatchFastCap)
	case ModeCareful:
		return max(BatchBase-3, BatchFloor)
	default:
		return BatchBase
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
