// Package clockcheck watches local clock drift against NTP. Watch inception
// stamps and block-time comparisons both assume the daemon's clock is close
// to real time; a drifted clock silently misfilters transactions near a
// watch's start.
package clockcheck

import (
	"context"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"solmon/internal/check"
)

const (
	DefaultPool     = "pool.ntp.org"
	defaultInterval = 60 * time.Second
	// Block times carry second granularity; drift beyond this starts to
	// matter for the inception filter.
	defaultThreshold = 2 * time.Second
)

type Phase uint8

const (
	Unchecked Phase = iota + 1
	Healthy
	Drifted
	Unreachable
)

func (p Phase) String() string {
	switch p {
	case Unchecked:
		return "unchecked"
	case Healthy:
		return "healthy"
	case Drifted:
		return "drifted"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Transition validates a phase change. Self-transitions never reach here.
func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case Unchecked:
		ok = to == Healthy || to == Drifted || to == Unreachable
	case Healthy:
		ok = to == Drifted || to == Unreachable
	case Drifted:
		ok = to == Healthy || to == Unreachable
	case Unreachable:
		ok = to == Healthy || to == Drifted
	}
	check.Assertf(ok, "clock phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// Status is the latest drift measurement.
type Status struct {
	Offset    time.Duration
	Phase     Phase
	Error     string
	CheckedAt time.Time
}

// Checker periodically queries an NTP pool and keeps the latest Status.
type Checker struct {
	mu        sync.RWMutex
	status    Status
	pool      string
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	// CheckFunc, when set, replaces the NTP query. Test hook.
	CheckFunc func() Status
}

func NewChecker(pool string) *Checker {
	if pool == "" {
		pool = DefaultPool
	}
	return &Checker{
		pool:      pool,
		interval:  defaultInterval,
		threshold: defaultThreshold,
		status:    Status{Phase: Unchecked},
		now:       time.Now,
	}
}

// Run checks immediately and then on every interval until ctx is cancelled.
func (n *Checker) Run(ctx context.Context) {
	n.check()

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.check()
		}
	}
}

// Status returns the latest measurement.
func (n *Checker) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Checker) check() {
	if n.CheckFunc != nil {
		n.mu.Lock()
		n.status = n.CheckFunc()
		n.mu.Unlock()
		return
	}

	resp, err := ntp.Query(n.pool)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		n.status = n.evaluate(0, err)
		return
	}
	n.status = n.evaluate(resp.ClockOffset, nil)
}

// evaluate folds one query result into a Status. Caller holds the lock.
func (n *Checker) evaluate(offset time.Duration, err error) Status {
	now := n.now()
	target := Healthy
	msg := ""
	switch {
	case err != nil:
		target = Unreachable
		msg = err.Error()
	case offset.Abs() >= n.threshold:
		target = Drifted
	}
	if target != n.status.Phase {
		target = n.status.Phase.Transition(target)
	}
	return Status{Offset: offset, Phase: target, Error: msg, CheckedAt: now}
}
