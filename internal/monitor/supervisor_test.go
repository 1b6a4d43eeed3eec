package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSupervisorRespawnsDeadScheduler(t *testing.T) {
	registry := &fakeRegistry{}
	p := &fakePace{batch: 12, delay: time.Second}
	log := discardLog()

	var spawned atomic.Int32
	spawn := func() *Scheduler {
		spawned.Add(1)
		sched := NewScheduler(registry, newFakeLedger(), fakeSettings{floor: 1},
			&fakeChain{}, p, NewRouter(&fakeSender{}, fakeOpener{}, adminID, log), log)
		// Dies right after its first cycle.
		sched.sleep = func(context.Context, time.Duration) error {
			return errors.New("synthetic death")
		}
		return sched
	}

	sup := NewSupervisor(spawn, registry, p, log)
	sup.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitFor(t, "two respawns", func() bool { return sup.Status().Restarts >= 2 })
	if got := spawned.Load(); got < 3 {
		t.Errorf("spawned %d schedulers after two respawns, want at least 3", got)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestSupervisorLeavesHealthySchedulerAlone(t *testing.T) {
	registry := &fakeRegistry{}
	p := &fakePace{batch: 12, delay: time.Second}
	log := discardLog()

	spawn := func() *Scheduler {
		sched := NewScheduler(registry, newFakeLedger(), fakeSettings{floor: 1},
			&fakeChain{}, p, NewRouter(&fakeSender{}, fakeOpener{}, adminID, log), log)
		// Healthy: parks between cycles until cancelled.
		sched.sleep = func(ctx context.Context, _ time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		}
		return sched
	}

	sup := NewSupervisor(spawn, registry, p, log)
	sup.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitFor(t, "scheduler to come up", func() bool { return sup.Status().Alive })
	time.Sleep(30 * time.Millisecond) // several watchdog ticks
	st := sup.Status()
	if !st.Alive {
		t.Error("scheduler reported dead while healthy")
	}
	if st.Restarts != 0 {
		t.Errorf("restarts = %d for a healthy scheduler, want 0", st.Restarts)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if sup.Status().Alive {
		t.Error("scheduler reported alive after shutdown")
	}
}
