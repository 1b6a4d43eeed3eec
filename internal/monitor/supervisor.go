package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"solmon/internal/metrics"
)

// WatchdogInterval is how often the supervisor verifies the scheduler and
// logs a health snapshot.
const WatchdogInterval = 60 * time.Second

// Supervisor keeps exactly one scheduler running. A scheduler that returns
// or panics is replaced on the next watchdog tick; cancellation of the
// supervisor's context is the only way the system stays down.
type Supervisor struct {
	spawn    func() *Scheduler
	registry Registry
	pace     Pace
	log      *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	current  *Scheduler
	restarts int
}

// Status is a point-in-time view for the health surface.
type Status struct {
	Alive    bool
	Restarts int
}

// NewSupervisor wires a supervisor around a scheduler factory. Each restart
// gets a fresh scheduler; Run is single-use per instance.
func NewSupervisor(spawn func() *Scheduler, registry Registry, pace Pace, log *slog.Logger) *Supervisor {
	return &Supervisor{
		spawn:    spawn,
		registry: registry,
		pace:     pace,
		log:      log,
		interval: WatchdogInterval,
	}
}

// Run starts the scheduler and watches it until ctx is cancelled. It returns
// after the scheduler and its deliveries have drained.
func (s *Supervisor) Run(ctx context.Context) error {
	s.start(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			current := s.current
			s.mu.Unlock()
			if current != nil {
				<-current.Done()
			}
			metrics.SchedulerAlive.Set(0)
			return ctx.Err()
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// Status reports whether the scheduler is currently alive and how often it
// has been respawned.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Restarts: s.restarts}
	if s.current != nil {
		select {
		case <-s.current.Done():
		default:
			st.Alive = true
		}
	}
	return st
}

func (s *Supervisor) start(ctx context.Context) {
	sched := s.spawn()
	s.mu.Lock()
	s.current = sched
	s.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduler panicked", "panic", r)
			}
		}()
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("scheduler stopped", "err", err)
		}
	}()
	metrics.SchedulerAlive.Set(1)
}

func (s *Supervisor) check(ctx context.Context) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	alive := true
	select {
	case <-current.Done():
		alive = false
	default:
	}
	if !alive && ctx.Err() == nil {
		s.mu.Lock()
		s.restarts++
		restarts := s.restarts
		s.mu.Unlock()
		metrics.SchedulerRestarts.Inc()
		s.log.Warn("scheduler not running, respawning", "restarts", restarts)
		s.start(ctx)
		alive = true
	}

	stats := s.pace.Stats()
	metrics.ObservePace(stats)

	watchCount, accountCount := 0, 0
	if watches, err := s.registry.AllActive(); err != nil {
		s.log.Error("list active watches", "err", err)
	} else {
		watchCount = len(watches)
		accountCount = len(groupByAccount(watches))
	}

	s.mu.Lock()
	restarts := s.restarts
	s.mu.Unlock()
	s.log.Info("monitor snapshot",
		"alive", alive,
		"mode", stats.Mode.String(),
		"delay", stats.Delay,
		"calls_per_second", stats.CallsPerSecond,
		"batch", stats.BatchSize,
		"watches", watchCount,
		"accounts", accountCount,
		"restarts", restarts,
	)
}
