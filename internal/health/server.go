// Package health serves the liveness endpoint and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solmon"
	"solmon/internal/clockcheck"
	"solmon/internal/monitor"
	"solmon/internal/pace"
)

const shutdownGrace = 5 * time.Second

// Registry is the slice of the store the health view reads.
type Registry interface {
	AllActive() ([]solmon.Watch, error)
	UserCount() (int, error)
}

// Supervision reports scheduler liveness.
type Supervision interface {
	Status() monitor.Status
}

// Clock reports local clock drift.
type Clock interface {
	Status() clockcheck.Status
}

// Pace reports the rate controller's posture.
type Pace interface {
	Stats() pace.Stats
}

// Server is the HTTP health surface. The root path answers a bare liveness
// probe; /healthz carries the full JSON snapshot; /metrics is Prometheus.
type Server struct {
	addr     string
	registry Registry
	sup      Supervision
	clock    Clock
	pace     Pace
	log      *slog.Logger
	started  time.Time
}

func New(addr string, registry Registry, sup Supervision, clock Clock, pace Pace, log *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		sup:      sup,
		clock:    clock,
		pace:     pace,
		log:      log,
		started:  time.Now(),
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	s.log.Info("health server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleRoot keeps the minimal probe hosting platforms poll.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte("Bot is running!"))
}

type healthView struct {
	Status    string        `json:"status"`
	Uptime    string        `json:"uptime"`
	Watches   int           `json:"watches"`
	Accounts  int           `json:"accounts"`
	Users     int           `json:"users"`
	Scheduler schedulerView `json:"scheduler"`
	Pace      paceView      `json:"pace"`
	Clock     clockView     `json:"clock"`
}

type schedulerView struct {
	Alive    bool `json:"alive"`
	Restarts int  `json:"restarts"`
}

type paceView struct {
	Mode           string  `json:"mode"`
	Delay          string  `json:"delay"`
	CallsPerSecond float64 `json:"calls_per_second"`
	BatchSize      int     `json:"batch_size"`
}

type clockView struct {
	Phase     string `json:"phase"`
	Offset    string `json:"offset,omitempty"`
	Error     string `json:"error,omitempty"`
	CheckedAt string `json:"checked_at,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	watches, err := s.registry.AllActive()
	if err != nil {
		s.log.Error("health: list watches", "err", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	users, err := s.registry.UserCount()
	if err != nil {
		s.log.Error("health: count users", "err", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	accounts := make(map[string]struct{}, len(watches))
	for _, watch := range watches {
		accounts[watch.Account] = struct{}{}
	}

	sched := s.sup.Status()
	stats := s.pace.Stats()
	drift := s.clock.Status()

	view := healthView{
		Status:   "ok",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Watches:  len(watches),
		Accounts: len(accounts),
		Users:    users,
		Scheduler: schedulerView{
			Alive:    sched.Alive,
			Restarts: sched.Restarts,
		},
		Pace: paceView{
			Mode:           stats.Mode.String(),
			Delay:          stats.Delay.String(),
			CallsPerSecond: stats.CallsPerSecond,
			BatchSize:      stats.BatchSize,
		},
		Clock: clockView{
			Phase: drift.Phase.String(),
			Error: drift.Error,
		},
	}
	if drift.Phase != clockcheck.Unchecked {
		view.Clock.Offset = drift.Offset.String()
		view.Clock.CheckedAt = drift.CheckedAt.UTC().Format(time.RFC3339)
	}

	code := http.StatusOK
	if !sched.Alive {
		view.Status = "down"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.log.Error("health: encode response", "err", err)
	}
}
