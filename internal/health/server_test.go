package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solmon"
	"solmon/internal/clockcheck"
	"solmon/internal/monitor"
	"solmon/internal/pace"
)

func testServer(sup fakeSup) *Server {
	registry := fakeRegistry{watches: []solmon.Watch{
		{Subscriber: 1, Account: "acct-a", Active: true},
		{Subscriber: 2, Account: "acct-a", Active: true},
		{Subscriber: 2, Account: "acct-b", Active: true},
	}, users: 2}
	clock := fakeClock{st: clockcheck.Status{
		Offset:    12 * time.Millisecond,
		Phase:     clockcheck.Healthy,
		CheckedAt: time.Unix(1_700_000_000, 0).UTC(),
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(":0", registry, sup, clock, fakePace{}, log)
}

func TestRootProbe(t *testing.T) {
	srv := testServer(fakeSup{st: monitor.Status{Alive: true}})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "Bot is running!" {
		t.Errorf("body = %q", got)
	}
}

func TestRootRejectsOtherPaths(t *testing.T) {
	srv := testServer(fakeSup{st: monitor.Status{Alive: true}})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealthzSnapshot(t *testing.T) {
	srv := testServer(fakeSup{st: monitor.Status{Alive: true, Restarts: 1}})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var view healthView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != "ok" {
		t.Errorf("status = %q, want ok", view.Status)
	}
	if view.Watches != 3 || view.Accounts != 2 || view.Users != 2 {
		t.Errorf("watches/accounts/users = %d/%d/%d, want 3/2/2",
			view.Watches, view.Accounts, view.Users)
	}
	if !view.Scheduler.Alive || view.Scheduler.Restarts != 1 {
		t.Errorf("scheduler view = %+v", view.Scheduler)
	}
	if view.Pace.Mode != "normal" || view.Pace.BatchSize != 12 {
		t.Errorf("pace view = %+v", view.Pace)
	}
	if view.Clock.Phase != "healthy" || view.Clock.Offset != "12ms" {
		t.Errorf("clock view = %+v", view.Clock)
	}
}

func TestHealthzReportsDeadScheduler(t *testing.T) {
	srv := testServer(fakeSup{st: monitor.Status{Alive: false, Restarts: 4}})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var view healthView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != "down" {
		t.Errorf("status = %q, want down", view.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(fakeSup{st: monitor.Status{Alive: true}})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "solmon_") {
		t.Error("metrics output missing solmon collectors")
	}
}

// --- fakes ---

type fakeRegistry struct {
	watches []solmon.Watch
	users   int
}

func (f fakeRegistry) AllActive() ([]solmon.Watch, error) { return f.watches, nil }
func (f fakeRegistry) UserCount() (int, error)            { return f.users, nil }

type fakeSup struct {
	st monitor.Status
}

func (f fakeSup) Status() monitor.Status { return f.st }

type fakeClock struct {
	st clockcheck.Status
}

func (f fakeClock) Status() clockcheck.Status { return f.st }

type fakePace struct{}

func (fakePace) Stats() pace.Stats {
	return pace.Stats{
		Mode:           pace.ModeNormal,
		Delay:          250 * time.Millisecond,
		CallsPerSecond: 3.5,
		BatchSize:      12,
	}
}
