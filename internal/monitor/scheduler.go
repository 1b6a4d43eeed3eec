package monitor

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"solmon"
	"solmon/internal/check"
	"solmon/internal/metrics"
	"solmon/internal/solana"
)

const (
	// PollInterval separates consecutive full poll cycles.
	PollInterval = 5 * time.Second
	// deliverConcurrency bounds in-flight delivery tasks.
	deliverConcurrency = 8
)

// Scheduler owns the poll loop. Each cycle it groups active watches by
// account, sweeps every account's recent signatures in rate-shaped batches,
// and hands fresh activity to the router. Deliveries run as bounded
// concurrent tasks; everything else in a cycle is sequential so the pacer
// stays the only source of pressure on the RPC endpoint.
type Scheduler struct {
	registry Registry
	ledger   Ledger
	settings Settings
	chain    Chain
	pace     Pace
	router   *Router
	log      *slog.Logger

	interval time.Duration
	slots    chan struct{}
	wg       sync.WaitGroup
	done     chan struct{}

	sleep func(context.Context, time.Duration) error // test seam
}

// NewScheduler wires a scheduler. Run must be called at most once; the
// supervisor spawns a fresh scheduler per restart.
func NewScheduler(registry Registry, ledger Ledger, settings Settings, chain Chain, pace Pace, router *Router, log *slog.Logger) *Scheduler {
	return &Scheduler{
		registry: registry,
		ledger:   ledger,
		settings: settings,
		chain:    chain,
		pace:     pace,
		router:   router,
		log:      log,
		interval: PollInterval,
		slots:    make(chan struct{}, deliverConcurrency),
		done:     make(chan struct{}),
		sleep:    sleepContext,
	}
}

// Done is closed once Run has returned and every delivery task finished.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.wg.Wait()
	s.log.Info("scheduler running", "interval", s.interval)
	for {
		s.cycle(ctx)
		if err := s.sleep(ctx, s.interval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	watches, err := s.registry.AllActive()
	if err != nil {
		s.log.Error("list active watches", "err", err)
		return
	}
	groups := groupByAccount(watches)
	metrics.WatchedAccounts.Set(float64(len(groups)))
	if len(groups) == 0 {
		return
	}
	floor := s.notifyFloor()

	size := s.pace.OptimalBatchSize()
	check.Assertf(size > 0, "batch size %d", size)
	for start := 0; start < len(groups); start += size {
		if start > 0 {
			if err := s.sleep(ctx, s.pace.BatchDelay()); err != nil {
				return
			}
		}
		for _, g := range groups[start:min(start+size, len(groups))] {
			if ctx.Err() != nil {
				return
			}
			s.pollAccount(ctx, g, floor)
			metrics.AccountsPolled.Inc()
		}
	}
	metrics.PollCycles.Inc()
}

func (s *Scheduler) pollAccount(ctx context.Context, g accountGroup, floor int64) {
	infos, err := s.chain.Signatures(ctx, g.account, solana.SignatureLimit)
	if err != nil {
		s.log.Warn("poll account", "account", solmon.TruncateAddress(g.account), "err", err)
		return
	}
	if len(infos) == 0 {
		return
	}
	newest := infos[0].Signature

	cursor, seeded := g.cursor()
	if !seeded {
		// First poll only records where history ends. Nothing that
		// happened before the watch existed is reported.
		if err := s.registry.AdvanceCursor(g.account, newest); err != nil {
			s.log.Error("seed cursor", "account", solmon.TruncateAddress(g.account), "err", err)
		}
		return
	}

	// Newest first down to the cursor. A cursor that fell out of the
	// window means a burst bigger than the listing; everything in the
	// window counts as new and the ledger absorbs any overlap.
	fresh := make([]solana.SignatureInfo, 0, len(infos))
	for _, info := range infos {
		if info.Signature == cursor {
			break
		}
		fresh = append(fresh, info)
	}
	if len(fresh) == 0 {
		return
	}

	// Advance before emitting: a crash between here and delivery drops
	// notifications instead of repeating them.
	if err := s.registry.AdvanceCursor(g.account, newest); err != nil {
		s.log.Error("advance cursor", "account", solmon.TruncateAddress(g.account), "err", err)
		return
	}

	inception := g.inception()
	slices.Reverse(fresh)
	for _, info := range fresh {
		if ctx.Err() != nil {
			return
		}
		if !info.BlockTime.IsZero() && info.BlockTime.Before(inception) {
			continue
		}
		s.processSignature(ctx, g.account, info, floor)
	}
}

func (s *Scheduler) processSignature(ctx context.Context, account string, info solana.SignatureInfo, floor int64) {
	recorded, err := s.ledger.Recorded(info.Signature)
	if err != nil {
		s.log.Error("ledger lookup", "signature", info.Signature, "err", err)
		return
	}
	if recorded {
		return
	}

	facts, err := s.chain.Transaction(ctx, info.Signature)
	if err != nil {
		if solana.IsNotFound(err) {
			s.log.Debug("transaction not available", "signature", info.Signature)
		} else {
			s.log.Warn("fetch transaction", "signature", info.Signature, "err", err)
		}
		return
	}

	ev := solana.Classify(info.Signature, facts, account)
	if ev.BlockTime.IsZero() {
		ev.BlockTime = info.BlockTime
	}

	// Routing wants the subscriber set as of now, not as of cycle start.
	watchers, err := s.registry.SubscribersOf(account)
	if err != nil {
		s.log.Error("list subscribers", "account", solmon.TruncateAddress(account), "err", err)
		return
	}
	if len(watchers) == 0 {
		return
	}

	if abs(ev.Lamports) < floor {
		ev.Kind = solmon.KindDust
		if err := s.ledger.RecordDust(ev, watchers[0].Subscriber); err != nil {
			s.log.Error("record dust", "signature", ev.Signature, "err", err)
			return
		}
		metrics.DustRecorded.Inc()
		s.log.Debug("dust recorded", "signature", ev.Signature, "amount", solmon.FormatSOL(ev.Lamports))
		return
	}

	outcome, err := s.ledger.Claim(ev, watchers[0].Subscriber)
	if err != nil {
		s.log.Error("claim notification", "signature", ev.Signature, "err", err)
		return
	}
	if outcome == solmon.AlreadyClaimed {
		metrics.LedgerDuplicates.Inc()
		return
	}
	s.spawnDelivery(ctx, ev, watchers)
}

func (s *Scheduler) spawnDelivery(ctx context.Context, ev solmon.Event, watchers []solmon.Watch) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("delivery panicked", "signature", ev.Signature, "panic", r)
			}
		}()
		if err := s.router.Deliver(ctx, ev, watchers); err != nil {
			s.log.Error("deliver notification", "signature", ev.Signature, "err", err)
		}
	}()
}

func (s *Scheduler) notifyFloor() int64 {
	floor, err := s.settings.MinNotifyLamports()
	if err != nil {
		s.log.Warn("read notification floor", "err", err)
		return solmon.DefaultMinNotifyLamports
	}
	return floor
}

// accountGroup is every active watch on one account, polled as a unit.
type accountGroup struct {
	account string
	watches []solmon.Watch
}

// groupByAccount folds adjacent rows for the same account; AllActive orders
// by account, so adjacency is grouping.
func groupByAccount(watches []solmon.Watch) []accountGroup {
	groups := make([]accountGroup, 0, len(watches))
	for _, w := range watches {
		if n := len(groups); n > 0 && groups[n-1].account == w.Account {
			groups[n-1].watches = append(groups[n-1].watches, w)
			continue
		}
		groups = append(groups, accountGroup{account: w.Account, watches: []solmon.Watch{w}})
	}
	return groups
}

// cursor returns the group's shared polling position. Rows advance together,
// so the first seeded row speaks for the group; a subscriber who just joined
// an already-watched account inherits that position instead of reseeding.
func (g accountGroup) cursor() (string, bool) {
	for _, w := range g.watches {
		if w.Seeded() {
			return w.Cursor, true
		}
	}
	return "", false
}

// inception returns the earliest start among subscribers. Only activity
// older than every subscriber's start is discarded.
func (g accountGroup) inception() time.Time {
	earliest := g.watches[0].Inception
	for _, w := range g.watches[1:] {
		if w.Inception.Before(earliest) {
			earliest = w.Inception
		}
	}
	return earliest
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
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
