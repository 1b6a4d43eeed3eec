package daemon

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"solmon/config"
)

// Run wires the system from cfg and drives it until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	sys, err := Wire(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sys.Close(); err != nil {
			log.Error("close store", "err", err)
		}
	}()
	return sys.Run(ctx)
}

// Run starts every subsystem and blocks until the first fatal error or
// until ctx is cancelled. Cancellation is a clean shutdown, not an error.
func (s *System) Run(ctx context.Context) error {
	s.log.Info("daemon starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sup.Run(ctx) })
	g.Go(func() error { return s.bot.Run(ctx) })
	g.Go(func() error { return s.health.Run(ctx) })
	g.Go(func() error {
		s.clock.Run(ctx)
		return ctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		s.log.Info("daemon stopped")
		return nil
	}
	return err
}
