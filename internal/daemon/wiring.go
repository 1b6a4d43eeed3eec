// Package daemon assembles the monitoring system and runs it as one unit:
// the poll supervisor, the interactive bot, the clock checker, and the
// health server, all sharing the store, the pace controller, and the RPC
// client.
package daemon

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"solmon/config"
	"solmon/internal/clockcheck"
	"solmon/internal/health"
	"solmon/internal/keyring"
	"solmon/internal/logging"
	"solmon/internal/monitor"
	"solmon/internal/pace"
	"solmon/internal/solana"
	"solmon/internal/store"
	"solmon/internal/telegram"
)

// System is the fully wired daemon.
type System struct {
	log    *slog.Logger
	store  *store.Store
	sup    *monitor.Supervisor
	bot    *telegram.Bot
	clock  *clockcheck.Checker
	health *health.Server
}

// Wire builds every subsystem from cfg. The Telegram login happens here, so
// a bad token fails fast instead of surfacing mid-run.
func Wire(cfg config.Config, log *slog.Logger) (*System, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	keys, err := keyring.New(cfg.EncryptionKey, cfg.DataDir)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("telegram login: %w", err)
	}

	pacer := pace.New()
	chain := solana.Dial(cfg.RPCURL, pacer, logging.Component("rpc"))

	channelID, channelUN, _ := cfg.ChannelTarget()
	sender := telegram.NewSender(botAPI, cfg.AdminChatID, channelID, channelUN)
	router := monitor.NewRouter(sender, keys, cfg.AdminChatID, logging.Component("router"))

	schedLog := logging.Component("scheduler")
	spawn := func() *monitor.Scheduler {
		return monitor.NewScheduler(st, st, st, chain, pacer, router, schedLog)
	}
	sup := monitor.NewSupervisor(spawn, st, pacer, logging.Component("supervisor"))

	bot := telegram.NewBot(botAPI, st, st, keys, chain, cfg.AdminChatID, logging.Component("bot"))
	clock := clockcheck.NewChecker(cfg.NTPPool)
	healthSrv := health.New(cfg.HealthAddr, st, sup, clock, pacer, logging.Component("health"))

	return &System{
		log:    log,
		store:  st,
		sup:    sup,
		bot:    bot,
		clock:  clock,
		health: healthSrv,
	}, nil
}

// Close releases the wired resources.
func (s *System) Close() error {
	return s.store.Close()
}
