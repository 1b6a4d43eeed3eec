package solmon

import (
	"strconv"
	"strings"
	"time"
)

// LamportsPerSOL is the chain's base-unit scale: one SOL is 10^9 lamports.
const LamportsPerSOL int64 = 1_000_000_000

// DefaultMinNotifySOL is the notification floor applied when no override is
// stored in settings. Deltas below it are recorded as dust, never notified.
const DefaultMinNotifySOL = 0.0001

// DefaultMinNotifyLamports is DefaultMinNotifySOL in base units.
const DefaultMinNotifyLamports int64 = 100_000

// Kind classifies a transaction by its effect on the watched account.
type Kind uint8

const (
	KindReceive Kind = iota + 1 // watched account's balance grew
	KindSend                    // watched account's balance shrank
	KindTrade                   // touched a known DEX program or swapped tokens
	KindGeneric                 // no lamport delta for the watched account
	KindDust                    // below the notification threshold, ledger-only
)

func (k Kind) String() string {
	switch k {
	case KindReceive:
		return "receive"
	case KindSend:
		return "send"
	case KindTrade:
		return "trade"
	case KindGeneric:
		return "generic"
	case KindDust:
		return "dust"
	default:
		return "unknown"
	}
}

// Icon is the marker prepended to notification bodies for this kind.
func (k Kind) Icon() string {
	switch k {
	case KindReceive:
		return "📥"
	case KindSend:
		return "📤"
	case KindTrade:
		return "🔄"
	case KindDust:
		return "🧹"
	default:
		return "📋"
	}
}

// Event is one classified transaction observed on a watched account.
type Event struct {
	Signature    string
	Account      string
	Lamports     int64 // signed delta for the watched account
	Kind         Kind
	BlockTime    time.Time
	Counterparty string // receiving account on sends, best effort, may be empty
}

// SOL returns the signed delta converted to SOL.
func (e Event) SOL() float64 {
	return float64(e.Lamports) / float64(LamportsPerSOL)
}

// FormatSOL renders a signed lamport amount as a SOL decimal string with up
// to nine fractional digits, trailing zeros trimmed. Positive amounts carry
// an explicit plus sign.
func FormatSOL(lamports int64) string {
	sign := ""
	switch {
	case lamports > 0:
		sign = "+"
	case lamports < 0:
		sign = "-"
		lamports = -lamports
	}
	whole := lamports / LamportsPerSOL
	frac := lamports % LamportsPerSOL

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(strconv.FormatInt(whole, 10))
	if frac > 0 {
		digits := strconv.FormatInt(frac, 10)
		digits = strings.Repeat("0", 9-len(digits)) + digits
		digits = strings.TrimRight(digits, "0")
		b.WriteByte('.')
		b.WriteString(digits)
	}
	return b.String()
}

// TruncateAddress shortens a base58 address for display, keeping the first
// and last eight characters. Short addresses are returned unchanged.
func TruncateAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-8:]
}
