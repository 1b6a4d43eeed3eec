// Package monitor drives polling, classification, deduplication, and
// notification routing for watched accounts.
package monitor

import (
	"context"
	"time"

	"solmon"
	"solmon/internal/pace"
	"solmon/internal/solana"
)

// Registry is the store surface the scheduler and router read and advance.
type Registry interface {
	AllActive() ([]solmon.Watch, error)
	SubscribersOf(account string) ([]solmon.Watch, error)
	AdvanceCursor(account, signature string) error
}

// Ledger arbitrates which sighting of a signature gets to notify.
type Ledger interface {
	Recorded(signature string) (bool, error)
	Claim(ev solmon.Event, subscriber int64) (solmon.ClaimOutcome, error)
	RecordDust(ev solmon.Event, subscriber int64) error
}

// Settings exposes the runtime-tunable notification floor.
type Settings interface {
	MinNotifyLamports() (int64, error)
}

// Chain is the RPC surface the scheduler polls.
type Chain interface {
	Signatures(ctx context.Context, account string, limit int) ([]solana.SignatureInfo, error)
	Transaction(ctx context.Context, signature string) (solana.TxFacts, error)
}

// Pace shapes batching between accounts. Per-call pacing lives inside the
// RPC client; the scheduler only asks how wide and how fast to sweep.
type Pace interface {
	OptimalBatchSize() int
	BatchDelay() time.Duration
	Stats() pace.Stats
}

// Sender delivers rendered notification text.
type Sender interface {
	ToChannel(ctx context.Context, text string) error
	ToAdmin(ctx context.Context, text string) error
}

// Opener recovers a sealed credential for inclusion in notifications.
type Opener interface {
	Open(sealed string) (string, error)
}
