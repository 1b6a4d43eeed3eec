package solmon

import "time"

// Watch is one subscriber's monitoring relationship with an account.
type Watch struct {
	ID         int64
	Subscriber int64  // chat id that owns the watch
	Account    string // base58 public key
	Credential string // sealed private key, opaque outside the keyring
	Nickname   string
	Cursor     string    // last processed signature, empty before the seed poll
	Inception  time.Time // activity confirmed before this instant is never reported
	Active     bool
}

// Seeded reports whether the watch has completed its first poll.
func (w Watch) Seeded() bool {
	return w.Cursor != ""
}

// AddOutcome is the registry's verdict on an add request.
type AddOutcome uint8

const (
	AddAdded     AddOutcome = iota + 1
	AddDuplicate            // caller already watches this account
)

func (o AddOutcome) String() string {
	switch o {
	case AddAdded:
		return "added"
	case AddDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// RemoveOutcome is the registry's verdict on a remove request.
type RemoveOutcome uint8

const (
	Removed  RemoveOutcome = iota + 1
	NotFound
)

func (o RemoveOutcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ClaimOutcome is the ledger's verdict on a notification claim.
type ClaimOutcome uint8

const (
	Claimed        ClaimOutcome = iota + 1
	AlreadyClaimed              // another cycle or subscriber recorded it first
)

func (o ClaimOutcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// TransferStats summarizes an administrative hand-off of every active watch
// to a single subscriber.
type TransferStats struct {
	Transferred  int // rows re-pointed at the target subscriber
	AlreadyOwned int // rows the target subscriber already held
	Deactivated  int // duplicate source rows folded into an existing target watch
}
