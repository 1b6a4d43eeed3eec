package store

import (
	"database/sql"
	"errors"
	"fmt"

	"solmon"
)

// Recorded reports whether a signature already has a ledger row, notified
// or not.
func (s *Store) Recorded(signature string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM transaction_history WHERE signature = ?`, signature).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ledger for %s: %w", signature, err)
	}
	return true, nil
}

// Claim writes the notified row for an event. The uniqueness constraint on
// the signature column arbitrates: whoever inserts first owns the
// notification, everyone else gets AlreadyClaimed. That holds across
// subscribers, cycles, and restarts.
func (s *Store) Claim(ev solmon.Event, subscriber int64) (solmon.ClaimOutcome, error) {
	res, err := s.db.Exec(
		`INSERT INTO transaction_history
		 (wallet_address, chat_id, signature, amount, tx_type, timestamp, block_time, status, notified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'confirmed', 1, ?)
		 ON CONFLICT (signature) DO NOTHING`,
		ev.Account, subscriber, ev.Signature, ev.SOL(), ev.Kind.String(),
		blockStamp(ev), blockUnix(ev), nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("claim %s: %w", ev.Signature, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("claim %s: %w", ev.Signature, err)
	}
	if n == 0 {
		return solmon.AlreadyClaimed, nil
	}
	return solmon.Claimed, nil
}

// RecordDust writes a ledger row for a sub-threshold event so later cycles
// skip it, without marking anything notified. Re-recording is a no-op.
func (s *Store) RecordDust(ev solmon.Event, subscriber int64) error {
	_, err := s.db.Exec(
		`INSERT INTO transaction_history
		 (wallet_address, chat_id, signature, amount, tx_type, timestamp, block_time, status, notified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'confirmed', 0, ?)
		 ON CONFLICT (signature) DO NOTHING`,
		ev.Account, subscriber, ev.Signature, ev.SOL(), solmon.KindDust.String(),
		blockStamp(ev), blockUnix(ev), nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("record dust %s: %w", ev.Signature, err)
	}
	return nil
}

// LedgerEntry is one row of notification history.
type LedgerEntry struct {
	Account   string
	Signature string
	AmountSOL float64
	Kind      string
	BlockTime int64
	Notified  bool
}

// RecentLedger returns the newest ledger rows, most recent first.
func (s *Store) RecentLedger(limit int) ([]LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT wallet_address, signature, amount, tx_type, block_time, notified
		 FROM transaction_history ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	out := make([]LedgerEntry, 0, limit)
	for rows.Next() {
		var e LedgerEntry
		var notified int
		if err := rows.Scan(&e.Account, &e.Signature, &e.AmountSOL, &e.Kind, &e.BlockTime, &notified); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		e.Notified = notified != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return out, nil
}

func blockStamp(ev solmon.Event) string {
	if ev.BlockTime.IsZero() {
		return ""
	}
	return ev.BlockTime.UTC().Format("2006-01-02 15:04:05")
}

func blockUnix(ev solmon.Event) int64 {
	if ev.BlockTime.IsZero() {
		return 0
	}
	return ev.BlockTime.Unix()
}
