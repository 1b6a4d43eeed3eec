package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"solmon"
)

const watchColumns = `id, chat_id, wallet_address, private_key_encrypted, nickname, is_active, last_signature, monitoring_start_time`

// AddWatch registers a watch. Re-adding an account the subscriber already
// watches actively reports a duplicate. An inactive row is reactivated with
// a fresh inception and a cleared cursor so old activity is not replayed.
func (s *Store) AddWatch(w solmon.Watch) (solmon.AddOutcome, error) {
	inception := w.Inception
	if inception.IsZero() {
		inception = time.Now()
	}
	stamp := nowStamp()

	var id int64
	var active int
	err := s.db.QueryRow(
		`SELECT id, is_active FROM monitored_wallets WHERE chat_id = ? AND wallet_address = ?`,
		w.Subscriber, w.Account,
	).Scan(&id, &active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec(
			`INSERT INTO monitored_wallets
			 (chat_id, wallet_address, private_key_encrypted, nickname, is_active, last_signature, monitoring_start_time, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, '', ?, ?, ?)`,
			w.Subscriber, w.Account, w.Credential, w.Nickname, inception.Unix(), stamp, stamp,
		); err != nil {
			return 0, fmt.Errorf("insert watch: %w", err)
		}
		return solmon.AddAdded, nil
	case err != nil:
		return 0, fmt.Errorf("look up watch: %w", err)
	case active != 0:
		return solmon.AddDuplicate, nil
	default:
		if _, err := s.db.Exec(
			`UPDATE monitored_wallets
			 SET is_active = 1, private_key_encrypted = ?, nickname = ?, last_signature = '',
			     monitoring_start_time = ?, updated_at = ?
			 WHERE id = ?`,
			w.Credential, w.Nickname, inception.Unix(), stamp, id,
		); err != nil {
			return 0, fmt.Errorf("reactivate watch: %w", err)
		}
		return solmon.AddAdded, nil
	}
}

// RemoveWatch deactivates the subscriber's watch on account. The row stays
// for history; only polling and routing stop.
func (s *Store) RemoveWatch(subscriber int64, account string) (solmon.RemoveOutcome, error) {
	res, err := s.db.Exec(
		`UPDATE monitored_wallets SET is_active = 0, updated_at = ?
		 WHERE chat_id = ? AND wallet_address = ? AND is_active = 1`,
		nowStamp(), subscriber, account,
	)
	if err != nil {
		return 0, fmt.Errorf("remove watch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove watch: %w", err)
	}
	if n == 0 {
		return solmon.NotFound, nil
	}
	return solmon.Removed, nil
}

// RemoveWatchByID deactivates one watch row. Callback buttons address
// watches by row id.
func (s *Store) RemoveWatchByID(id int64) (solmon.RemoveOutcome, error) {
	res, err := s.db.Exec(
		`UPDATE monitored_wallets SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		nowStamp(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("remove watch %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove watch %d: %w", id, err)
	}
	if n == 0 {
		return solmon.NotFound, nil
	}
	return solmon.Removed, nil
}

// WatchByID fetches one watch row regardless of its active flag.
func (s *Store) WatchByID(id int64) (solmon.Watch, bool, error) {
	row := s.db.QueryRow(`SELECT `+watchColumns+` FROM monitored_wallets WHERE id = ?`, id)
	w, err := scanWatch(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return solmon.Watch{}, false, nil
	}
	if err != nil {
		return solmon.Watch{}, false, fmt.Errorf("query watch %d: %w", id, err)
	}
	return w, true, nil
}

// AllActive returns every active watch ordered by account so callers can
// group rows for the same account into one poll.
func (s *Store) AllActive() ([]solmon.Watch, error) {
	rows, err := s.db.Query(
		`SELECT ` + watchColumns + ` FROM monitored_wallets WHERE is_active = 1 ORDER BY wallet_address, chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active watches: %w", err)
	}
	defer rows.Close()
	return collectWatches(rows)
}

// WatchesFor returns the subscriber's active watches, oldest first.
func (s *Store) WatchesFor(subscriber int64) ([]solmon.Watch, error) {
	rows, err := s.db.Query(
		`SELECT `+watchColumns+` FROM monitored_wallets WHERE chat_id = ? AND is_active = 1 ORDER BY id`,
		subscriber,
	)
	if err != nil {
		return nil, fmt.Errorf("list watches for %d: %w", subscriber, err)
	}
	defer rows.Close()
	return collectWatches(rows)
}

// SubscribersOf returns the active watches on one account.
func (s *Store) SubscribersOf(account string) ([]solmon.Watch, error) {
	rows, err := s.db.Query(
		`SELECT `+watchColumns+` FROM monitored_wallets WHERE wallet_address = ? AND is_active = 1 ORDER BY chat_id`,
		account,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscribers of %s: %w", account, err)
	}
	defer rows.Close()
	return collectWatches(rows)
}

// AdvanceCursor moves every active watch on account to signature. One
// statement so a cancelled poll can never leave the account half advanced.
func (s *Store) AdvanceCursor(account, signature string) error {
	_, err := s.db.Exec(
		`UPDATE monitored_wallets SET last_signature = ?, updated_at = ?
		 WHERE wallet_address = ? AND is_active = 1`,
		signature, nowStamp(), account,
	)
	if err != nil {
		return fmt.Errorf("advance cursor for %s: %w", account, err)
	}
	return nil
}

// TransferAllTo hands every other subscriber's active watch to target.
// Accounts the target already watches actively are folded away; an inactive
// target row is revived with the source row's state.
func (s *Store) TransferAllTo(target int64) (solmon.TransferStats, error) {
	var stats solmon.TransferStats

	rows, err := s.db.Query(
		`SELECT `+watchColumns+` FROM monitored_wallets WHERE is_active = 1 AND chat_id != ? ORDER BY id`,
		target,
	)
	if err != nil {
		return stats, fmt.Errorf("list foreign watches: %w", err)
	}
	foreign, err := collectWatches(rows)
	rows.Close()
	if err != nil {
		return stats, err
	}

	for _, w := range foreign {
		var targetID int64
		var targetActive int
		err := s.db.QueryRow(
			`SELECT id, is_active FROM monitored_wallets WHERE chat_id = ? AND wallet_address = ?`,
			target, w.Account,
		).Scan(&targetID, &targetActive)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := s.db.Exec(
				`UPDATE monitored_wallets SET chat_id = ?, updated_at = ? WHERE id = ?`,
				target, nowStamp(), w.ID,
			); err != nil {
				return stats, fmt.Errorf("transfer watch %d: %w", w.ID, err)
			}
			stats.Transferred++
		case err != nil:
			return stats, fmt.Errorf("look up target watch: %w", err)
		case targetActive != 0:
			if _, err := s.db.Exec(
				`UPDATE monitored_wallets SET is_active = 0, updated_at = ? WHERE id = ?`,
				nowStamp(), w.ID,
			); err != nil {
				return stats, fmt.Errorf("fold watch %d: %w", w.ID, err)
			}
			stats.AlreadyOwned++
			stats.Deactivated++
		default:
			if _, err := s.db.Exec(
				`UPDATE monitored_wallets
				 SET is_active = 1, private_key_encrypted = ?, nickname = ?, last_signature = ?,
				     monitoring_start_time = ?, updated_at = ?
				 WHERE id = ?`,
				w.Credential, w.Nickname, w.Cursor, w.Inception.Unix(), nowStamp(), targetID,
			); err != nil {
				return stats, fmt.Errorf("revive target watch %d: %w", targetID, err)
			}
			if _, err := s.db.Exec(
				`UPDATE monitored_wallets SET is_active = 0, updated_at = ? WHERE id = ?`,
				nowStamp(), w.ID,
			); err != nil {
				return stats, fmt.Errorf("fold watch %d: %w", w.ID, err)
			}
			stats.Transferred++
			stats.Deactivated++
		}
	}
	return stats, nil
}

func collectWatches(rows *sql.Rows) ([]solmon.Watch, error) {
	out := make([]solmon.Watch, 0)
	for rows.Next() {
		w, err := scanWatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan watch row: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch rows: %w", err)
	}
	return out, nil
}

func scanWatch(scan func(dest ...any) error) (solmon.Watch, error) {
	var w solmon.Watch
	var active int
	var inception int64
	if err := scan(&w.ID, &w.Subscriber, &w.Account, &w.Credential, &w.Nickname, &active, &w.Cursor, &inception); err != nil {
		return solmon.Watch{}, err
	}
	w.Active = active != 0
	w.Inception = time.Unix(inception, 0).UTC()
	return w, nil
}
