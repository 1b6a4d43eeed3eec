package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"solmon"
)

// minNotifyKey holds the notification floor in SOL, as entered by the admin.
const minNotifyKey = "min_notification_amount"

// ReadSetting returns the stored value for key.
func (s *Store) ReadSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT setting_value FROM settings WHERE setting_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %q: %w", key, err)
	}
	return value, true, nil
}

// WriteSetting upserts key.
func (s *Store) WriteSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (setting_key, setting_value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (setting_key) DO UPDATE SET
		 setting_value = excluded.setting_value,
		 updated_at = excluded.updated_at`,
		key, value, nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

// MinNotifyLamports returns the notification floor. Unset or unparsable
// values fall back to the default rather than silencing everything.
func (s *Store) MinNotifyLamports() (int64, error) {
	raw, ok, err := s.ReadSetting(minNotifyKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return solmon.DefaultMinNotifyLamports, nil
	}
	sol, perr := strconv.ParseFloat(raw, 64)
	if perr != nil || sol < 0 || math.IsNaN(sol) || math.IsInf(sol, 0) {
		return solmon.DefaultMinNotifyLamports, nil
	}
	return int64(math.Round(sol * float64(solmon.LamportsPerSOL))), nil
}

// SetMinNotifySOL persists the notification floor in SOL.
func (s *Store) SetMinNotifySOL(sol float64) error {
	if sol < 0 || math.IsNaN(sol) || math.IsInf(sol, 0) {
		return fmt.Errorf("invalid notification floor %v", sol)
	}
	return s.WriteSetting(minNotifyKey, strconv.FormatFloat(sol, 'f', -1, 64))
}
