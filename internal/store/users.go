package store

import "fmt"

// UpsertUser records a subscriber the first time they talk to the bot and
// refreshes their handle on every later contact.
func (s *Store) UpsertUser(chatID int64, username, firstName, lastName string) error {
	stamp := nowStamp()
	_, err := s.db.Exec(
		`INSERT INTO users (chat_id, username, first_name, last_name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET
		 username = excluded.username,
		 first_name = excluded.first_name,
		 last_name = excluded.last_name,
		 updated_at = excluded.updated_at`,
		chatID, username, firstName, lastName, stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", chatID, err)
	}
	return nil
}

// UserCount returns how many subscribers have ever registered.
func (s *Store) UserCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
