package store

import (
	"database/sql"
	"fmt"
)

// ConfigValue reads one key from system_config, returning fallback when
// the key is absent.
func (s *Store) ConfigValue(key, fallback string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM system_config WHERE key = ?`, key).Scan(&v)
	switch err {
	case nil:
		return v, nil
	case sql.ErrNoRows:
		return fallback, nil
	default:
		return fallback, fmt.Errorf("read config %q: %w", key, err)
	}
}

// SetConfigValue upserts one key in system_config.
func (s *Store) SetConfigValue(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO system_config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
