package store

import "time"

// AppendLog writes one row to system_logs. Logging must never take a
// worker down, so callers are expected to swallow the returned error
// after counting it.
func (s *Store) AppendLog(service, level, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO system_logs (timestamp, service_name, log_level, message)
		VALUES (?, ?, ?, ?)
	`, time.Now().UTC().Format("2006-01-02T15:04:05Z"), service, level, message)
	return err
}
