package store

import (
	"fmt"

	"deepquant/internal/model"
)

// InsertExecutedTrade records a fill in the audit trail.
func (s *Store) InsertExecutedTrade(t model.ExecutedTrade) error {
	_, err := s.db.Exec(`
		INSERT INTO executed_trades (symbol, timestamp, price, qty, side, signal_type)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.Symbol, model.FormatTime(t.Timestamp), t.Price, t.Qty, t.Side, string(t.SignalType))
	if err != nil {
		return fmt.Errorf("insert executed trade: %w", err)
	}
	return nil
}
