package store

import (
	"database/sql"
	"fmt"

	"deepquant/internal/model"
)

// InsertEntrySignal inserts a PENDING entry signal. The unique
// (symbol, timestamp) index suppresses duplicates from overlapping
// strategy cycles; the bool reports whether a row was actually written.
func (s *Store) InsertEntrySignal(sig model.Signal) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO trade_signals (symbol, timestamp, signal_type, status, size, atr, order_id)
		VALUES (?, ?, ?, ?, NULL, ?, NULL)
		ON CONFLICT (symbol, timestamp) DO NOTHING
	`, sig.Symbol, model.FormatTime(sig.Timestamp), string(sig.SignalType), string(model.StatusPending), nullFloat(sig.ATR))
	if err != nil {
		return false, fmt.Errorf("insert entry signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasSignalAt reports whether any signal exists for (symbol, timestamp).
func (s *Store) HasSignalAt(symbol string, ts string) (bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM trade_signals WHERE symbol = ? AND timestamp = ?`, symbol, ts).Scan(&id)
	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, err
	}
}

// HasPendingExit reports whether symbol already has a PENDING exit-type
// signal. Exit candidates are deduplicated on this, not on timestamps.
func (s *Store) HasPendingExit(symbol string) (bool, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT id FROM trade_signals
		WHERE symbol = ? AND status = ? AND signal_type LIKE '%EXIT%'
		LIMIT 1
	`, symbol, string(model.StatusPending)).Scan(&id)
	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, err
	}
}

// InsertExitSignal inserts a PENDING exit signal with the size-0
// sentinel ("liquidate everything"). Timestamp is wall clock.
func (s *Store) InsertExitSignal(sig model.Signal) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO trade_signals (symbol, timestamp, signal_type, status, size, atr, order_id)
		VALUES (?, ?, ?, ?, 0, NULL, NULL)
		ON CONFLICT (symbol, timestamp) DO NOTHING
	`, sig.Symbol, model.FormatTime(sig.Timestamp), string(sig.SignalType), string(model.StatusPending))
	if err != nil {
		return false, fmt.Errorf("insert exit signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PendingSignal is a PENDING signal joined with the most recent 5m close
// for its symbol. The close resolves via a correlated subquery rather
// than an equal-timestamp join, so a signal survives a missing candle at
// its own moment. Close is nil when the symbol has no 5m data at all.
type PendingSignal struct {
	model.Signal
	Close *float64
}

// PendingSignals returns all PENDING signals with their latest closes.
func (s *Store) PendingSignals() ([]PendingSignal, error) {
	rows, err := s.db.Query(`
		SELECT
			ts.id, ts.symbol, ts.timestamp, ts.signal_type, ts.status, ts.size, ts.atr, ts.order_id,
			(
				SELECT close FROM market_data md
				WHERE md.symbol = ts.symbol AND md.timeframe = '5m'
				ORDER BY md.timestamp DESC
				LIMIT 1
			) AS close
		FROM trade_signals ts
		WHERE ts.status = ?
	`, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("query pending signals: %w", err)
	}
	defer rows.Close()

	var out []PendingSignal
	for rows.Next() {
		var (
			ps    PendingSignal
			close sql.NullFloat64
		)
		if err := scanSignal(rows, &ps.Signal, &close); err != nil {
			return nil, err
		}
		ps.Close = scanFloat(close)
		out = append(out, ps)
	}
	return out, rows.Err()
}

// SizedUpdate carries one sizing decision for ApplySizing.
type SizedUpdate struct {
	ID   int64
	Size float64
}

// ApplySizing commits all sizing updates and expirations of one risk
// cycle atomically.
func (s *Store) ApplySizing(sized []SizedUpdate, expired []int64) error {
	if len(sized) == 0 && len(expired) == 0 {
		return nil
	}
	return s.Tx(func(tx *sql.Tx) error {
		for _, id := range expired {
			if _, err := tx.Exec(`UPDATE trade_signals SET status = ? WHERE id = ?`,
				string(model.StatusExpired), id); err != nil {
				return err
			}
		}
		for _, u := range sized {
			if _, err := tx.Exec(`UPDATE trade_signals SET size = ?, status = ? WHERE id = ?`,
				u.Size, string(model.StatusSized), u.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SizedSignals returns all signals awaiting execution.
func (s *Store) SizedSignals() ([]model.Signal, error) {
	return s.signalsByStatus(model.StatusSized)
}

// SubmittedSignals returns all signals with an order in flight.
func (s *Store) SubmittedSignals() ([]model.Signal, error) {
	return s.signalsByStatus(model.StatusSubmitted)
}

// CountSubmitted returns the number of SUBMITTED signals; the executor
// uses it to decide between the monitoring pulse and the normal cadence.
func (s *Store) CountSubmitted() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM trade_signals WHERE status = ?`,
		string(model.StatusSubmitted)).Scan(&n)
	return n, err
}

// UpdateSignalStatus moves a signal to a new lifecycle state.
func (s *Store) UpdateSignalStatus(id int64, status model.SignalStatus) error {
	_, err := s.db.Exec(`UPDATE trade_signals SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// MarkSubmitted records the broker order id and moves the signal to
// SUBMITTED in one statement.
func (s *Store) MarkSubmitted(id int64, orderID string) error {
	_, err := s.db.Exec(`UPDATE trade_signals SET status = ?, order_id = ? WHERE id = ?`,
		string(model.StatusSubmitted), orderID, id)
	return err
}

func (s *Store) signalsByStatus(status model.SignalStatus) ([]model.Signal, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, timestamp, signal_type, status, size, atr, order_id
		FROM trade_signals
		WHERE status = ?
		ORDER BY id ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query signals by status: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		if err := scanSignal(rows, &sig); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// scanSignal scans the canonical signal column list plus any extras.
func scanSignal(rows *sql.Rows, sig *model.Signal, extra ...any) error {
	var (
		ts      string
		st, typ string
		size    sql.NullFloat64
		atr     sql.NullFloat64
		orderID sql.NullString
	)
	dest := append([]any{&sig.ID, &sig.Symbol, &ts, &typ, &st, &size, &atr, &orderID}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("scan signal: %w", err)
	}
	parsed, err := model.ParseTime(ts)
	if err != nil {
		return fmt.Errorf("bad signal timestamp %q: %w", ts, err)
	}
	sig.Timestamp = parsed
	sig.SignalType = model.SignalType(typ)
	sig.Status = model.SignalStatus(st)
	sig.Size = scanFloat(size)
	sig.ATR = scanFloat(atr)
	if orderID.Valid {
		v := orderID.String
		sig.OrderID = &v
	}
	return nil
}
