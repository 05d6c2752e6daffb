package store

import (
	"database/sql"
	"fmt"

	"deepquant/internal/model"
)

// UpsertIndicators writes a batch of indicator rows in one transaction
// using ON CONFLICT DO UPDATE: the engine recomputes the current session
// on every cycle and the newest values win.
func (s *Store) UpsertIndicators(batch []model.IndicatorRow) error {
	if len(batch) == 0 {
		return nil
	}
	return s.Tx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO technical_indicators
				(symbol, timestamp, timeframe, rsi_14, sma_50, sma_200, lower_bb, vwap, atr_14, volume_sma_20)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (symbol, timestamp, timeframe) DO UPDATE SET
				rsi_14        = excluded.rsi_14,
				sma_50        = excluded.sma_50,
				sma_200       = excluded.sma_200,
				lower_bb      = excluded.lower_bb,
				vwap          = excluded.vwap,
				atr_14        = excluded.atr_14,
				volume_sma_20 = excluded.volume_sma_20
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range batch {
			if _, err := stmt.Exec(r.Symbol, model.FormatTime(r.Timestamp), r.Timeframe,
				nullFloat(r.RSI14), nullFloat(r.SMA50), nullFloat(r.SMA200), nullFloat(r.LowerBB),
				nullFloat(r.VWAP), nullFloat(r.ATR14), nullFloat(r.VolumeSMA20)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SymbolSnapshot is the latest joined (bar, indicators) view for one
// symbol on the 5m timeframe; used for the macro regime and for exit
// evaluation.
type SymbolSnapshot struct {
	Close *float64
	SMA50 *float64
	RSI14 *float64
}

// LatestSnapshot joins the newest 5m bar with its indicator row.
// Returns nil when the symbol has no joined row yet.
func (s *Store) LatestSnapshot(symbol string) (*SymbolSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT m.close, t.sma_50, t.rsi_14
		FROM market_data m
		JOIN technical_indicators t
		  ON m.symbol = t.symbol
		 AND m.timestamp = t.timestamp
		 AND m.timeframe = t.timeframe
		WHERE m.symbol = ? AND m.timeframe = ?
		ORDER BY m.timestamp DESC
		LIMIT 1
	`, symbol, model.Timeframe5m)

	var c, sma, rsi sql.NullFloat64
	switch err := row.Scan(&c, &sma, &rsi); err {
	case nil:
		return &SymbolSnapshot{Close: scanFloat(c), SMA50: scanFloat(sma), RSI14: scanFloat(rsi)}, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
}

// LatestEnsemblePct returns the newest ensemble_pct_change for symbol,
// or nil when no forecast exists.
func (s *Store) LatestEnsemblePct(symbol string) (*float64, error) {
	row := s.db.QueryRow(`
		SELECT ensemble_pct_change
		FROM ai_predictions
		WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, symbol)

	var pct sql.NullFloat64
	switch err := row.Scan(&pct); err {
	case nil:
		return scanFloat(pct), nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("query latest ensemble pct: %w", err)
	}
}
