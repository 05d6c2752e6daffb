package store

import (
	"database/sql"
	"fmt"
	"time"

	"deepquant/internal/model"
)

// EntryCandidate is one joined (bar, indicators, forecast) row from the
// entry lookback window. Fields are nil when the source column is NULL;
// the strategy skips incomplete rows.
type EntryCandidate struct {
	Symbol            string
	Timestamp         time.Time
	Close             *float64
	Volume            *float64
	SMA200            *float64
	RSI14             *float64
	VWAP              *float64
	ATR14             *float64
	VolumeSMA20       *float64
	EnsemblePctChange *float64
}

// EntryCandidates joins market data, indicators and forecasts on
// (symbol, timestamp) for all 5m candles at or after cutoff, excluding
// the benchmark symbol.
func (s *Store) EntryCandidates(cutoff time.Time, benchmark string) ([]EntryCandidate, error) {
	rows, err := s.db.Query(`
		SELECT
			m.symbol, m.timestamp, m.close, m.volume,
			t.sma_200, t.rsi_14, t.vwap, t.atr_14, t.volume_sma_20,
			p.ensemble_pct_change
		FROM market_data m
		JOIN technical_indicators t
		  ON m.symbol = t.symbol AND m.timestamp = t.timestamp AND m.timeframe = t.timeframe
		JOIN ai_predictions p
		  ON m.symbol = p.symbol AND m.timestamp = p.timestamp
		WHERE m.timeframe = ?
		  AND m.timestamp >= ?
		  AND m.symbol != ?
		ORDER BY m.symbol, m.timestamp
	`, model.Timeframe5m, model.FormatTime(cutoff), benchmark)
	if err != nil {
		return nil, fmt.Errorf("query entry candidates: %w", err)
	}
	defer rows.Close()

	var out []EntryCandidate
	for rows.Next() {
		var (
			c                   EntryCandidate
			ts                  string
			closePx, volume     sql.NullFloat64
			sma200, rsi, vwap   sql.NullFloat64
			atr, volSMA, ensPct sql.NullFloat64
		)
		if err := rows.Scan(&c.Symbol, &ts, &closePx, &volume,
			&sma200, &rsi, &vwap, &atr, &volSMA, &ensPct); err != nil {
			return nil, fmt.Errorf("scan entry candidate: %w", err)
		}
		parsed, err := model.ParseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("bad candidate timestamp %q: %w", ts, err)
		}
		c.Timestamp = parsed
		c.Close = scanFloat(closePx)
		c.Volume = scanFloat(volume)
		c.SMA200 = scanFloat(sma200)
		c.RSI14 = scanFloat(rsi)
		c.VWAP = scanFloat(vwap)
		c.ATR14 = scanFloat(atr)
		c.VolumeSMA20 = scanFloat(volSMA)
		c.EnsemblePctChange = scanFloat(ensPct)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Complete reports whether every input the entry tiers read is present.
func (c *EntryCandidate) Complete() bool {
	return c.Close != nil && c.Volume != nil && c.SMA200 != nil &&
		c.RSI14 != nil && c.VWAP != nil && c.ATR14 != nil &&
		c.VolumeSMA20 != nil && c.EnsemblePctChange != nil
}
