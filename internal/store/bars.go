package store

import (
	"database/sql"
	"fmt"
	"math"

	"deepquant/internal/model"
)

// RecentBars returns up to limit bars for (symbol, timeframe), newest
// first in the query and reversed to chronological order for callers.
// NULL numeric columns come back as NaN.
func (s *Store) RecentBars(symbol, timeframe string, limit int) ([]model.MarketBar, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, open, high, low, close, volume
		FROM market_data
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("query market_data: %w", err)
	}
	defer rows.Close()

	var bars []model.MarketBar
	for rows.Next() {
		var (
			ts            string
			o, h, l, c, v sql.NullFloat64
		)
		if err := rows.Scan(&ts, &o, &h, &l, &c, &v); err != nil {
			return nil, fmt.Errorf("scan market_data: %w", err)
		}
		parsed, err := model.ParseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("bad bar timestamp %q: %w", ts, err)
		}
		bars = append(bars, model.MarketBar{
			Symbol:    symbol,
			Timestamp: parsed,
			Timeframe: timeframe,
			Open:      orNaN(o),
			High:      orNaN(h),
			Low:       orNaN(l),
			Close:     orNaN(c),
			Volume:    orNaN(v),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverseBars(bars)
	return bars, nil
}

// DailyCloses returns up to limit daily closes for symbol in
// chronological order. NULL closes are skipped.
func (s *Store) DailyCloses(symbol string, limit int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT close
		FROM market_data
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, model.Timeframe1d, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily closes: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c sql.NullFloat64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		if c.Valid {
			closes = append(closes, c.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

// ClosePoint is one (timestamp, close) pair from the 5m series; Close is
// NaN when the stored value is NULL.
type ClosePoint struct {
	Timestamp string
	Close     float64
}

// RecentCloses returns up to limit 5m close points for symbol in
// chronological order, preserving NULLs as NaN so the caller can
// forward/backward fill.
func (s *Store) RecentCloses(symbol string, limit int) ([]ClosePoint, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, close
		FROM market_data
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, model.Timeframe5m, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent closes: %w", err)
	}
	defer rows.Close()

	var pts []ClosePoint
	for rows.Next() {
		var (
			ts string
			c  sql.NullFloat64
		)
		if err := rows.Scan(&ts, &c); err != nil {
			return nil, err
		}
		pts = append(pts, ClosePoint{Timestamp: ts, Close: orNaN(c)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
	return pts, nil
}

// InsertBars writes bars with ON CONFLICT DO NOTHING semantics
// (append-only timeseries; re-ingestion never rewrites history).
func (s *Store) InsertBars(bars []model.MarketBar) error {
	return s.Tx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO market_data (symbol, timestamp, timeframe, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (symbol, timestamp, timeframe) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, b := range bars {
			if _, err := stmt.Exec(b.Symbol, model.FormatTime(b.Timestamp), b.Timeframe,
				naNToNull(b.Open), naNToNull(b.High), naNToNull(b.Low), naNToNull(b.Close), naNToNull(b.Volume)); err != nil {
				return err
			}
		}
		return nil
	})
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func naNToNull(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func reverseBars(bars []model.MarketBar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
