package model

import "time"

// Recognized bar timeframes.
const (
	Timeframe1m = "1m"
	Timeframe5m = "5m"
	Timeframe1d = "1d"
)

// TimeFormat is the canonical timestamp layout used across all tables:
// UTC ISO-8601 with second precision.
const TimeFormat = "2006-01-02T15:04:05Z"

// FormatTime renders t in the canonical UTC layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a canonical timestamp. Falls back to RFC3339 for
// values written with an explicit offset.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// MarketBar is one OHLCV candle, keyed (symbol, timestamp, timeframe).
// Bars are written by the ingestion collaborator and never mutated here.
// Missing numeric values are represented as NaN in memory and NULL at rest.
type MarketBar struct {
	Symbol    string
	Timestamp time.Time // candle open instant, UTC
	Timeframe string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
