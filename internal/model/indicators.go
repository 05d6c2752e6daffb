package model

import "time"

// IndicatorRow holds the intraday technicals for one candle, keyed
// (symbol, timestamp, timeframe). Nil means the indicator could not be
// computed for that row (warm-up or missing inputs) and is stored as NULL.
type IndicatorRow struct {
	Symbol      string
	Timestamp   time.Time
	Timeframe   string
	RSI14       *float64
	SMA50       *float64
	SMA200      *float64
	LowerBB     *float64
	VWAP        *float64
	ATR14       *float64
	VolumeSMA20 *float64
}

// Forecast is one ensemble prediction, keyed (symbol, timestamp).
type Forecast struct {
	Symbol                 string
	Timestamp              time.Time
	CurrentPrice           float64
	SmallPredictedPrice    float64
	LargePredictedPrice    float64
	EnsemblePredictedPrice float64
	EnsemblePctChange      float64
}

// EnsembleWeightLarge and EnsembleWeightSmall define the forecast blend:
// ensemble = 0.7*large + 0.3*small.
const (
	EnsembleWeightLarge = 0.7
	EnsembleWeightSmall = 0.3
)
