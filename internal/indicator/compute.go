// Package indicator recomputes intraday technical indicators for the
// current session from stored 5m bars.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"deepquant/internal/model"
)

// Indicator periods.
const (
	smaPeriod    = 50
	rsiPeriod    = 14
	atrPeriod    = 14
	volSMAPeriod = 20
	bbPeriod     = 20
	bbStdDev     = 2.0

	dailySMAPeriod = 200
)

// Compute derives the full indicator set over a chronological 5m window
// and returns rows for the most recent session day only. dailySMA200 is
// broadcast onto every returned row (nil when unknown). Rows missing
// RSI-14 or SMA-50 are dropped.
func Compute(bars []model.MarketBar, dailySMA200 *float64) []model.IndicatorRow {
	n := len(bars)
	if n == 0 {
		return nil
	}

	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
	}
	sanitizeVolume(volume)

	sma50 := talib.Sma(closes, smaPeriod)
	rsi14 := talib.Rsi(closes, rsiPeriod)
	atr14 := talib.Atr(high, low, closes, atrPeriod)
	volSMA := talib.Sma(volume, volSMAPeriod)
	_, _, lowerBB := talib.BBands(closes, bbPeriod, bbStdDev, bbStdDev, talib.SMA)
	vwap := sessionVWAP(bars, volume)

	// talib zero-pads its warm-up prefix; mask it to missing explicitly.
	maxDate := bars[n-1].Timestamp.UTC().Format("2006-01-02")

	var rows []model.IndicatorRow
	for i, b := range bars {
		if b.Timestamp.UTC().Format("2006-01-02") != maxDate {
			continue
		}
		row := model.IndicatorRow{
			Symbol:      b.Symbol,
			Timestamp:   b.Timestamp,
			Timeframe:   b.Timeframe,
			RSI14:       warmedUp(rsi14, i, rsiPeriod),
			SMA50:       warmedUp(sma50, i, smaPeriod-1),
			SMA200:      dailySMA200,
			LowerBB:     warmedUp(lowerBB, i, bbPeriod-1),
			VWAP:        finite(vwap[i]),
			ATR14:       warmedUp(atr14, i, atrPeriod),
			VolumeSMA20: warmedUp(volSMA, i, volSMAPeriod-1),
		}
		if row.RSI14 == nil || row.SMA50 == nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// DailySMA200 computes the 200-day SMA from chronological daily closes.
// Returns nil when fewer than 200 closes are available.
func DailySMA200(closes []float64) *float64 {
	if len(closes) < dailySMAPeriod {
		return nil
	}
	out := talib.Sma(closes, dailySMAPeriod)
	return finite(out[len(out)-1])
}

// sanitizeVolume treats zero volume as missing, forward-fills, and
// zero-fills whatever remains at the head of the series.
func sanitizeVolume(volume []float64) {
	last := math.NaN()
	for i, v := range volume {
		if v == 0 || math.IsNaN(v) {
			volume[i] = last
		} else {
			last = v
		}
	}
	for i, v := range volume {
		if math.IsNaN(v) {
			volume[i] = 0
		}
	}
}

// sessionVWAP computes a VWAP that anchors at the start of each UTC
// session day: cumulative typical-price*volume over cumulative volume.
func sessionVWAP(bars []model.MarketBar, volume []float64) []float64 {
	out := make([]float64, len(bars))
	var cumPV, cumV float64
	day := ""
	for i, b := range bars {
		d := b.Timestamp.UTC().Format("2006-01-02")
		if d != day {
			day = d
			cumPV, cumV = 0, 0
		}
		typical := (b.High + b.Low + b.Close) / 3
		if !math.IsNaN(typical) && !math.IsNaN(volume[i]) {
			cumPV += typical * volume[i]
			cumV += volume[i]
		}
		if cumV > 0 {
			out[i] = cumPV / cumV
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// warmedUp returns the value at index i, or nil when i is still inside
// the indicator's warm-up prefix or the value is not finite.
func warmedUp(series []float64, i, firstValid int) *float64 {
	if i < firstValid {
		return nil
	}
	return finite(series[i])
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
