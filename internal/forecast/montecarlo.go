// Package forecast produces short-horizon price forecasts from 5m
// closes and blends them into the ensemble consumed by the strategy.
package forecast

import (
	"hash/fnv"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Forecast geometry.
const (
	HorizonSteps = 6  // 30 minutes on 5m bars
	sampleCount  = 20 // Monte Carlo paths per forecaster

	// smallWindow is the trailing slice the fast forecaster calibrates
	// on; the slow forecaster uses the whole context window.
	smallWindow = 16
)

// mcForecaster is a geometric random walk with drift, calibrated on the
// log returns of its input window. Predict returns the median of the
// sampled distribution at the horizon.
type mcForecaster struct {
	window int // 0 means the full series
}

// Predict forecasts the price HorizonSteps ahead of the last close.
// The RNG is seeded from (symbol, timestamp) so repeated runs over the
// same candle produce the same forecast.
func (f mcForecaster) Predict(closes []float64, symbol string, timestamp string) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	current := closes[n-1]

	series := closes
	if f.window > 0 && n > f.window {
		series = closes[n-f.window:]
	}
	returns := logReturns(series)
	if len(returns) < 2 {
		return current
	}

	mu, sigma := stat.MeanStdDev(returns, nil)
	if math.IsNaN(mu) || math.IsNaN(sigma) {
		return current
	}
	if sigma <= 0 {
		// flat series: the walk is pure drift
		return current * math.Exp(mu*HorizonSteps)
	}

	normal := distuv.Normal{
		Mu:    mu,
		Sigma: sigma,
		Src:   rand.NewSource(seed(symbol, timestamp, f.window)),
	}

	samples := make([]float64, sampleCount)
	for i := range samples {
		sum := 0.0
		for step := 0; step < HorizonSteps; step++ {
			sum += normal.Rand()
		}
		samples[i] = current * math.Exp(sum)
	}
	sort.Float64s(samples)
	return stat.Quantile(0.5, stat.Empirical, samples, nil)
}

func logReturns(closes []float64) []float64 {
	var out []float64
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 || math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// seed derives a stable RNG seed from the forecast identity. The window
// is mixed in so the small and large forecasters draw different paths.
func seed(symbol, timestamp string, window int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte{'|'})
	h.Write([]byte(timestamp))
	h.Write([]byte{'|', byte(window)})
	return h.Sum64()
}
