package forecast

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deepquant/internal/metrics"
	"deepquant/internal/model"
	"deepquant/internal/store"
)

// Context window per symbol.
const (
	contextBars = 64
	minContext  = 10

	maxParallel = 5
)

// Engine produces one ensemble forecast per symbol per cycle.
type Engine struct {
	Symbols []string
	Log     zerolog.Logger
	Metrics *metrics.Metrics

	small mcForecaster
	large mcForecaster
}

// NewEngine builds the forecaster.
func NewEngine(symbols []string, log zerolog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		Symbols: symbols,
		Log:     log,
		Metrics: m,
		small:   mcForecaster{window: smallWindow},
		large:   mcForecaster{window: 0},
	}
}

// Cycle forecasts every symbol with sufficient context. Per-symbol
// failures are isolated.
func (e *Engine) Cycle(st *store.Store) {
	start := time.Now()

	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup
	for _, symbol := range e.Symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.processSymbol(st, symbol); err != nil {
				e.Metrics.SymbolsSkipped.Inc()
				e.Log.Debug().Err(err).Str("symbol", symbol).Msg("forecast skipped symbol")
			}
		}(symbol)
	}
	wg.Wait()

	e.Metrics.CyclesTotal.Inc()
	e.Metrics.CycleDuration.Observe(time.Since(start).Seconds())
	e.Log.Info().Int("symbols", len(e.Symbols)).Dur("took", time.Since(start)).Msg("forecast cycle complete")
}

func (e *Engine) processSymbol(st *store.Store, symbol string) error {
	points, err := st.RecentCloses(symbol, contextBars)
	if err != nil {
		return fmt.Errorf("fetch closes: %w", err)
	}
	if len(points) < minContext {
		return fmt.Errorf("only %d closes, need %d", len(points), minContext)
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	if !fillGaps(closes) {
		return fmt.Errorf("unresolvable gaps in close series")
	}

	latest := points[len(points)-1]
	f := Ensemble(closes, symbol, latest.Timestamp, e.small, e.large)
	ts, err := model.ParseTime(latest.Timestamp)
	if err != nil {
		return fmt.Errorf("bad close timestamp %q: %w", latest.Timestamp, err)
	}
	f.Symbol = symbol
	f.Timestamp = ts

	if err := st.UpsertForecasts([]model.Forecast{f}); err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	e.Metrics.ForecastsWritten.Inc()
	return nil
}

// Ensemble runs both forecasters and blends them per the contract:
// ensemble = 0.7*large + 0.3*small, pct change relative to the current
// price (zero when the current price is zero).
func Ensemble(closes []float64, symbol, timestamp string, small, large mcForecaster) model.Forecast {
	current := closes[len(closes)-1]

	smallPred := small.Predict(closes, symbol, timestamp)
	largePred := large.Predict(closes, symbol, timestamp)
	ensemble := model.EnsembleWeightLarge*largePred + model.EnsembleWeightSmall*smallPred

	pct := 0.0
	if current != 0 {
		pct = (ensemble - current) / current * 100
	}

	return model.Forecast{
		CurrentPrice:           current,
		SmallPredictedPrice:    smallPred,
		LargePredictedPrice:    largePred,
		EnsemblePredictedPrice: ensemble,
		EnsemblePctChange:      pct,
	}
}

// fillGaps forward-fills then back-fills NaN closes in place. Returns
// false when the series is entirely missing.
func fillGaps(closes []float64) bool {
	last := math.NaN()
	for i, v := range closes {
		if math.IsNaN(v) {
			closes[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(closes) - 1; i >= 0; i-- {
		if math.IsNaN(closes[i]) {
			closes[i] = next
		} else {
			next = closes[i]
		}
	}
	return !math.IsNaN(closes[0])
}
