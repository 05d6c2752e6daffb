package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deepquant/internal/metrics"
	"deepquant/internal/model"
	"deepquant/internal/store"
)

// Fetch depths per symbol.
const (
	dailyFetch    = 300
	intradayFetch = 3000

	// minimum window before computing anything useful
	minIntradayBars = 50

	// bounded fan-out across symbols within one cycle
	maxParallel = 5
)

// Engine recomputes current-session indicators for the tracked universe
// plus the benchmark symbol every cycle.
type Engine struct {
	Symbols   []string
	Benchmark string
	Log       zerolog.Logger
	Metrics   *metrics.Metrics

	mu    sync.Mutex
	cache map[string]dailyEntry // symbol -> cached daily SMA-200
}

type dailyEntry struct {
	date  string // UTC date the value was computed for
	value *float64
}

// NewEngine builds the indicator engine.
func NewEngine(symbols []string, benchmark string, log zerolog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		Symbols:   symbols,
		Benchmark: benchmark,
		Log:       log,
		Metrics:   m,
		cache:     make(map[string]dailyEntry, len(symbols)+1),
	}
}

// Cycle runs one full recomputation pass. Per-symbol failures are
// logged and isolated; the cycle itself only fails on setup errors.
func (e *Engine) Cycle(st *store.Store) {
	start := time.Now()
	e.evictStaleCache()

	universe := make([]string, 0, len(e.Symbols)+1)
	universe = append(universe, e.Symbols...)
	universe = append(universe, e.Benchmark)

	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup
	for _, symbol := range universe {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.processSymbol(st, symbol); err != nil {
				e.Metrics.SymbolsSkipped.Inc()
				e.Log.Warn().Err(err).Str("symbol", symbol).Msg("indicator pass skipped symbol")
			}
		}(symbol)
	}
	wg.Wait()

	e.Metrics.CyclesTotal.Inc()
	e.Metrics.CycleDuration.Observe(time.Since(start).Seconds())
	e.Log.Info().Int("symbols", len(universe)).Dur("took", time.Since(start)).Msg("indicator cycle complete")
}

func (e *Engine) processSymbol(st *store.Store, symbol string) error {
	sma200, err := e.dailySMA200(st, symbol)
	if err != nil {
		return err
	}

	bars, err := st.RecentBars(symbol, model.Timeframe5m, intradayFetch)
	if err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) < minIntradayBars {
		return fmt.Errorf("only %d bars, need %d", len(bars), minIntradayBars)
	}

	rows := Compute(bars, sma200)
	if len(rows) == 0 {
		return fmt.Errorf("no current-day rows survived warm-up")
	}
	if err := st.UpsertIndicators(rows); err != nil {
		return fmt.Errorf("upsert indicators: %w", err)
	}
	e.Metrics.IndicatorRowsWritten.Add(float64(len(rows)))
	return nil
}

// dailySMA200 resolves the 200-day SMA through the per-day cache.
func (e *Engine) dailySMA200(st *store.Store, symbol string) (*float64, error) {
	today := time.Now().UTC().Format("2006-01-02")

	e.mu.Lock()
	if entry, ok := e.cache[symbol]; ok && entry.date == today {
		e.mu.Unlock()
		return entry.value, nil
	}
	e.mu.Unlock()

	closes, err := st.DailyCloses(symbol, dailyFetch)
	if err != nil {
		return nil, fmt.Errorf("fetch daily closes: %w", err)
	}
	value := DailySMA200(closes)

	e.mu.Lock()
	e.cache[symbol] = dailyEntry{date: today, value: value}
	e.mu.Unlock()
	return value, nil
}

// evictStaleCache drops cache entries computed for a prior date so the
// first pass of a new day recomputes everything.
func (e *Engine) evictStaleCache() {
	today := time.Now().UTC().Format("2006-01-02")
	e.mu.Lock()
	for symbol, entry := range e.cache {
		if entry.date != today {
			delete(e.cache, symbol)
		}
	}
	e.mu.Unlock()
}
