package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"deepquant/internal/broker"
	"deepquant/internal/metrics"
	"deepquant/internal/model"
	"deepquant/internal/store"
)

// entryLookback is how far back the entry join reaches.
const entryLookback = 60 * time.Minute

// PositionLister is the slice of the broker client the exit scan needs.
type PositionLister interface {
	ListPositions(ctx context.Context) ([]broker.Position, error)
}

// Engine evaluates entries and exits once per cycle.
type Engine struct {
	Benchmark string
	Kings     map[string]bool
	Broker    PositionLister
	Log       zerolog.Logger
	Metrics   *metrics.Metrics

	now func() time.Time
}

// NewEngine builds the strategy engine. kings is the DEEP_VALUE_BUY
// watchlist.
func NewEngine(benchmark string, kings []string, b PositionLister, log zerolog.Logger, m *metrics.Metrics) *Engine {
	set := make(map[string]bool, len(kings))
	for _, k := range kings {
		set[k] = true
	}
	return &Engine{
		Benchmark: benchmark,
		Kings:     set,
		Broker:    b,
		Log:       log,
		Metrics:   m,
		now:       time.Now,
	}
}

// Cycle runs one entry pass followed by one exit pass.
func (e *Engine) Cycle(ctx context.Context, st *store.Store) {
	start := time.Now()

	if err := e.evaluateEntries(st); err != nil {
		e.Metrics.CycleErrors.Inc()
		e.Log.Error().Err(err).Msg("entry evaluation failed")
	}
	if err := e.evaluateExits(ctx, st); err != nil {
		e.Metrics.CycleErrors.Inc()
		e.Log.Error().Err(err).Msg("exit evaluation failed")
	}

	e.Metrics.CyclesTotal.Inc()
	e.Metrics.CycleDuration.Observe(time.Since(start).Seconds())
}

func (e *Engine) evaluateEntries(st *store.Store) error {
	snap, err := st.LatestSnapshot(e.Benchmark)
	if err != nil {
		return fmt.Errorf("benchmark snapshot: %w", err)
	}
	regime := classifyRegime(snap)

	cutoff := e.now().Add(-entryLookback)
	candidates, err := st.EntryCandidates(cutoff, e.Benchmark)
	if err != nil {
		return err
	}

	created := 0
	for i := range candidates {
		c := &candidates[i]
		if !c.Complete() {
			e.Metrics.SymbolsSkipped.Inc()
			continue
		}
		sigType := evaluateTiers(c, regime, e.Kings)
		if sigType == "" {
			continue
		}
		inserted, err := st.InsertEntrySignal(model.Signal{
			Symbol:     c.Symbol,
			Timestamp:  c.Timestamp,
			SignalType: sigType,
			ATR:        c.ATR14,
		})
		if err != nil {
			e.Log.Error().Err(err).Str("symbol", c.Symbol).Msg("signal insert failed")
			continue
		}
		if inserted {
			created++
			e.Metrics.SignalsCreated.WithLabelValues(string(sigType)).Inc()
			e.Log.Info().
				Str("symbol", c.Symbol).
				Str("signal_type", string(sigType)).
				Str("regime", string(regime)).
				Time("candle", c.Timestamp).
				Msg("entry signal created")
		}
	}
	if created > 0 {
		e.Log.Info().Int("signals", created).Int("candidates", len(candidates)).Msg("entry pass complete")
	}
	return nil
}

// Exit thresholds over the position's unrealized P/L fraction.
const (
	takeProfitMinPLPC = 0.01
	takeProfitMaxPct  = -0.4
	panicMaxPct       = -0.5
	panicMaxRSI       = 40.0
)

func (e *Engine) evaluateExits(ctx context.Context, st *store.Store) error {
	positions, err := e.Broker.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	for i := range positions {
		pos := &positions[i]
		if pos.UnrealizedPLPC == "" {
			continue
		}
		plpc := pos.PLPC()

		snap, err := st.LatestSnapshot(pos.Symbol)
		if err != nil || snap == nil {
			continue
		}
		ensPct, err := st.LatestEnsemblePct(pos.Symbol)
		if err != nil || ensPct == nil {
			continue
		}

		var sigType model.SignalType
		switch {
		case plpc > takeProfitMinPLPC &&
			(*ensPct < takeProfitMaxPct || (snap.Close != nil && snap.SMA50 != nil && *snap.Close < *snap.SMA50)):
			sigType = model.SignalTakeProfit
		case plpc < 0 && *ensPct < panicMaxPct &&
			snap.RSI14 != nil && *snap.RSI14 < panicMaxRSI:
			sigType = model.SignalPanicExit
		default:
			continue
		}

		dup, err := st.HasPendingExit(pos.Symbol)
		if err != nil || dup {
			continue
		}
		inserted, err := st.InsertExitSignal(model.Signal{
			Symbol:     pos.Symbol,
			Timestamp:  e.now().UTC(),
			SignalType: sigType,
		})
		if err != nil {
			e.Log.Error().Err(err).Str("symbol", pos.Symbol).Msg("exit insert failed")
			continue
		}
		if inserted {
			e.Metrics.SignalsCreated.WithLabelValues(string(sigType)).Inc()
			e.Log.Info().
				Str("symbol", pos.Symbol).
				Str("signal_type", string(sigType)).
				Float64("plpc", plpc).
				Msg("exit signal created")
		}
	}
	return nil
}
