package strategy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deepquant/internal/broker"
	"deepquant/internal/metrics"
	"deepquant/internal/model"
	"deepquant/internal/store"
)

type fakePositions struct{ positions []broker.Position }

func (fp *fakePositions) ListPositions(ctx context.Context) ([]broker.Position, error) {
	return fp.positions, nil
}

func newTestEngine(t *testing.T, positions []broker.Position) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	e := NewEngine("SPY", []string{"AAPL"}, &fakePositions{positions}, zerolog.Nop(), metrics.New("strategyengine_test"))
	return e, st
}

// seedCandidate writes a joined (bar, indicator, forecast) row that
// matches the VWAP scalp tier.
func seedCandidate(t *testing.T, st *store.Store, symbol string, ts time.Time) {
	t.Helper()
	if err := st.InsertBars([]model.MarketBar{{
		Symbol: symbol, Timestamp: ts, Timeframe: model.Timeframe5m,
		Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 5000,
	}}); err != nil {
		t.Fatalf("seed bar: %v", err)
	}
	if err := st.UpsertIndicators([]model.IndicatorRow{{
		Symbol: symbol, Timestamp: ts, Timeframe: model.Timeframe5m,
		RSI14: f(45), SMA50: f(98), SMA200: f(90), LowerBB: f(95),
		VWAP: f(100), ATR14: f(1.5), VolumeSMA20: f(4000),
	}}); err != nil {
		t.Fatalf("seed indicators: %v", err)
	}
	if err := st.UpsertForecasts([]model.Forecast{{
		Symbol: symbol, Timestamp: ts, CurrentPrice: 100.5,
		SmallPredictedPrice: 101, LargePredictedPrice: 101.2,
		EnsemblePredictedPrice: 101.14, EnsemblePctChange: 0.64,
	}}); err != nil {
		t.Fatalf("seed forecast: %v", err)
	}
}

func TestCycle_EntryCreatedOnceOnly(t *testing.T) {
	e, st := newTestEngine(t, nil)
	ts := time.Now().UTC().Truncate(time.Minute)
	e.now = func() time.Time { return ts.Add(5 * time.Minute) }

	seedCandidate(t, st, "NVDA", ts)

	e.Cycle(context.Background(), st)
	pending, err := st.PendingSignals()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(pending))
	}
	if pending[0].SignalType != model.SignalVWAPScalp {
		t.Errorf("expected VWAP_SCALP, got %q", pending[0].SignalType)
	}
	if pending[0].ATR == nil || *pending[0].ATR != 1.5 {
		t.Errorf("signal should carry atr_14, got %v", pending[0].ATR)
	}

	// A second cycle over the same candle must not duplicate.
	e.Cycle(context.Background(), st)
	pending, _ = st.PendingSignals()
	if len(pending) != 1 {
		t.Errorf("duplicate signal created on re-run: %d", len(pending))
	}
}

func TestCycle_BenchmarkExcludedFromEntries(t *testing.T) {
	e, st := newTestEngine(t, nil)
	ts := time.Now().UTC().Truncate(time.Minute)
	e.now = func() time.Time { return ts.Add(5 * time.Minute) }

	seedCandidate(t, st, "SPY", ts)

	e.Cycle(context.Background(), st)
	pending, _ := st.PendingSignals()
	if len(pending) != 0 {
		t.Errorf("benchmark must never generate entries, got %d signals", len(pending))
	}
}

func TestCycle_ExitRules(t *testing.T) {
	ts := time.Now().UTC().Truncate(time.Minute)

	cases := []struct {
		name   string
		plpc   string
		ensPct float64
		rsi    float64
		close  float64
		sma50  float64
		want   model.SignalType
	}{
		{"take profit on forecast reversal", "0.02", -0.5, 60, 105, 100, model.SignalTakeProfit},
		{"take profit on trend break", "0.02", 0.1, 60, 95, 100, model.SignalTakeProfit},
		{"panic on losing oversold", "-0.01", -0.6, 35, 105, 100, model.SignalPanicExit},
		{"no exit when profitable and healthy", "0.02", 0.1, 60, 105, 100, ""},
		{"no panic when rsi holds", "-0.01", -0.6, 45, 105, 100, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, st := newTestEngine(t, []broker.Position{{
				Symbol: "AAPL", Qty: "10", UnrealizedPLPC: tc.plpc,
			}})
			e.now = func() time.Time { return ts.Add(5 * time.Minute) }

			if err := st.InsertBars([]model.MarketBar{{
				Symbol: "AAPL", Timestamp: ts, Timeframe: model.Timeframe5m,
				Open: tc.close, High: tc.close, Low: tc.close, Close: tc.close, Volume: 100,
			}}); err != nil {
				t.Fatalf("seed bar: %v", err)
			}
			if err := st.UpsertIndicators([]model.IndicatorRow{{
				Symbol: "AAPL", Timestamp: ts, Timeframe: model.Timeframe5m,
				RSI14: f(tc.rsi), SMA50: f(tc.sma50),
			}}); err != nil {
				t.Fatalf("seed indicators: %v", err)
			}
			if err := st.UpsertForecasts([]model.Forecast{{
				Symbol: "AAPL", Timestamp: ts, EnsemblePctChange: tc.ensPct,
			}}); err != nil {
				t.Fatalf("seed forecast: %v", err)
			}

			e.Cycle(context.Background(), st)

			pending, _ := st.PendingSignals()
			var exits []model.Signal
			for _, p := range pending {
				if p.SignalType.IsExit() {
					exits = append(exits, p.Signal)
				}
			}
			if tc.want == "" {
				if len(exits) != 0 {
					t.Fatalf("expected no exit, got %+v", exits)
				}
				return
			}
			if len(exits) != 1 {
				t.Fatalf("expected 1 exit, got %d", len(exits))
			}
			if exits[0].SignalType != tc.want {
				t.Errorf("exit type=%q, want %q", exits[0].SignalType, tc.want)
			}
			if exits[0].Size == nil || *exits[0].Size != 0 {
				t.Errorf("exit must carry size-0 sentinel, got %v", exits[0].Size)
			}

			// Re-running while the exit is still PENDING must not duplicate.
			e.Cycle(context.Background(), st)
			pending, _ = st.PendingSignals()
			count := 0
			for _, p := range pending {
				if p.SignalType.IsExit() {
					count++
				}
			}
			if count != 1 {
				t.Errorf("pending exit deduplication failed: %d exits", count)
			}
		})
	}
}
