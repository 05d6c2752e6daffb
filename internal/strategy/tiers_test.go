package strategy

import (
	"testing"
	"time"

	"deepquant/internal/model"
	"deepquant/internal/store"
)

func f(v float64) *float64 { return &v }

func completeCandidate() store.EntryCandidate {
	return store.EntryCandidate{
		Symbol:            "AAPL",
		Timestamp:         time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		Close:             f(100),
		Volume:            f(5000),
		SMA200:            f(90),
		RSI14:             f(45),
		VWAP:              f(99),
		ATR14:             f(1.5),
		VolumeSMA20:       f(4000),
		EnsemblePctChange: f(0.6),
	}
}

func TestEvaluateTiers_Precedence(t *testing.T) {
	kings := map[string]bool{"AAPL": true}

	// Candidate satisfying tier 1 and tier 3 must classify as tier 1.
	c := completeCandidate()
	if got := evaluateTiers(&c, RegimeBull, kings); got != model.SignalVWAPScalp {
		t.Errorf("tier 1 should win, got %q", got)
	}

	// Kill tier 1 (close below VWAP); tier 3 matches.
	c.VWAP = f(101)
	if got := evaluateTiers(&c, RegimeBull, kings); got != model.SignalTrendBuy {
		t.Errorf("expected TREND_BUY, got %q", got)
	}

	// Deep value: king below SMA-200, oversold, strong forecast.
	c = completeCandidate()
	c.VWAP = f(101) // kill tier 1
	c.Close = f(80) // below sma_200
	c.RSI14 = f(25)
	if got := evaluateTiers(&c, RegimeBull, kings); got != model.SignalDeepValueBuy {
		t.Errorf("expected DEEP_VALUE_BUY, got %q", got)
	}

	// Non-king never qualifies for deep value.
	if got := evaluateTiers(&c, RegimeBull, map[string]bool{}); got != "" {
		t.Errorf("non-king deep value should not match, got %q", got)
	}
}

func TestEvaluateTiers_TrendRequiresBull(t *testing.T) {
	c := completeCandidate()
	c.VWAP = f(101) // kill tier 1
	if got := evaluateTiers(&c, RegimeBear, map[string]bool{}); got != "" {
		t.Errorf("BEAR regime should block TREND_BUY, got %q", got)
	}
	if got := evaluateTiers(&c, RegimeBull, map[string]bool{}); got != model.SignalTrendBuy {
		t.Errorf("BULL regime should allow TREND_BUY, got %q", got)
	}
}

func TestEvaluateTiers_Boundaries(t *testing.T) {
	c := completeCandidate()
	c.VWAP = f(101)

	// RSI exactly at the trend bounds is excluded (strict inequalities).
	c.RSI14 = f(35)
	if got := evaluateTiers(&c, RegimeBull, nil); got != "" {
		t.Errorf("rsi=35 should not match trend, got %q", got)
	}
	c.RSI14 = f(55)
	if got := evaluateTiers(&c, RegimeBull, nil); got != "" {
		t.Errorf("rsi=55 should not match trend, got %q", got)
	}

	// pct exactly at threshold is excluded.
	c.RSI14 = f(45)
	c.EnsemblePctChange = f(0.5)
	if got := evaluateTiers(&c, RegimeBull, nil); got != "" {
		t.Errorf("pct=0.5 should not match trend, got %q", got)
	}
}

func TestClassifyRegime(t *testing.T) {
	if got := classifyRegime(nil); got != RegimeBull {
		t.Errorf("missing benchmark defaults to BULL, got %q", got)
	}
	if got := classifyRegime(&store.SymbolSnapshot{Close: f(100), SMA50: nil}); got != RegimeBull {
		t.Errorf("missing sma50 defaults to BULL, got %q", got)
	}
	if got := classifyRegime(&store.SymbolSnapshot{Close: f(99), SMA50: f(100)}); got != RegimeBear {
		t.Errorf("close below sma50 is BEAR, got %q", got)
	}
	if got := classifyRegime(&store.SymbolSnapshot{Close: f(101), SMA50: f(100)}); got != RegimeBull {
		t.Errorf("close above sma50 is BULL, got %q", got)
	}
}

func TestCandidateComplete(t *testing.T) {
	c := completeCandidate()
	if !c.Complete() {
		t.Error("fully populated candidate should be complete")
	}
	c.VWAP = nil
	if c.Complete() {
		t.Error("missing vwap should mark candidate incomplete")
	}
}
