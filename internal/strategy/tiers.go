// Package strategy evaluates entry and exit rules and emits PENDING
// trade signals.
package strategy

import (
	"deepquant/internal/model"
	"deepquant/internal/store"
)

// Regime is the macro market state derived from the benchmark symbol.
type Regime string

const (
	RegimeBull Regime = "BULL"
	RegimeBear Regime = "BEAR"
)

// Entry tier thresholds.
const (
	scalpMinPct     = 0.3
	deepValueMaxRSI = 30.0
	deepValueMinPct = 0.5
	trendMinRSI     = 35.0
	trendMaxRSI     = 55.0
	trendMinPct     = 0.5
)

// classifyRegime derives the regime from the benchmark's latest joined
// snapshot. Missing data defaults to BULL so the trend tier stays
// reachable when the benchmark has not warmed up yet.
func classifyRegime(snap *store.SymbolSnapshot) Regime {
	if snap == nil || snap.Close == nil || snap.SMA50 == nil {
		return RegimeBull
	}
	if *snap.Close < *snap.SMA50 {
		return RegimeBear
	}
	return RegimeBull
}

// evaluateTiers runs the entry tiers in precedence order against one
// complete candidate row. Returns "" when nothing matches.
func evaluateTiers(c *store.EntryCandidate, regime Regime, kings map[string]bool) model.SignalType {
	pct := *c.EnsemblePctChange
	closePx := *c.Close

	// Tier 1: momentum above VWAP on rising volume.
	if pct > scalpMinPct && *c.Volume > *c.VolumeSMA20 && closePx > *c.VWAP {
		return model.SignalVWAPScalp
	}

	// Tier 2: oversold mega-cap below its long average.
	if kings[c.Symbol] && closePx < *c.SMA200 && *c.RSI14 < deepValueMaxRSI && pct > deepValueMinPct {
		return model.SignalDeepValueBuy
	}

	// Tier 3: bull-regime trend continuation.
	if regime == RegimeBull && closePx > *c.SMA200 &&
		*c.RSI14 > trendMinRSI && *c.RSI14 < trendMaxRSI &&
		pct > trendMinPct && *c.Volume > *c.VolumeSMA20 {
		return model.SignalTrendBuy
	}

	return ""
}
