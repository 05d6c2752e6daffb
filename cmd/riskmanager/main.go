package main

import (
	"context"
	"log"
	"time"

	"deepquant/config"
	"deepquant/internal/metrics"
	"deepquant/internal/risk"
	"deepquant/internal/store"
	"deepquant/internal/worker"
)

func main() {
	cfg := config.Load(false)
	m := metrics.New("riskmanager")

	w, err := worker.New(worker.Options{
		Service: "riskmanager",
		Cfg:     cfg,
		Metrics: m,
	})
	if err != nil {
		log.Fatalf("[riskmanager] init failed: %v", err)
	}

	mgr := risk.New(cfg.AccountSize, cfg.RiskPct,
		time.Duration(cfg.MaxSignalAgeMinutes)*time.Minute, w.Log, m)
	w.Log.Info().
		Float64("account_size", cfg.AccountSize).
		Float64("risk_pct", cfg.RiskPct).
		Int("max_signal_age_minutes", cfg.MaxSignalAgeMinutes).
		Msg("risk manager configured")

	if err := w.RunWith(context.Background(), func(ctx context.Context, st *store.Store) {
		if err := mgr.Cycle(st); err != nil {
			w.Log.Error().Err(err).Msg("risk cycle failed")
		}
	}); err != nil {
		log.Fatalf("[riskmanager] fatal: %v", err)
	}
}
