package main

import (
	"context"
	"log"
	"time"

	"deepquant/config"
	"deepquant/internal/forecast"
	"deepquant/internal/metrics"
	"deepquant/internal/store"
	"deepquant/internal/worker"
)

func main() {
	cfg := config.Load(false)
	m := metrics.New("forecaster")

	w, err := worker.New(worker.Options{
		Service: "forecaster",
		Cfg:     cfg,
		Metrics: m,
		Align:   &worker.Alignment{Interval: 5 * time.Minute, Offset: 20 * time.Second},
	})
	if err != nil {
		log.Fatalf("[forecaster] init failed: %v", err)
	}

	engine := forecast.NewEngine(cfg.SymbolList(), w.Log, m)
	w.Log.Info().Int("symbols", len(cfg.SymbolList())).Msg("forecaster configured")

	if err := w.RunWith(context.Background(), func(ctx context.Context, st *store.Store) {
		engine.Cycle(st)
	}); err != nil {
		log.Fatalf("[forecaster] fatal: %v", err)
	}
}
