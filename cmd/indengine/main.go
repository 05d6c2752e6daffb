package main

import (
	"context"
	"log"
	"time"

	"deepquant/config"
	"deepquant/internal/indicator"
	"deepquant/internal/metrics"
	"deepquant/internal/store"
	"deepquant/internal/worker"
)

func main() {
	cfg := config.Load(false)
	m := metrics.New("indengine")

	w, err := worker.New(worker.Options{
		Service: "indengine",
		Cfg:     cfg,
		Metrics: m,
		Align:   &worker.Alignment{Interval: 5 * time.Minute, Offset: 20 * time.Second},
	})
	if err != nil {
		log.Fatalf("[indengine] init failed: %v", err)
	}

	engine := indicator.NewEngine(cfg.SymbolList(), cfg.BenchmarkSymbol, w.Log, m)
	w.Log.Info().
		Int("symbols", len(cfg.SymbolList())).
		Str("benchmark", cfg.BenchmarkSymbol).
		Msg("indicator engine configured")

	if err := w.RunWith(context.Background(), func(ctx context.Context, st *store.Store) {
		engine.Cycle(st)
	}); err != nil {
		log.Fatalf("[indengine] fatal: %v", err)
	}
}
