package main

import (
	"context"
	"log"
	"time"

	"deepquant/config"
	"deepquant/internal/broker"
	"deepquant/internal/metrics"
	"deepquant/internal/store"
	"deepquant/internal/strategy"
	"deepquant/internal/worker"
)

func main() {
	cfg := config.Load(true)
	m := metrics.New("strategyengine")

	w, err := worker.New(worker.Options{
		Service: "strategyengine",
		Cfg:     cfg,
		Metrics: m,
		// Wake after the indicator and forecast workers have landed.
		Align: &worker.Alignment{Interval: 5 * time.Minute, Offset: 40 * time.Second},
	})
	if err != nil {
		log.Fatalf("[strategyengine] init failed: %v", err)
	}

	client := broker.New(broker.Config{
		KeyID:     cfg.BrokerKeyID,
		SecretKey: cfg.BrokerSecretKey,
		BaseURL:   cfg.BrokerBaseURL,
	})
	engine := strategy.NewEngine(cfg.BenchmarkSymbol, cfg.Kings(), client, w.Log, m)
	w.Log.Info().
		Str("benchmark", cfg.BenchmarkSymbol).
		Int("kings", len(cfg.Kings())).
		Msg("strategy engine configured")

	if err := w.RunWith(context.Background(), func(ctx context.Context, st *store.Store) {
		engine.Cycle(ctx, st)
	}); err != nil {
		log.Fatalf("[strategyengine] fatal: %v", err)
	}
}
