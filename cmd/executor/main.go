package main

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"deepquant/config"
	"deepquant/internal/broker"
	"deepquant/internal/executor"
	"deepquant/internal/metrics"
	"deepquant/internal/notification"
	"deepquant/internal/store"
	"deepquant/internal/worker"
)

// Sleep selection when the normal cadence is preempted.
const (
	breakerBackoff  = 300 * time.Second
	monitoringPulse = 5 * time.Second
)

func main() {
	cfg := config.Load(false)
	m := metrics.New("executor")

	brokerCfg := broker.Config{
		KeyID:     cfg.BrokerKeyID,
		SecretKey: cfg.BrokerSecretKey,
		BaseURL:   cfg.BrokerBaseURL,
	}
	client := broker.New(brokerCfg)

	var submittedInFlight atomic.Int64
	var exec *executor.Executor

	w, err := worker.New(worker.Options{
		Service: "executor",
		Cfg:     cfg,
		Metrics: m,
		SleepOverride: func() (time.Duration, bool) {
			if exec.Tripped() {
				return breakerBackoff, true
			}
			// Shorten fill-detection latency while orders are in
			// flight, regardless of market hours.
			if submittedInFlight.Load() > 0 {
				return monitoringPulse, true
			}
			return 0, false
		},
	})
	if err != nil {
		log.Fatalf("[executor] init failed: %v", err)
	}

	exec = executor.New(client, cfg.TrailPercentDefault, w.Log, m)
	if cfg.WebhookURL != "" {
		exec.Notify = notification.Multi{
			&notification.LogNotifier{Log: w.Log},
			notification.NewWebhookNotifier(cfg.WebhookURL),
		}
	}
	if cfg.BrokerKeyID == "" || cfg.BrokerSecretKey == "" {
		// Stay alive so the halt keeps being reported, but never trade.
		w.Log.Error().Bool("critical", true).Msg("broker credentials missing, trading disabled")
		exec.Breaker.Trip()
	}
	w.Log.Info().Str("broker", cfg.BrokerBaseURL).Msg("executor configured")

	// The trade-update stream is a latency supplement; polling remains
	// the source of truth for fills.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := broker.NewStream(brokerCfg, w.Log)
	go stream.Run(ctx)

	if err := w.RunWith(ctx, func(ctx context.Context, st *store.Store) {
		// Drain stream events accumulated since the last cycle; the
		// monitor pass below confirms them over REST.
	drain:
		for {
			select {
			case u := <-stream.Updates:
				w.Log.Debug().Str("event", u.Event).Str("symbol", u.Order.Symbol).Msg("trade update")
			default:
				break drain
			}
		}

		if exec.Tripped() {
			w.Log.Error().Bool("critical", true).Msg("trading halted by circuit breaker, restart required")
			return
		}
		exec.Cycle(ctx, st)

		n, err := st.CountSubmitted()
		if err != nil {
			w.Log.Error().Err(err).Msg("count submitted failed")
			n = 0
		}
		submittedInFlight.Store(int64(n))
	}); err != nil {
		log.Fatalf("[executor] fatal: %v", err)
	}
}
