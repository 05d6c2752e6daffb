// Package worker is the shared run loop for the pipeline binaries:
// logging with the system_logs mirror, metrics serving, cadence, and
// the open-work-close store discipline.
package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"deepquant/config"
	"deepquant/internal/cadence"
	"deepquant/internal/logging"
	"deepquant/internal/metrics"
	"deepquant/internal/store"
)

// Alignment wakes the worker shortly after a candle boundary instead of
// on arbitrary wall-clock offsets.
type Alignment struct {
	Interval time.Duration
	Offset   time.Duration
}

// Options configures one worker binary.
type Options struct {
	Service string
	Cfg     *config.Config
	Metrics *metrics.Metrics

	// Align, when set, schedules open-market wakeups on candle
	// boundaries instead of the plain active sleep.
	Align *Alignment

	// SleepOverride, when set, may preempt the cadence entirely
	// (the executor's monitoring pulse and breaker backoff).
	SleepOverride func() (time.Duration, bool)
}

// Worker owns the long-lived resources of one binary.
type Worker struct {
	opts    Options
	Log     zerolog.Logger
	control *store.Store
	cad     *cadence.Controller
	health  *metrics.HealthStatus
	server  *metrics.Server
}

// New wires the worker: a long-lived control store handle for the log
// mirror and sleep-mode reads, the logger, and the metrics server. Data
// work still opens a fresh store every cycle.
func New(opts Options) (*Worker, error) {
	control, err := store.Open(opts.Cfg.DBPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(logging.Config{
		Level:   opts.Cfg.LogLevel,
		Pretty:  opts.Cfg.LogPretty,
		Service: opts.Service,
	})
	log = log.Hook(logging.StoreHook{
		Sink:    control,
		Service: opts.Service,
		OnError: func(error) { opts.Metrics.LogWriteDrops.Inc() },
	})

	health := metrics.NewHealthStatus()
	server := metrics.NewServer(opts.Cfg.MetricsAddr, opts.Metrics, health)

	return &Worker{
		opts:    opts,
		Log:     log,
		control: control,
		cad: cadence.New(control,
			time.Duration(opts.Cfg.ActiveSleepSeconds)*time.Second,
			time.Duration(opts.Cfg.PassiveSleepSeconds)*time.Second),
		health: health,
		server: server,
	}, nil
}

// RunWith executes cycle in a loop until SIGINT/SIGTERM. Each cycle
// gets a fresh store handle; the current cycle always finishes before
// shutdown.
func (w *Worker) RunWith(ctx context.Context, cycle func(ctx context.Context, st *store.Store)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		w.Log.Info().Msg("shutdown signal received, finishing current cycle")
		cancel()
	}()

	w.server.Start()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		w.server.Stop(shutdownCtx)
		done()
		w.control.Close()
	}()
	w.health.StartLivenessChecker(ctx, w.control.DB(), 30*time.Second)

	w.Log.Info().Str("metrics_addr", w.opts.Cfg.MetricsAddr).Msg("worker started")

	for ctx.Err() == nil {
		if cadence.IsMarketOpen(time.Now()) {
			w.opts.Metrics.MarketState.Set(1)
		} else {
			w.opts.Metrics.MarketState.Set(0)
		}

		st, err := store.Open(w.opts.Cfg.DBPath)
		if err != nil {
			w.opts.Metrics.StoreRetries.Inc()
			w.Log.Error().Err(err).Msg("store unavailable, skipping cycle")
			w.cad.Sleep(ctx, w.cad.Active)
			continue
		}
		cycle(ctx, st)
		st.Close()
		w.health.SetLastCycle(time.Now())

		w.cad.Sleep(ctx, w.nextSleep())
	}
	w.Log.Info().Msg("worker stopped")
	return nil
}

// nextSleep picks the sleep before the next cycle.
func (w *Worker) nextSleep() time.Duration {
	if w.opts.SleepOverride != nil {
		if d, ok := w.opts.SleepOverride(); ok {
			return d
		}
	}
	if w.opts.Align != nil && w.cad.Mode() != cadence.ModeForceSleep && cadence.IsMarketOpen(time.Now()) {
		return w.cad.NextCandleDelay(w.opts.Align.Interval, w.opts.Align.Offset)
	}
	return w.cad.SleepDuration()
}
