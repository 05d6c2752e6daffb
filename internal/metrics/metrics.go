package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments shared by the pipeline
// workers. Each worker builds its own registry so tests can construct
// metrics repeatedly without double-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal    prometheus.Counter
	CycleDuration  prometheus.Histogram
	CycleErrors    prometheus.Counter
	SymbolsSkipped prometheus.Counter

	IndicatorRowsWritten prometheus.Counter
	ForecastsWritten     prometheus.Counter

	SignalsCreated *prometheus.CounterVec // labels: signal_type
	SignalStatus   *prometheus.CounterVec // labels: status

	OrdersSubmitted   prometheus.Counter
	OrderFailures     prometheus.Counter
	StopAttachRetries prometheus.Counter

	BreakerTripped prometheus.Gauge
	BreakerTrips   prometheus.Counter

	StoreRetries  prometheus.Counter
	LogWriteDrops prometheus.Counter

	MarketState prometheus.Gauge // 0=closed, 1=open
}

// New registers and returns the worker's metrics. service becomes the
// metric namespace, e.g. executor_cycles_total.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "cycles_total",
			Help:      "Total work cycles completed",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: service,
			Name:      "cycle_duration_seconds",
			Help:      "Work cycle latency",
			Buckets:   prometheus.DefBuckets,
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "cycle_errors_total",
			Help:      "Cycles that ended with an error",
		}),
		SymbolsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "symbols_skipped_total",
			Help:      "Symbols skipped in a cycle (insufficient or missing data)",
		}),
		IndicatorRowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "indicator_rows_written_total",
			Help:      "Indicator rows upserted",
		}),
		ForecastsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "forecasts_written_total",
			Help:      "Forecast rows upserted",
		}),
		SignalsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "signals_created_total",
			Help:      "Signals inserted (by signal type)",
		}, []string{"signal_type"}),
		SignalStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "signal_status_total",
			Help:      "Signal lifecycle transitions applied (by new status)",
		}, []string{"status"}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "orders_submitted_total",
			Help:      "Broker orders submitted",
		}),
		OrderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "order_failures_total",
			Help:      "Broker order submissions that failed",
		}),
		StopAttachRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "stop_attach_retries_total",
			Help:      "Trailing stop attachment attempts beyond the first",
		}),
		BreakerTripped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "circuit_breaker_tripped",
			Help:      "Circuit breaker state (0=armed, 1=tripped)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "circuit_breaker_trips_total",
			Help:      "Times the circuit breaker tripped",
		}),
		StoreRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "store_open_retries_total",
			Help:      "SQLite open attempts beyond the first",
		}),
		LogWriteDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: service,
			Name:      "log_write_drops_total",
			Help:      "system_logs writes dropped due to errors",
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "market_state",
			Help:      "Market session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.CycleErrors,
		m.SymbolsSkipped,
		m.IndicatorRowsWritten,
		m.ForecastsWritten,
		m.SignalsCreated,
		m.SignalStatus,
		m.OrdersSubmitted,
		m.OrderFailures,
		m.StopAttachRetries,
		m.BreakerTripped,
		m.BreakerTrips,
		m.StoreRetries,
		m.LogWriteDrops,
		m.MarketState,
	)
	return m
}

// HealthStatus represents the worker's health for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK        bool
	SQLiteLatencyMs float64
	LastCycleAt     time.Time
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetLastCycle(t time.Time) {
	h.mu.Lock()
	h.LastCycleAt = t
	h.mu.Unlock()
}

// CheckSQLite runs a ping and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if db != nil {
					h.CheckSQLite(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.SQLiteOK && !h.LastCheckAt.IsZero() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	body := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCycleAt     string  `json:"last_cycle_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          status,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCycleAt:     h.LastCycleAt.Format(time.RFC3339),
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates the metrics and health server for one worker.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
