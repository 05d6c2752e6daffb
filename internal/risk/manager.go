// Package risk converts PENDING signals into SIZED orders-to-be and
// retires stale ones.
package risk

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"deepquant/internal/metrics"
	"deepquant/internal/model"
	"deepquant/internal/store"
)

// Manager sizes pending signals with fixed fractional risk.
type Manager struct {
	AccountSize  float64
	RiskPct      float64
	MaxSignalAge time.Duration
	Log          zerolog.Logger
	Metrics      *metrics.Metrics

	now func() time.Time
}

// New builds the risk manager.
func New(accountSize, riskPct float64, maxAge time.Duration, log zerolog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		AccountSize:  accountSize,
		RiskPct:      riskPct,
		MaxSignalAge: maxAge,
		Log:          log,
		Metrics:      m,
		now:          time.Now,
	}
}

// Cycle sizes or expires every PENDING signal, committing all decisions
// in one transaction.
func (r *Manager) Cycle(st *store.Store) error {
	start := time.Now()

	pending, err := st.PendingSignals()
	if err != nil {
		r.Metrics.CycleErrors.Inc()
		return err
	}

	now := r.now().UTC()
	var sized []store.SizedUpdate
	var expired []int64

	for i := range pending {
		sig := &pending[i]

		// Staleness wins over sizing: an old signal is dead even if
		// a fresh close would size it.
		if now.Sub(sig.Timestamp) > r.MaxSignalAge {
			expired = append(expired, sig.ID)
			r.Log.Info().
				Str("symbol", sig.Symbol).
				Str("signal_type", string(sig.SignalType)).
				Time("signal_time", sig.Timestamp).
				Msg("signal expired")
			continue
		}

		if sig.SignalType.IsExit() {
			// size 0 means "liquidate the full position"
			sized = append(sized, store.SizedUpdate{ID: sig.ID, Size: 0})
			continue
		}

		if sig.Close == nil || *sig.Close <= 0 {
			r.Log.Warn().Str("symbol", sig.Symbol).Msg("no usable close, leaving signal pending")
			continue
		}
		shares := math.Floor(r.AccountSize * r.RiskPct / *sig.Close)
		if shares <= 0 {
			r.Log.Warn().
				Str("symbol", sig.Symbol).
				Float64("close", *sig.Close).
				Msg("position value below one share, leaving signal pending")
			continue
		}
		sized = append(sized, store.SizedUpdate{ID: sig.ID, Size: shares})
	}

	if err := st.ApplySizing(sized, expired); err != nil {
		r.Metrics.CycleErrors.Inc()
		return err
	}

	for range sized {
		r.Metrics.SignalStatus.WithLabelValues(string(model.StatusSized)).Inc()
	}
	for range expired {
		r.Metrics.SignalStatus.WithLabelValues(string(model.StatusExpired)).Inc()
	}

	r.Metrics.CyclesTotal.Inc()
	r.Metrics.CycleDuration.Observe(time.Since(start).Seconds())
	if len(sized) > 0 || len(expired) > 0 {
		r.Log.Info().Int("sized", len(sized)).Int("expired", len(expired)).Msg("risk cycle complete")
	}
	return nil
}
