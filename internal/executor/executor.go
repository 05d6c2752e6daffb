// Package executor drives SIZED signals to terminal states against the
// broker and protects filled entries with trailing stops.
package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"deepquant/internal/broker"
	"deepquant/internal/metrics"
	"deepquant/internal/model"
	"deepquant/internal/notification"
	"deepquant/internal/store"
)

// Stop attachment retry policy.
const (
	stopAttempts = 3
	stopPause    = 3 * time.Second
)

// trailMultipliers maps entry types to their ATR trail multiple.
var trailMultipliers = map[model.SignalType]float64{
	model.SignalVWAPScalp:    1.5,
	model.SignalDeepValueBuy: 2.0,
	model.SignalTrendBuy:     3.0,
}

// BrokerAPI is the capability set the executor needs from the broker.
type BrokerAPI interface {
	SubmitOrder(ctx context.Context, req broker.OrderRequest) (*broker.Order, error)
	GetOrder(ctx context.Context, orderID string) (*broker.Order, error)
	ListOpenOrders(ctx context.Context, symbol string) ([]broker.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetPosition(ctx context.Context, symbol string) (*broker.Position, error)
}

// Executor runs the entry, exit and monitoring pipelines.
type Executor struct {
	Broker  BrokerAPI
	Breaker *Breaker
	Log     zerolog.Logger
	Metrics *metrics.Metrics

	// TrailPercentDefault is the fallback stop width when ATR or the
	// signal type is unusable.
	TrailPercentDefault float64

	// Notify receives operator alerts. Defaults to the log backend.
	Notify notification.Notifier

	pause func(time.Duration)
}

// New builds the executor. The breaker trip is surfaced through metrics
// and a critical log line.
func New(b BrokerAPI, trailPercentDefault float64, log zerolog.Logger, m *metrics.Metrics) *Executor {
	e := &Executor{
		Broker:              b,
		Log:                 log,
		Metrics:             m,
		TrailPercentDefault: trailPercentDefault,
		Notify:              &notification.LogNotifier{Log: log},
		pause:               time.Sleep,
	}
	e.Breaker = NewBreaker(func() {
		m.BreakerTripped.Set(1)
		m.BreakerTrips.Inc()
		log.Error().Bool("critical", true).Msg("circuit breaker tripped, trading halted until restart")
		_ = e.Notify.Send(context.Background(), notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "circuit breaker tripped",
			Message: "trading halted after consecutive critical broker errors; manual restart required",
		})
	})
	return e
}

// Tripped reports whether trading is halted.
func (e *Executor) Tripped() bool {
	return e.Breaker.Tripped()
}

// Cycle runs one pass: exits first (they free capital and reduce risk),
// then entries, then the submission monitor.
func (e *Executor) Cycle(ctx context.Context, st *store.Store) {
	start := time.Now()

	sized, err := st.SizedSignals()
	if err != nil {
		e.Metrics.CycleErrors.Inc()
		e.Log.Error().Err(err).Msg("fetch sized signals")
		return
	}
	for i := range sized {
		sig := &sized[i]
		if sig.SignalType.IsExit() {
			e.processExit(ctx, st, sig)
		}
	}
	for i := range sized {
		sig := &sized[i]
		if !sig.SignalType.IsExit() {
			e.processEntry(ctx, st, sig)
		}
	}

	submitted, err := st.SubmittedSignals()
	if err != nil {
		e.Metrics.CycleErrors.Inc()
		e.Log.Error().Err(err).Msg("fetch submitted signals")
		return
	}
	for i := range submitted {
		e.monitorSubmitted(ctx, st, &submitted[i])
	}

	e.Metrics.CyclesTotal.Inc()
	e.Metrics.CycleDuration.Observe(time.Since(start).Seconds())
}

// safeCall wraps one broker call with the circuit breaker protocol.
func (e *Executor) safeCall(name string, fn func() error) error {
	if e.Breaker.Tripped() {
		return ErrBreakerTripped
	}
	err := fn()
	if err == nil {
		if e.Breaker.RecordSuccess() {
			e.Log.Info().Str("call", name).Msg("broker recovered, failure counter reset")
		}
		return nil
	}
	if broker.IsCritical(err) {
		e.Log.Error().Err(err).Str("call", name).Int("consecutive", e.Breaker.Failures()+1).Msg("critical broker error")
		e.Breaker.RecordCritical()
	}
	return err
}

// processEntry submits a market buy for one SIZED entry signal.
func (e *Executor) processEntry(ctx context.Context, st *store.Store, sig *model.Signal) {
	if sig.Size == nil || *sig.Size <= 0 {
		e.fail(st, sig, "sized entry with no usable size")
		return
	}

	var order *broker.Order
	err := e.safeCall("submit_order", func() error {
		var err error
		order, err = e.Broker.SubmitOrder(ctx, broker.MarketOrder(sig.Symbol, broker.SideBuy, *sig.Size))
		return err
	})
	if err != nil {
		e.Metrics.OrderFailures.Inc()
		if !e.Breaker.Tripped() {
			e.fail(st, sig, fmt.Sprintf("order submission failed: %v", err))
		}
		return
	}

	if err := st.MarkSubmitted(sig.ID, order.ID); err != nil {
		e.Log.Error().Err(err).Int64("signal_id", sig.ID).Msg("persist order id failed")
		return
	}
	e.Metrics.OrdersSubmitted.Inc()
	e.Metrics.SignalStatus.WithLabelValues(string(model.StatusSubmitted)).Inc()
	e.Log.Info().
		Str("symbol", sig.Symbol).
		Str("order_id", order.ID).
		Float64("qty", *sig.Size).
		Msg("entry order submitted")
}

// processExit liquidates the full position behind one SIZED exit signal.
func (e *Executor) processExit(ctx context.Context, st *store.Store, sig *model.Signal) {
	// Best effort: clear open orders (stops included) so the market
	// sell does not collide with them.
	var open []broker.Order
	err := e.safeCall("list_orders", func() error {
		var err error
		open, err = e.Broker.ListOpenOrders(ctx, sig.Symbol)
		return err
	})
	if err == nil {
		for i := range open {
			orderID := open[i].ID
			_ = e.safeCall("cancel_order", func() error {
				return e.Broker.CancelOrder(ctx, orderID)
			})
		}
	}

	var pos *broker.Position
	err = e.safeCall("get_position", func() error {
		var err error
		pos, err = e.Broker.GetPosition(ctx, sig.Symbol)
		return err
	})
	if err != nil {
		if !e.Breaker.Tripped() {
			e.fail(st, sig, fmt.Sprintf("position lookup failed: %v", err))
		}
		return
	}
	if pos == nil || pos.Quantity() <= 0 {
		// Nothing to liquidate: stop already closed it, or flat.
		e.transition(st, sig, model.StatusExecuted)
		e.Log.Info().Str("symbol", sig.Symbol).Msg("exit signal with no open position, marking executed")
		return
	}

	qty := pos.Quantity()
	var order *broker.Order
	err = e.safeCall("submit_order", func() error {
		var err error
		order, err = e.Broker.SubmitOrder(ctx, broker.MarketOrder(sig.Symbol, broker.SideSell, qty))
		return err
	})
	if err != nil {
		e.Metrics.OrderFailures.Inc()
		if !e.Breaker.Tripped() {
			e.fail(st, sig, fmt.Sprintf("exit order failed: %v", err))
		}
		return
	}

	// Audit trail: record the liquidation with the fill price when the
	// broker already reports one, 0 otherwise.
	if err := st.InsertExecutedTrade(model.ExecutedTrade{
		Symbol:     sig.Symbol,
		Timestamp:  time.Now().UTC(),
		Price:      order.FilledPrice(),
		Qty:        qty,
		Side:       broker.SideSell,
		SignalType: sig.SignalType,
	}); err != nil {
		e.Log.Error().Err(err).Str("symbol", sig.Symbol).Msg("record executed trade failed")
	}

	e.Metrics.OrdersSubmitted.Inc()
	e.transition(st, sig, model.StatusExecuted)
	e.Log.Info().
		Str("symbol", sig.Symbol).
		Str("signal_type", string(sig.SignalType)).
		Float64("qty", qty).
		Msg("position liquidated")
}

// monitorSubmitted advances one SUBMITTED signal from its broker order
// state.
func (e *Executor) monitorSubmitted(ctx context.Context, st *store.Store, sig *model.Signal) {
	if sig.OrderID == nil {
		e.fail(st, sig, "submitted signal lost its order id")
		return
	}

	var order *broker.Order
	err := e.safeCall("get_order", func() error {
		var err error
		order, err = e.Broker.GetOrder(ctx, *sig.OrderID)
		return err
	})
	if err != nil {
		return // transient; retry next pulse
	}

	switch {
	case order.Status == broker.OrderFilled:
		fillPrice := order.FilledPrice()
		fillQty := order.FilledQuantity()
		if err := st.InsertExecutedTrade(model.ExecutedTrade{
			Symbol:     sig.Symbol,
			Timestamp:  time.Now().UTC(),
			Price:      fillPrice,
			Qty:        fillQty,
			Side:       broker.SideBuy,
			SignalType: sig.SignalType,
		}); err != nil {
			e.Log.Error().Err(err).Str("symbol", sig.Symbol).Msg("record executed trade failed")
		}
		e.Log.Info().
			Str("symbol", sig.Symbol).
			Float64("price", fillPrice).
			Float64("qty", fillQty).
			Msg("entry filled")

		if e.attachStop(ctx, sig, fillQty) {
			e.transition(st, sig, model.StatusExecuted)
		} else {
			e.transition(st, sig, model.StatusExecutedNoStop)
			e.Log.Error().
				Bool("critical", true).
				Str("symbol", sig.Symbol).
				Msg("position held without protective stop")
			_ = e.Notify.Send(ctx, notification.Alert{
				Level:   notification.AlertCritical,
				Title:   "unprotected position",
				Message: fmt.Sprintf("%s filled but trailing stop attachment exhausted all attempts", sig.Symbol),
			})
		}

	case order.Terminal():
		e.fail(st, sig, fmt.Sprintf("order %s terminal: %s", order.ID, order.Status))

	default:
		// still working; check again next pulse
	}
}

// attachStop places a trailing stop for a filled entry, retrying on
// failure. Returns false when all attempts are exhausted.
func (e *Executor) attachStop(ctx context.Context, sig *model.Signal, qty float64) bool {
	trailPrice, trailPercent := e.trailParams(sig)

	for attempt := 1; attempt <= stopAttempts; attempt++ {
		if attempt > 1 {
			e.Metrics.StopAttachRetries.Inc()
			e.pause(stopPause)
		}
		err := e.safeCall("submit_order", func() error {
			_, err := e.Broker.SubmitOrder(ctx, broker.TrailingStopOrder(sig.Symbol, qty, trailPrice, trailPercent))
			return err
		})
		if err == nil {
			e.Log.Info().
				Str("symbol", sig.Symbol).
				Float64("trail_price", trailPrice).
				Float64("trail_percent", trailPercent).
				Msg("trailing stop attached")
			return true
		}
		e.Log.Warn().Err(err).Str("symbol", sig.Symbol).Int("attempt", attempt).Msg("stop attachment failed")
		if e.Breaker.Tripped() {
			return false
		}
	}
	return false
}

// trailParams picks the stop width: ATR-scaled when the signal carries
// an ATR and a recognized entry type, percent fallback otherwise.
func (e *Executor) trailParams(sig *model.Signal) (trailPrice, trailPercent float64) {
	mult, known := trailMultipliers[sig.SignalType]
	if known && sig.ATR != nil && *sig.ATR > 0 {
		return math.Round(mult**sig.ATR*100) / 100, 0
	}
	return 0, e.TrailPercentDefault
}

func (e *Executor) fail(st *store.Store, sig *model.Signal, reason string) {
	e.Log.Warn().Str("symbol", sig.Symbol).Int64("signal_id", sig.ID).Msg(reason)
	e.transition(st, sig, model.StatusFailed)
}

func (e *Executor) transition(st *store.Store, sig *model.Signal, to model.SignalStatus) {
	if !model.CanTransition(sig.Status, to) {
		e.Log.Error().
			Str("from", string(sig.Status)).
			Str("to", string(to)).
			Int64("signal_id", sig.ID).
			Msg("illegal signal transition blocked")
		return
	}
	if err := st.UpdateSignalStatus(sig.ID, to); err != nil {
		e.Log.Error().Err(err).Int64("signal_id", sig.ID).Msg("status update failed")
		return
	}
	sig.Status = to
	e.Metrics.SignalStatus.WithLabelValues(string(to)).Inc()
}
