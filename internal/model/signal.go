package model

import (
	"strings"
	"time"
)

// SignalType identifies which rule emitted a signal.
type SignalType string

const (
	SignalVWAPScalp    SignalType = "VWAP_SCALP"
	SignalDeepValueBuy SignalType = "DEEP_VALUE_BUY"
	SignalTrendBuy     SignalType = "TREND_BUY"
	SignalTakeProfit   SignalType = "TAKE_PROFIT_EXIT"
	SignalPanicExit    SignalType = "PANIC_EXIT"
)

// IsExit reports whether the signal liquidates a position rather than
// opening one. Exit signals carry size 0 ("sell everything").
func (t SignalType) IsExit() bool {
	return strings.Contains(string(t), "EXIT")
}

// SignalStatus is the lifecycle state of a trade signal.
type SignalStatus string

const (
	StatusPending        SignalStatus = "PENDING"
	StatusSized          SignalStatus = "SIZED"
	StatusSubmitted      SignalStatus = "SUBMITTED"
	StatusExecuted       SignalStatus = "EXECUTED"
	StatusExecutedNoStop SignalStatus = "EXECUTED_NO_STOP"
	StatusFailed         SignalStatus = "FAILED"
	StatusExpired        SignalStatus = "EXPIRED"
)

// legalTransitions encodes the signal state machine. Entry signals walk
// PENDING → SIZED → SUBMITTED → {EXECUTED, EXECUTED_NO_STOP, FAILED};
// exit signals jump SIZED → EXECUTED directly (no stop attachment).
// PENDING can also expire. Reverse transitions are never legal.
var legalTransitions = map[SignalStatus][]SignalStatus{
	StatusPending:   {StatusSized, StatusExpired},
	StatusSized:     {StatusSubmitted, StatusExecuted, StatusFailed},
	StatusSubmitted: {StatusExecuted, StatusExecutedNoStop, StatusFailed},
}

// CanTransition reports whether moving a signal from one status to
// another is allowed by the lifecycle state machine.
func CanTransition(from, to SignalStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Signal is one row of trade_signals. Size and OrderID are nil until the
// risk manager and executor fill them in.
type Signal struct {
	ID         int64
	Symbol     string
	Timestamp  time.Time // triggering candle open for entries, wall clock for exits
	SignalType SignalType
	Status     SignalStatus
	Size       *float64
	ATR        *float64
	OrderID    *string
}

// ExecutedTrade is one append-only fill record.
type ExecutedTrade struct {
	Symbol     string
	Timestamp  time.Time
	Price      float64
	Qty        float64
	Side       string // canonical lowercase: "buy" / "sell"
	SignalType SignalType
}
