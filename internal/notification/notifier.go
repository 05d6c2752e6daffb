// Package notification delivers trading alerts to external channels.
// The executor uses it for events that demand operator attention:
// breaker trips and positions left without a protective stop.
package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the worker log; the default backend
// when no external channel is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	event := n.Log.Info()
	switch alert.Level {
	case AlertWarning:
		event = n.Log.Warn()
	case AlertCritical:
		event = n.Log.Error().Bool("critical", true)
	}
	event.Str("title", alert.Title).Msg(alert.Message)
	return nil
}

// Multi fans one alert out to several backends. Delivery failures are
// independent; the first error is returned after all sends.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
