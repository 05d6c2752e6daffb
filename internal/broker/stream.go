package broker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TradeUpdate is one event from the trade_updates stream.
type TradeUpdate struct {
	Event string `json:"event"` // fill, partial_fill, canceled, rejected, ...
	Order Order  `json:"order"`
}

// Stream consumes the broker's trade_updates websocket. It is a
// latency supplement only: the executor still polls order state over
// REST, so a dropped stream degrades to slower reaction, never to
// missed fills.
type Stream struct {
	keyID     string
	secretKey string
	url       string
	log       zerolog.Logger

	dialer     *websocket.Dialer
	retryDelay time.Duration

	// Updates receives trade events. Buffered; slow consumers drop
	// events rather than stall the read loop.
	Updates chan TradeUpdate
}

// NewStream builds a trade-update stream from the REST base URL, e.g.
// https://paper-api.alpaca.markets becomes
// wss://paper-api.alpaca.markets/stream.
func NewStream(cfg Config, log zerolog.Logger) *Stream {
	wsURL := strings.Replace(strings.TrimRight(cfg.BaseURL, "/"), "https://", "wss://", 1) + "/stream"
	return &Stream{
		keyID:      cfg.KeyID,
		secretKey:  cfg.SecretKey,
		url:        wsURL,
		log:        log,
		dialer:     websocket.DefaultDialer,
		retryDelay: 5 * time.Second,
		Updates:    make(chan TradeUpdate, 64),
	}
}

// Run connects, authenticates, and pumps trade updates until ctx is
// canceled, reconnecting with a fixed delay on any failure.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.runOnce(ctx); err != nil {
			s.log.Warn().Err(err).Msg("trade update stream disconnected")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	auth := map[string]any{
		"action": "auth",
		"key":    s.keyID,
		"secret": s.secretKey,
	}
	if err := conn.WriteJSON(auth); err != nil {
		return err
	}
	listen := map[string]any{
		"action": "listen",
		"data":   map[string]any{"streams": []string{"trade_updates"}},
	}
	if err := conn.WriteJSON(listen); err != nil {
		return err
	}
	s.log.Info().Str("url", s.url).Msg("trade update stream connected")

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var envelope struct {
			Stream string          `json:"stream"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Stream != "trade_updates" {
			continue
		}
		var update TradeUpdate
		if err := json.Unmarshal(envelope.Data, &update); err != nil {
			continue
		}
		select {
		case s.Updates <- update:
		default:
			// consumer is behind; polling will pick it up
		}
	}
}
