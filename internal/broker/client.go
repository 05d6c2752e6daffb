// Package broker is the REST client for the brokerage API used by the
// executor and the strategy engine's exit scan.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds broker connection settings.
type Config struct {
	KeyID     string
	SecretKey string
	BaseURL   string        // e.g. https://paper-api.alpaca.markets
	Timeout   time.Duration // default: 10s
}

// Client talks to the broker's trading REST API.
type Client struct {
	keyID     string
	secretKey string
	baseURL   string

	httpClient *http.Client
}

// New builds a broker client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		keyID:      cfg.KeyID,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SubmitOrder places an order and returns the broker's view of it.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/v2/orders", nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+orderID, nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOpenOrders returns all open orders, optionally filtered by symbol.
func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	q := url.Values{"status": {"open"}}
	if symbol != "" {
		q.Set("symbols", symbol)
	}
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/v2/orders", q, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CancelOrder cancels one order. A 404 means it is already gone and is
// not an error for our callers.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.do(ctx, http.MethodDelete, "/v2/orders/"+orderID, nil, nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// ListPositions returns all open positions.
func (c *Client) ListPositions(ctx context.Context) ([]Position, error) {
	var positions []Position
	if err := c.do(ctx, http.MethodGet, "/v2/positions", nil, nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetPosition returns the open position for symbol, or nil when flat.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	var pos Position
	err := c.do(ctx, http.MethodGet, "/v2/positions/"+symbol, nil, nil, &pos)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// do performs one REST round trip. Non-2xx responses come back as
// *APIError with the broker's message when it sent one.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("broker: marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("broker: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("broker: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("broker: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("broker: decode response: %w", err)
		}
	}
	return nil
}
