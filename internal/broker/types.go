package broker

import (
	"strconv"
	"time"
)

// Order statuses the executor cares about. The API has more; anything
// else is treated as still in flight.
const (
	OrderFilled   = "filled"
	OrderCanceled = "canceled"
	OrderRejected = "rejected"
	OrderExpired  = "expired"
	OrderNew      = "new"
)

// Canonical order sides. The API is case-sensitive and wants lowercase.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order is one broker order. Numeric fields arrive as decimal strings.
type Order struct {
	ID             string     `json:"id"`
	ClientOrderID  string     `json:"client_order_id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
	Type           string     `json:"type"`
	Qty            string     `json:"qty"`
	FilledQty      string     `json:"filled_qty"`
	FilledAvgPrice string     `json:"filled_avg_price"`
	Status         string     `json:"status"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	FilledAt       *time.Time `json:"filled_at"`
}

// FilledPrice parses the average fill price, 0 when absent.
func (o *Order) FilledPrice() float64 {
	return parseDecimal(o.FilledAvgPrice)
}

// FilledQuantity parses the filled quantity, 0 when absent.
func (o *Order) FilledQuantity() float64 {
	return parseDecimal(o.FilledQty)
}

// Terminal reports whether the order will never fill.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderCanceled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

// Position is one open broker position.
type Position struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	UnrealizedPL  string `json:"unrealized_pl"`
	// Unrealized P/L as a fraction of cost basis, e.g. "0.013" = +1.3%.
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

// Quantity parses the position size.
func (p *Position) Quantity() float64 {
	return parseDecimal(p.Qty)
}

// PLPC parses the unrealized profit/loss fraction.
func (p *Position) PLPC() float64 {
	return parseDecimal(p.UnrealizedPLPC)
}

// OrderRequest is the order submission payload. Optional numeric fields
// are decimal strings so zero values stay off the wire.
type OrderRequest struct {
	Symbol       string `json:"symbol"`
	Qty          string `json:"qty,omitempty"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	TimeInForce  string `json:"time_in_force"`
	TrailPrice   string `json:"trail_price,omitempty"`
	TrailPercent string `json:"trail_percent,omitempty"`
}

// MarketOrder builds a plain market order. Orders are good-till-canceled
// so a stop placed near the close survives into the next session.
func MarketOrder(symbol, side string, qty float64) OrderRequest {
	return OrderRequest{
		Symbol:      symbol,
		Qty:         formatDecimal(qty),
		Side:        side,
		Type:        "market",
		TimeInForce: "gtc",
	}
}

// TrailingStopOrder builds a trailing stop sell. Exactly one of
// trailPrice / trailPercent should be non-zero.
func TrailingStopOrder(symbol string, qty, trailPrice, trailPercent float64) OrderRequest {
	req := OrderRequest{
		Symbol:      symbol,
		Qty:         formatDecimal(qty),
		Side:        SideSell,
		Type:        "trailing_stop",
		TimeInForce: "gtc",
	}
	if trailPrice > 0 {
		req.TrailPrice = formatDecimal(trailPrice)
	} else if trailPercent > 0 {
		req.TrailPercent = formatDecimal(trailPercent)
	}
	return req
}

func parseDecimal(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
