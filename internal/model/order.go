package model

import (
	"strings"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts any letter case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", &ValidationError{Field: "side", Reason: "unsupported side " + s}
}

type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// ParseOrderType accepts any letter case and "stop-limit" spelling.
func ParseOrderType(s string) (OrderType, error) {
	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	switch OrderType(normalized) {
	case OrderTypeMarket:
		return OrderTypeMarket, nil
	case OrderTypeLimit:
		return OrderTypeLimit, nil
	case OrderTypeStopLimit:
		return OrderTypeStopLimit, nil
	}
	return "", &ValidationError{Field: "type", Reason: "unsupported order type " + s}
}

// NeedsPrice reports whether the type rests on the book at a limit price.
func (t OrderType) NeedsPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit
}

const TimeInForceGTC = "GTC"

// OrderRequest is built once per submission and passed by value.
// Quantity and prices stay in their textual form so precision checks see exactly what the user typed.
type OrderRequest struct {
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Type        OrderType `json:"type"`
	Quantity    string    `json:"quantity"`
	Price       string    `json:"price,omitempty"`
	StopPrice   string    `json:"stop_price,omitempty"`
	TimeInForce string    `json:"time_in_force,omitempty"`
}

// OrderResult - ответ биржи (или симуляции) на размещение ордера.
type OrderResult struct {
	OrderID       int64     `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Price         string    `json:"price"`
	OrigQty       string    `json:"orig_qty"`
	ExecutedQty   string    `json:"executed_qty"`
	AvgPrice      string    `json:"avg_price"`
	UpdateTime    time.Time `json:"update_time"`
	Simulated     bool      `json:"simulated"`
}

type CancelResult struct {
	OrderID       int64     `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side,omitempty"`
	Status        string    `json:"status"`
	UpdateTime    time.Time `json:"update_time"`
	Simulated     bool      `json:"simulated"`
}
