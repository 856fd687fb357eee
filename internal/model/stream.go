package model

import "time"

// PriceTick is one best bid/ask update reduced to a mid price.
type PriceTick struct {
	Symbol  string    `json:"symbol"`
	Bid     float64   `json:"bid"`
	Ask     float64   `json:"ask"`
	Mid     float64   `json:"mid"`
	Display string    `json:"display"` // 4 decimals below 10, 2 otherwise
	Time    time.Time `json:"time"`
}

// OrderUpdate - нормализованное событие ORDER_TRADE_UPDATE из приватного стрима.
type OrderUpdate struct {
	Symbol        string    `json:"symbol"`
	ClientOrderID string    `json:"client_order_id"`
	OrderID       int64     `json:"order_id"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	ExecutionType string    `json:"execution_type"`
	OrigQty       string    `json:"orig_qty"`
	ExecutedQty   string    `json:"executed_qty"`
	AvgPrice      string    `json:"avg_price"`
	Price         string    `json:"price"`
	EventTime     time.Time `json:"event_time"`
}

// StreamState is the lifecycle state of one streaming session.
type StreamState int32

const (
	StreamIdle StreamState = iota
	StreamConnecting
	StreamOpen
	StreamReconnectScheduled
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "IDLE"
	case StreamConnecting:
		return "CONNECTING"
	case StreamOpen:
		return "OPEN"
	case StreamReconnectScheduled:
		return "RECONNECT_SCHEDULED"
	case StreamClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
