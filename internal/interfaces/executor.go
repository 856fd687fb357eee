package interfaces

import (
	"context"

	"grid-executor/internal/model"
)

// OrderSubmitter is what the dispatcher needs from the executor.
type OrderSubmitter interface {
	Submit(ctx context.Context, mode model.Mode, order model.OrderRequest) (*model.OrderResult, error)
}

// OrderCanceler cancels by exchange order id or client order id.
type OrderCanceler interface {
	Cancel(ctx context.Context, mode model.Mode, symbol, target string) (*model.CancelResult, error)
}

// PriceSource provides the latest known mid price for a symbol.
type PriceSource interface {
	LastMid(symbol string) (float64, bool)
}
