package interfaces

import (
	"context"

	"grid-executor/internal/model"
)

// TickerSource is one running price subscription for a single symbol.
type TickerSource interface {
	Start(ctx context.Context) error
	Close()
	Symbol() string
	Ticks() <-chan model.PriceTick
}
