package trading

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"grid-executor/internal/client"
	"grid-executor/internal/model"
)

func (e *Executor) submitLive(ctx context.Context, creds *model.Credentials, order model.OrderRequest) (*model.OrderResult, error) {
	if err := requireCredentials(creds); err != nil {
		return nil, err
	}
	if e.API == nil {
		return nil, errors.New("live mode requires a REST client")
	}
	params, err := BuildOrderParams(order)
	if err != nil {
		return nil, err
	}
	resp, err := e.API.PlaceOrder(ctx, creds, params)
	if err != nil {
		return nil, err
	}
	return &model.OrderResult{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          model.Side(resp.Side),
		Type:          resp.Type,
		Status:        resp.Status,
		Price:         resp.Price,
		OrigQty:       resp.OrigQty,
		ExecutedQty:   resp.ExecutedQty,
		AvgPrice:      resp.AvgPrice,
		UpdateTime:    msToTime(resp.UpdateTime),
	}, nil
}

func (e *Executor) cancelLive(ctx context.Context, creds *model.Credentials, symbol, target string) (*model.CancelResult, error) {
	if err := requireCredentials(creds); err != nil {
		return nil, err
	}
	if e.API == nil {
		return nil, errors.New("live mode requires a REST client")
	}
	key, value := ResolveCancelTarget(target)
	params := client.NewParams().Set("symbol", symbol).Set(key, value)

	resp, err := e.API.CancelOrder(ctx, creds, params)
	if err != nil {
		return nil, err
	}
	return &model.CancelResult{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          model.Side(resp.Side),
		Status:        resp.Status,
		UpdateTime:    msToTime(resp.UpdateTime),
	}, nil
}

// BuildOrderParams assembles the order parameters in the order they are signed:
// symbol, side, type, quantity, then price, stopPrice and timeInForce where the type needs them.
// STOP_LIMIT maps to the exchange's STOP type.
func BuildOrderParams(order model.OrderRequest) (*client.Params, error) {
	symbol := strings.ToUpper(strings.TrimSpace(order.Symbol))
	if symbol == "" {
		return nil, &model.ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	if order.Side != model.SideBuy && order.Side != model.SideSell {
		return nil, &model.ValidationError{Field: "side", Reason: "unsupported side " + string(order.Side)}
	}
	qty := strings.TrimSpace(order.Quantity)
	if qty == "" {
		return nil, &model.ValidationError{Field: "quantity", Reason: "value is required"}
	}
	price := strings.TrimSpace(order.Price)
	stopPrice := strings.TrimSpace(order.StopPrice)
	tif := order.TimeInForce
	if tif == "" {
		tif = model.TimeInForceGTC
	}

	p := client.NewParams().Set("symbol", symbol).Set("side", string(order.Side))
	switch order.Type {
	case model.OrderTypeMarket:
		p.Set("type", "MARKET").Set("quantity", qty)
	case model.OrderTypeLimit:
		if price == "" {
			return nil, &model.ValidationError{Field: "price", Reason: "LIMIT order requires a price"}
		}
		p.Set("type", "LIMIT").Set("quantity", qty).Set("price", price).Set("timeInForce", tif)
	case model.OrderTypeStopLimit:
		if price == "" {
			return nil, &model.ValidationError{Field: "price", Reason: "STOP_LIMIT order requires a price"}
		}
		if stopPrice == "" {
			return nil, &model.ValidationError{Field: "stop_price", Reason: "STOP_LIMIT order requires a stop price"}
		}
		p.Set("type", "STOP").Set("quantity", qty).Set("price", price).Set("stopPrice", stopPrice).Set("timeInForce", tif)
	default:
		return nil, &model.ValidationError{Field: "type", Reason: "unsupported order type " + string(order.Type)}
	}
	return p, nil
}

func requireCredentials(creds *model.Credentials) error {
	if creds == nil || creds.APIKey == "" {
		return &model.CredentialError{Missing: "api key"}
	}
	if creds.Secret == "" {
		return &model.CredentialError{Missing: "secret"}
	}
	return nil
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
