package strategy

import (
	"strings"

	"github.com/shopspring/decimal"

	"grid-executor/internal/model"
	"grid-executor/internal/utils"
)

// GridParams describe one ladder. Prices are decimals so rounding follows the symbol's precision exactly.
type GridParams struct {
	Symbol         string
	MinPrice       decimal.Decimal
	MaxPrice       decimal.Decimal
	Levels         int
	ReferencePrice decimal.Decimal
	Quantity       string
}

// Generate lays Levels evenly spaced limit orders over [MinPrice, MaxPrice].
// Levels closer than one price unit to the reference are dropped, levels below it buy
// and the rest sell. The result is in ascending price order.
func Generate(params GridParams, rule model.TradingRule) ([]model.OrderRequest, error) {
	if params.Levels < 2 {
		return nil, &model.ValidationError{Field: "levels", Reason: "at least 2 levels are required"}
	}
	if !params.MinPrice.LessThan(params.MaxPrice) {
		return nil, &model.ValidationError{Field: "min_price", Reason: "min price must be below max price"}
	}

	f := &utils.Formatter{}
	unit := rule.PriceUnit()
	step := params.MaxPrice.Sub(params.MinPrice).Div(decimal.NewFromInt(int64(params.Levels - 1)))
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))

	orders := make([]model.OrderRequest, 0, params.Levels)
	var last decimal.Decimal
	for i := 0; i < params.Levels; i++ {
		price := params.MinPrice.Add(step.Mul(decimal.NewFromInt(int64(i))))
		if i == params.Levels-1 {
			price = params.MaxPrice
		}
		price = price.Round(rule.PriceDecimals)

		if price.Sub(params.ReferencePrice).Abs().LessThan(unit) {
			continue
		}
		if len(orders) > 0 && !price.GreaterThan(last) {
			continue
		}
		last = price

		side := model.SideSell
		if price.LessThan(params.ReferencePrice) {
			side = model.SideBuy
		}
		orders = append(orders, model.OrderRequest{
			Symbol:      symbol,
			Side:        side,
			Type:        model.OrderTypeLimit,
			Quantity:    params.Quantity,
			Price:       f.FormatPrice(rule, price),
			TimeInForce: model.TimeInForceGTC,
		})
	}
	return orders, nil
}
