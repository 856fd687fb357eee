package exchange

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"grid-executor/internal/model"
	"grid-executor/internal/utils"
)

// Validator runs the client-side precision and minimum-size checks.
// It has no state beyond the immutable rule book and never touches the network.
type Validator struct {
	Rules     *model.RuleBook
	Formatter *utils.Formatter
}

func NewValidator(rules *model.RuleBook) *Validator {
	return &Validator{Rules: rules, Formatter: &utils.Formatter{}}
}

// CheckOrder validates a single order. The first failing rule wins.
func (v *Validator) CheckOrder(order model.OrderRequest) error {
	if strings.TrimSpace(order.Symbol) == "" {
		return &model.ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	rule := v.Rules.Lookup(order.Symbol)

	if err := v.checkQuantity(rule, order.Quantity); err != nil {
		return err
	}

	if order.Type.NeedsPrice() {
		if err := v.checkPrice(rule, "price", order.Price); err != nil {
			return err
		}
	}
	if order.Type == model.OrderTypeStopLimit {
		if err := v.checkPrice(rule, "stop_price", order.StopPrice); err != nil {
			return err
		}
	}
	return nil
}

// CheckGridParams validates the range and per-level quantity of a grid.
func (v *Validator) CheckGridParams(symbol, minPrice, maxPrice, quantity string) error {
	if strings.TrimSpace(symbol) == "" {
		return &model.ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	rule := v.Rules.Lookup(symbol)

	if err := v.checkQuantity(rule, quantity); err != nil {
		return err
	}

	lo, err := parseDecimal("min_price", minPrice)
	if err != nil {
		return err
	}
	hi, err := parseDecimal("max_price", maxPrice)
	if err != nil {
		return err
	}
	if !lo.IsPositive() {
		return &model.ValidationError{Field: "min_price", Reason: "must be greater than 0"}
	}
	if !lo.LessThan(hi) {
		return &model.ValidationError{Field: "min_price", Reason: fmt.Sprintf("must be below max_price %s", maxPrice)}
	}
	if err := v.checkPrecision(rule.PriceDecimals, "min_price", minPrice); err != nil {
		return err
	}
	return v.checkPrecision(rule.PriceDecimals, "max_price", maxPrice)
}

// CheckGridLevels rejects ladders with fewer than two levels.
func (v *Validator) CheckGridLevels(levels int) error {
	if levels < 2 {
		return &model.ValidationError{Field: "levels", Reason: "at least 2 levels are required"}
	}
	return nil
}

func (v *Validator) checkQuantity(rule model.TradingRule, raw string) error {
	qty, err := parseDecimal("quantity", raw)
	if err != nil {
		return err
	}
	if qty.LessThan(rule.MinQty) {
		return &model.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("%s is below the minimum %s", strings.TrimSpace(raw), rule.MinQty.String()),
		}
	}
	if places := v.Formatter.DecimalPlaces(raw); places > int(rule.QtyDecimals) {
		return &model.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("%d decimal places, at most %d allowed", places, rule.QtyDecimals),
		}
	}
	return nil
}

// checkPrice: present, numeric, > 0, then decimal places.
func (v *Validator) checkPrice(rule model.TradingRule, field, raw string) error {
	price, err := parseDecimal(field, raw)
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return &model.ValidationError{Field: field, Reason: "must be greater than 0"}
	}
	return v.checkPrecision(rule.PriceDecimals, field, raw)
}

func (v *Validator) checkPrecision(decimals int32, field, raw string) error {
	if places := v.Formatter.DecimalPlaces(raw); places > int(decimals) {
		return &model.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%d decimal places, at most %d allowed", places, decimals),
		}
	}
	return nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &model.ValidationError{Field: field, Reason: "value is required"}
	}
	// decimal.NewFromString also takes exponents; plain decimal notation only.
	if strings.ContainsAny(raw, "eE") {
		return decimal.Zero, &model.ValidationError{Field: field, Reason: "not a number: " + raw}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &model.ValidationError{Field: field, Reason: "not a number: " + raw}
	}
	return d, nil
}
