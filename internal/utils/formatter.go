package utils

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"grid-executor/internal/model"
)

type Formatter struct {
}

// FormatPrice rounds price to the symbol's price precision.
func (m *Formatter) FormatPrice(rule model.TradingRule, price decimal.Decimal) string {
	return price.StringFixed(rule.PriceDecimals)
}

// FormatQuantity truncates (never rounds up) quantity to the symbol's quantity precision.
func (m *Formatter) FormatQuantity(rule model.TradingRule, quantity decimal.Decimal) string {
	return quantity.Truncate(rule.QtyDecimals).StringFixed(rule.QtyDecimals)
}

// FormatMid prints a mid price with 4 decimals below 10 and 2 decimals otherwise.
func (m *Formatter) FormatMid(mid float64) string {
	if mid < 10 {
		return strconv.FormatFloat(mid, 'f', 4, 64)
	}
	return strconv.FormatFloat(mid, 'f', 2, 64)
}

// DecimalPlaces counts the characters after the decimal separator of the raw input.
// "1.50" has two places even though it is numerically equal to "1.5".
func (m *Formatter) DecimalPlaces(raw string) int {
	raw = strings.TrimSpace(raw)
	idx := strings.IndexByte(raw, '.')
	if idx < 0 {
		return 0
	}
	return len(raw) - idx - 1
}
