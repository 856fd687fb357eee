package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradingRule описывает ограничения торговой пары: минимальный объём и точность.
type TradingRule struct {
	Symbol        string          `json:"symbol" yaml:"-"`
	MinQty        decimal.Decimal `json:"min_qty" yaml:"min_qty"`
	PriceDecimals int32           `json:"price_decimals" yaml:"price_decimals"`
	QtyDecimals   int32           `json:"qty_decimals" yaml:"qty_decimals"`
}

// PriceUnit returns the smallest representable price step, 10^-PriceDecimals.
func (r TradingRule) PriceUnit() decimal.Decimal {
	return decimal.New(1, -r.PriceDecimals)
}

// DefaultRule applies to every symbol missing from the rule book.
var DefaultRule = TradingRule{
	Symbol:        "*",
	MinQty:        decimal.RequireFromString("0.001"),
	PriceDecimals: 2,
	QtyDecimals:   3,
}

var builtinRules = []TradingRule{
	{Symbol: "BTCUSDT", MinQty: decimal.RequireFromString("0.001"), PriceDecimals: 1, QtyDecimals: 3},
	{Symbol: "ETHUSDT", MinQty: decimal.RequireFromString("0.001"), PriceDecimals: 2, QtyDecimals: 3},
	{Symbol: "BNBUSDT", MinQty: decimal.RequireFromString("0.01"), PriceDecimals: 2, QtyDecimals: 2},
	{Symbol: "SOLUSDT", MinQty: decimal.RequireFromString("1"), PriceDecimals: 2, QtyDecimals: 0},
	{Symbol: "XRPUSDT", MinQty: decimal.RequireFromString("0.1"), PriceDecimals: 4, QtyDecimals: 1},
	{Symbol: "DOGEUSDT", MinQty: decimal.RequireFromString("1"), PriceDecimals: 5, QtyDecimals: 0},
}

// RuleBook is an immutable symbol -> TradingRule table.
type RuleBook struct {
	rules    map[string]TradingRule
	fallback TradingRule
}

// NewRuleBook builds the table from the built-in rules, then applies overrides.
// Override keys are matched case-insensitively.
func NewRuleBook(overrides map[string]TradingRule) *RuleBook {
	rules := make(map[string]TradingRule, len(builtinRules)+len(overrides))
	for _, r := range builtinRules {
		rules[r.Symbol] = r
	}
	for symbol, r := range overrides {
		key := strings.ToUpper(strings.TrimSpace(symbol))
		r.Symbol = key
		rules[key] = r
	}
	return &RuleBook{rules: rules, fallback: DefaultRule}
}

// Lookup returns the rule for symbol or the default rule when the symbol is unknown.
func (b *RuleBook) Lookup(symbol string) TradingRule {
	if r, ok := b.rules[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return r
	}
	return b.fallback
}

// Has reports whether the symbol has an explicit rule.
func (b *RuleBook) Has(symbol string) bool {
	_, ok := b.rules[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}
