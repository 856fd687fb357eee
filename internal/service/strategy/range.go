package strategy

import (
	"errors"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"grid-executor/internal/model"
)

var ErrNotEnoughHistory = errors.New("not enough price history for the requested period")

// Range is a suggested grid span around the latest price.
type Range struct {
	Min    decimal.Decimal
	Max    decimal.Decimal
	Middle decimal.Decimal
}

// SuggestRange derives grid bounds from Bollinger bands over mids, rounded to the symbol's price precision.
// The lower bound is floored and the upper bound ceiled so the latest band is fully covered.
func SuggestRange(mids []float64, period int, deviation float64, rule model.TradingRule) (Range, error) {
	if period < 2 {
		period = 20
	}
	if deviation <= 0 {
		deviation = 2
	}
	if len(mids) < period {
		return Range{}, ErrNotEnoughHistory
	}

	upper, middle, lower := talib.BBands(mids, period, deviation, deviation, talib.SMA)
	last := len(mids) - 1
	lo, mid, hi := lower[last], middle[last], upper[last]
	if math.IsNaN(lo) || math.IsNaN(hi) || lo <= 0 {
		return Range{}, errors.New("bands are not usable for a grid")
	}

	r := Range{
		Min:    decimal.NewFromFloat(lo).RoundFloor(rule.PriceDecimals),
		Max:    decimal.NewFromFloat(hi).RoundCeil(rule.PriceDecimals),
		Middle: decimal.NewFromFloat(mid).Round(rule.PriceDecimals),
	}
	if !r.Min.LessThan(r.Max) {
		r.Max = r.Min.Add(rule.PriceUnit())
	}
	return r, nil
}
