package strategy

import (
	"math"
	"testing"

	"gotest.tools/assert"
)

func TestSuggestRange_WrapsLatestPrice(t *testing.T) {
	mids := make([]float64, 60)
	for i := range mids {
		mids[i] = 95000 + 400*math.Sin(float64(i)/3)
	}
	rule := rules.Lookup("BTCUSDT")

	r, err := SuggestRange(mids, 20, 2, rule)
	assert.NilError(t, err)
	assert.Assert(t, r.Min.LessThan(r.Middle))
	assert.Assert(t, r.Middle.LessThan(r.Max))
	assert.Assert(t, r.Min.GreaterThan(d("93000")) && r.Max.LessThan(d("97000")))
	assert.Assert(t, r.Min.Exponent() >= -rule.PriceDecimals)
	assert.Assert(t, r.Max.Exponent() >= -rule.PriceDecimals)
}

func TestSuggestRange_FlatSeriesStillGivesSpan(t *testing.T) {
	mids := make([]float64, 25)
	for i := range mids {
		mids[i] = 2.5
	}
	r, err := SuggestRange(mids, 20, 2, rules.Lookup("XRPUSDT"))
	assert.NilError(t, err)
	assert.Assert(t, r.Min.LessThan(r.Max))
}

func TestSuggestRange_NeedsHistory(t *testing.T) {
	_, err := SuggestRange([]float64{1, 2, 3}, 20, 2, rules.Lookup("BTCUSDT"))
	assert.Equal(t, err, ErrNotEnoughHistory)
}
