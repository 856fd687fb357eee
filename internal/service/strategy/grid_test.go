package strategy

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gotest.tools/assert"

	"grid-executor/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var rules = model.NewRuleBook(nil)

func TestGenerate_DropsLevelAtReference(t *testing.T) {
	orders, err := Generate(GridParams{
		Symbol:         "btcusdt",
		MinPrice:       d("90000"),
		MaxPrice:       d("100000"),
		Levels:         5,
		ReferencePrice: d("95000"),
		Quantity:       "0.001",
	}, rules.Lookup("BTCUSDT"))
	assert.NilError(t, err)

	type level struct {
		Side  model.Side
		Price string
	}
	var got []level
	for _, o := range orders {
		assert.Equal(t, o.Symbol, "BTCUSDT")
		assert.Equal(t, o.Type, model.OrderTypeLimit)
		assert.Equal(t, o.TimeInForce, "GTC")
		assert.Equal(t, o.Quantity, "0.001")
		got = append(got, level{o.Side, o.Price})
	}
	assert.DeepEqual(t, got, []level{
		{model.SideBuy, "90000.0"},
		{model.SideBuy, "92500.0"},
		{model.SideSell, "97500.0"},
		{model.SideSell, "100000.0"},
	})
}

func TestGenerate_ReferenceOutsideRange(t *testing.T) {
	orders, err := Generate(GridParams{
		Symbol: "ETHUSDT", MinPrice: d("3000"), MaxPrice: d("3100"), Levels: 3,
		ReferencePrice: d("2500"), Quantity: "0.01",
	}, rules.Lookup("ETHUSDT"))
	assert.NilError(t, err)
	assert.Equal(t, len(orders), 3)
	for _, o := range orders {
		assert.Equal(t, o.Side, model.SideSell)
	}
	assert.Equal(t, orders[1].Price, "3050.00")
}

func TestGenerate_KeepsLevelOneUnitAway(t *testing.T) {
	orders, err := Generate(GridParams{
		Symbol: "ETHUSDT", MinPrice: d("100.00"), MaxPrice: d("100.02"), Levels: 3,
		ReferencePrice: d("100.01"), Quantity: "1",
	}, rules.Lookup("ETHUSDT"))
	assert.NilError(t, err)
	assert.Equal(t, len(orders), 2)
	assert.Equal(t, orders[0].Price, "100.00")
	assert.Equal(t, orders[0].Side, model.SideBuy)
	assert.Equal(t, orders[1].Price, "100.02")
	assert.Equal(t, orders[1].Side, model.SideSell)
}

func TestGenerate_Invariants(t *testing.T) {
	cases := []GridParams{
		{Symbol: "BTCUSDT", MinPrice: d("60000"), MaxPrice: d("70000"), Levels: 7, ReferencePrice: d("64321.5")},
		{Symbol: "DOGEUSDT", MinPrice: d("0.1"), MaxPrice: d("0.10003"), Levels: 10, ReferencePrice: d("0.10001")},
		{Symbol: "XRPUSDT", MinPrice: d("0.5"), MaxPrice: d("0.6"), Levels: 2, ReferencePrice: d("0.55")},
		{Symbol: "UNKNOWN", MinPrice: d("1"), MaxPrice: d("2"), Levels: 11, ReferencePrice: d("1.5")},
	}
	for _, p := range cases {
		p.Quantity = "1"
		rule := rules.Lookup(p.Symbol)
		orders, err := Generate(p, rule)
		assert.NilError(t, err, p.Symbol)
		assert.Assert(t, len(orders) <= p.Levels, p.Symbol)

		var prev decimal.Decimal
		for i, o := range orders {
			price := d(o.Price)
			assert.Assert(t, !price.LessThan(p.MinPrice) && !price.GreaterThan(p.MaxPrice), "%s %s out of range", p.Symbol, o.Price)
			assert.Assert(t, !price.Sub(p.ReferencePrice).Abs().LessThan(rule.PriceUnit()), "%s %s too close to reference", p.Symbol, o.Price)
			if i > 0 {
				assert.Assert(t, price.GreaterThan(prev), "%s not ascending at %d", p.Symbol, i)
			}
			wantSide := model.SideSell
			if price.LessThan(p.ReferencePrice) {
				wantSide = model.SideBuy
			}
			assert.Equal(t, o.Side, wantSide)
			prev = price
		}
	}
}

func TestGenerate_RejectsBadParams(t *testing.T) {
	rule := rules.Lookup("BTCUSDT")
	_, err := Generate(GridParams{MinPrice: d("1"), MaxPrice: d("2"), Levels: 1}, rule)
	var vErr *model.ValidationError
	assert.Assert(t, errors.As(err, &vErr))
	assert.Equal(t, vErr.Field, "levels")

	_, err = Generate(GridParams{MinPrice: d("2"), MaxPrice: d("2"), Levels: 3}, rule)
	assert.Assert(t, errors.As(err, &vErr))
	assert.Equal(t, vErr.Field, "min_price")
}
