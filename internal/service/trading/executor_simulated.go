package trading

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"grid-executor/internal/model"
)

const simulatedClientPrefix = "sim_"

func (e *Executor) submitSimulated(ctx context.Context, order model.OrderRequest) (*model.OrderResult, error) {
	if err := sleepContext(ctx, e.Simulation.Delay); err != nil {
		return nil, err
	}
	if e.injectFailure() {
		return nil, &model.ExchangeError{Status: 400, Code: -1, Message: "simulated rejection"}
	}

	res := &model.OrderResult{
		OrderID:       1_000_000_000 + rand.Int64N(9_000_000_000),
		ClientOrderID: simulatedClientPrefix + xid.New().String(),
		Symbol:        strings.ToUpper(strings.TrimSpace(order.Symbol)),
		Side:          order.Side,
		Type:          string(order.Type),
		Status:        "NEW",
		Price:         order.Price,
		OrigQty:       order.Quantity,
		ExecutedQty:   "0",
		AvgPrice:      "0",
		UpdateTime:    time.Now(),
		Simulated:     true,
	}
	e.simOrders.Set(strconv.FormatInt(res.OrderID, 10), res)
	e.simOrders.Set(res.ClientOrderID, res)
	return res, nil
}

// cancelSimulated echoes the remembered order when it is known. Unknown ids are
// acknowledged too, the simulated venue keeps no authoritative book.
func (e *Executor) cancelSimulated(ctx context.Context, symbol, target string) (*model.CancelResult, error) {
	if err := sleepContext(ctx, e.Simulation.Delay); err != nil {
		return nil, err
	}
	if e.injectFailure() {
		return nil, &model.ExchangeError{Status: 400, Code: -2011, Message: "simulated cancel rejection"}
	}

	res := &model.CancelResult{
		Symbol:     symbol,
		Status:     "CANCELED",
		UpdateTime: time.Now(),
		Simulated:  true,
	}
	key, value := ResolveCancelTarget(target)
	if key == "orderId" {
		res.OrderID, _ = strconv.ParseInt(value, 10, 64)
	} else {
		res.ClientOrderID = value
	}

	if v, ok := e.simOrders.Get(target); ok {
		placed := v.(*model.OrderResult)
		res.OrderID = placed.OrderID
		res.ClientOrderID = placed.ClientOrderID
		res.Symbol = placed.Symbol
		res.Side = placed.Side
		e.simOrders.Remove(strconv.FormatInt(placed.OrderID, 10))
		e.simOrders.Remove(placed.ClientOrderID)
	}
	return res, nil
}

func (e *Executor) injectFailure() bool {
	rate := e.Simulation.FailureRate
	if rate <= 0 {
		return false
	}
	return rate >= 1 || rand.Float64() < rate
}

// SimulatedOpenOrders reports how many simulated orders are still remembered.
func (e *Executor) SimulatedOpenOrders() int {
	return e.simOrders.Count() / 2
}
