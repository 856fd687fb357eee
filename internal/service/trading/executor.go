package trading

import (
	"context"
	"strings"
	"time"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"grid-executor/internal/client"
	"grid-executor/internal/interfaces"
	"grid-executor/internal/metrics"
	"grid-executor/internal/model"
)

// SimulationConfig controls the simulated venue.
// FailureRate is the probability (0..1) that a simulated call is rejected.
type SimulationConfig struct {
	Delay       time.Duration
	FailureRate float64
}

// Executor submits and cancels single orders in either execution mode.
type Executor struct {
	API        *client.Binance
	Simulation SimulationConfig

	simOrders cmap.ConcurrentMap
}

var (
	_ interfaces.OrderSubmitter = (*Executor)(nil)
	_ interfaces.OrderCanceler  = (*Executor)(nil)
)

func NewExecutor(api *client.Binance, sim SimulationConfig) *Executor {
	return &Executor{
		API:        api,
		Simulation: sim,
		simOrders:  cmap.New(),
	}
}

// Submit places one order. The mode is resolved once, here.
func (e *Executor) Submit(ctx context.Context, mode model.Mode, order model.OrderRequest) (*model.OrderResult, error) {
	var (
		res *model.OrderResult
		err error
	)
	switch m := mode.(type) {
	case model.Simulated:
		res, err = e.submitSimulated(ctx, order)
	case model.Live:
		res, err = e.submitLive(ctx, m.Credentials, order)
	default:
		return nil, errors.Errorf("unsupported execution mode %T", mode)
	}

	fields := log.Fields{
		"mode":   mode.Name(),
		"symbol": strings.ToUpper(order.Symbol),
		"side":   order.Side,
		"type":   order.Type,
		"qty":    order.Quantity,
		"price":  order.Price,
	}
	if err != nil {
		metrics.OrdersSubmitted.WithLabelValues(mode.Name(), "error").Inc()
		log.WithFields(fields).WithField("event", "order_failed").WithError(err).Error("[Executor] order rejected")
		return nil, err
	}
	metrics.OrdersSubmitted.WithLabelValues(mode.Name(), "ok").Inc()
	log.WithFields(fields).WithFields(log.Fields{
		"event":    "order_placed",
		"order_id": res.OrderID,
		"client":   res.ClientOrderID,
		"status":   res.Status,
	}).Info("[Executor] order accepted")
	return res, nil
}

// Cancel cancels by order id or client order id, see ResolveCancelTarget.
func (e *Executor) Cancel(ctx context.Context, mode model.Mode, symbol, target string) (*model.CancelResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	target = strings.TrimSpace(target)
	if symbol == "" {
		return nil, &model.ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	if target == "" {
		return nil, &model.ValidationError{Field: "order", Reason: "order id or client order id is required"}
	}

	var (
		res *model.CancelResult
		err error
	)
	switch m := mode.(type) {
	case model.Simulated:
		res, err = e.cancelSimulated(ctx, symbol, target)
	case model.Live:
		res, err = e.cancelLive(ctx, m.Credentials, symbol, target)
	default:
		return nil, errors.Errorf("unsupported execution mode %T", mode)
	}

	fields := log.Fields{"mode": mode.Name(), "symbol": symbol, "target": target}
	if err != nil {
		metrics.OrdersCanceled.WithLabelValues(mode.Name(), "error").Inc()
		log.WithFields(fields).WithField("event", "cancel_failed").WithError(err).Error("[Executor] cancel rejected")
		return nil, err
	}
	metrics.OrdersCanceled.WithLabelValues(mode.Name(), "ok").Inc()
	log.WithFields(fields).WithFields(log.Fields{"event": "order_canceled", "status": res.Status}).Info("[Executor] order canceled")
	return res, nil
}

// ResolveCancelTarget maps a user supplied identifier to the exchange parameter.
// A purely numeric string is taken as the exchange order id, anything else as the
// original client order id. Numeric client order ids are therefore misread as order ids.
func ResolveCancelTarget(target string) (key, value string) {
	if isNumeric(target) {
		return "orderId", target
	}
	return "origClientOrderId", target
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
