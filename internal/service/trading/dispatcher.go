package trading

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"grid-executor/internal/interfaces"
	"grid-executor/internal/metrics"
	"grid-executor/internal/model"
)

const DefaultOrderDelay = 200 * time.Millisecond

// Outcome is the result of one attempt in a batch.
type Outcome struct {
	Index  int
	Order  model.OrderRequest
	Result *model.OrderResult
	Err    error
}

type Summary struct {
	Success  int
	Fail     int
	Outcomes []Outcome
}

// Dispatcher submits a batch one order at a time with a fixed pause between attempts.
type Dispatcher struct {
	Executor interfaces.OrderSubmitter
	Delay    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(executor interfaces.OrderSubmitter, delay time.Duration) *Dispatcher {
	if delay < 0 {
		delay = DefaultOrderDelay
	}
	return &Dispatcher{Executor: executor, Delay: delay, sleep: sleepContext}
}

// Dispatch never aborts on a failed order and never rolls back placed ones.
// If ctx is canceled the orders not yet attempted are reported as failed with ctx's error.
func (d *Dispatcher) Dispatch(ctx context.Context, orders []model.OrderRequest, mode model.Mode) Summary {
	sleep := d.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	summary := Summary{Outcomes: make([]Outcome, 0, len(orders))}
	log.WithFields(log.Fields{"mode": mode.Name(), "orders": len(orders), "delay": d.Delay}).
		Info("[Dispatcher] batch started")

	for i, order := range orders {
		if i > 0 {
			if err := sleep(ctx, d.Delay); err != nil {
				d.abandon(&summary, orders, i, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			d.abandon(&summary, orders, i, err)
			break
		}

		res, err := d.Executor.Submit(ctx, mode, order)
		summary.Outcomes = append(summary.Outcomes, Outcome{Index: i, Order: order, Result: res, Err: err})
		if err != nil {
			summary.Fail++
			log.WithFields(log.Fields{"index": i + 1, "of": len(orders), "side": order.Side, "price": order.Price}).
				WithError(err).Warn("[Dispatcher] order failed, continuing")
			continue
		}
		summary.Success++
	}

	outcome := "complete"
	if summary.Fail > 0 {
		outcome = "partial"
	}
	metrics.DispatchBatches.WithLabelValues(outcome).Inc()
	log.WithFields(log.Fields{
		"event":   "grid_dispatched",
		"mode":    mode.Name(),
		"success": summary.Success,
		"fail":    summary.Fail,
	}).Infof("[Dispatcher] batch finished: %d placed, %d failed", summary.Success, summary.Fail)
	return summary
}

func (d *Dispatcher) abandon(summary *Summary, orders []model.OrderRequest, from int, err error) {
	for j := from; j < len(orders); j++ {
		summary.Outcomes = append(summary.Outcomes, Outcome{Index: j, Order: orders[j], Err: err})
		summary.Fail++
	}
	log.WithError(err).Warnf("[Dispatcher] batch interrupted, %d orders not sent", len(orders)-from)
}
