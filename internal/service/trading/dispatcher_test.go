package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/assert"

	"grid-executor/internal/model"
)

type recordingSubmitter struct {
	calls  []model.OrderRequest
	failAt map[int]bool
}

func (r *recordingSubmitter) Submit(_ context.Context, _ model.Mode, order model.OrderRequest) (*model.OrderResult, error) {
	idx := len(r.calls)
	r.calls = append(r.calls, order)
	if r.failAt[idx] {
		return nil, &model.ExchangeError{Status: 400, Code: -2019, Message: "Margin is insufficient."}
	}
	return &model.OrderResult{OrderID: int64(idx + 1), Price: order.Price}, nil
}

func batch(prices ...string) []model.OrderRequest {
	orders := make([]model.OrderRequest, 0, len(prices))
	for _, p := range prices {
		orders = append(orders, model.OrderRequest{Symbol: "BTCUSDT", Side: model.SideBuy, Type: model.OrderTypeLimit, Quantity: "0.001", Price: p})
	}
	return orders
}

func newTestDispatcher(sub *recordingSubmitter, sleeps *[]time.Duration) *Dispatcher {
	d := NewDispatcher(sub, 200*time.Millisecond)
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		*sleeps = append(*sleeps, dur)
		return ctx.Err()
	}
	return d
}

func TestDispatch_SubmitsInOrderWithDelayBetween(t *testing.T) {
	sub := &recordingSubmitter{}
	var sleeps []time.Duration
	d := newTestDispatcher(sub, &sleeps)

	orders := batch("90000.0", "92500.0", "97500.0", "100000.0")
	summary := d.Dispatch(context.Background(), orders, model.Simulated{})

	assert.Equal(t, summary.Success, 4)
	assert.Equal(t, summary.Fail, 0)
	assert.DeepEqual(t, sub.calls, orders)
	assert.DeepEqual(t, sleeps, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond, 200 * time.Millisecond})
	for i, o := range summary.Outcomes {
		assert.Equal(t, o.Index, i)
	}
}

func TestDispatch_FailureDoesNotAbortBatch(t *testing.T) {
	sub := &recordingSubmitter{failAt: map[int]bool{1: true}}
	var sleeps []time.Duration
	d := newTestDispatcher(sub, &sleeps)

	summary := d.Dispatch(context.Background(), batch("1", "2", "3"), model.Simulated{})

	assert.Equal(t, len(sub.calls), 3)
	assert.Equal(t, summary.Success, 2)
	assert.Equal(t, summary.Fail, 1)
	assert.Equal(t, len(sleeps), 2)
	assert.ErrorContains(t, summary.Outcomes[1].Err, "Margin is insufficient.")
	assert.Assert(t, summary.Outcomes[2].Result != nil)
}

func TestDispatch_EmptyBatch(t *testing.T) {
	sub := &recordingSubmitter{}
	var sleeps []time.Duration
	summary := newTestDispatcher(sub, &sleeps).Dispatch(context.Background(), nil, model.Simulated{})
	assert.Equal(t, summary.Success+summary.Fail, 0)
	assert.Equal(t, len(sleeps), 0)
}

func TestDispatch_CancelCountsRemainingAsFailed(t *testing.T) {
	sub := &recordingSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(sub, time.Millisecond)
	d.sleep = func(_ context.Context, _ time.Duration) error {
		cancel()
		return context.Canceled
	}

	summary := d.Dispatch(ctx, batch("1", "2", "3"), model.Simulated{})

	assert.Equal(t, len(sub.calls), 1)
	assert.Equal(t, summary.Success, 1)
	assert.Equal(t, summary.Fail, 2)
	assert.Equal(t, len(summary.Outcomes), 3)
	assert.Assert(t, errors.Is(summary.Outcomes[2].Err, context.Canceled))
}

func TestDispatch_RealDelay(t *testing.T) {
	sub := &recordingSubmitter{}
	d := NewDispatcher(sub, 20*time.Millisecond)

	start := time.Now()
	summary := d.Dispatch(context.Background(), batch("1", "2", "3"), model.Simulated{})
	assert.Equal(t, summary.Success, 3)
	assert.Assert(t, time.Since(start) >= 40*time.Millisecond)
}
