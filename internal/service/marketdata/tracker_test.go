package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gotest.tools/assert"

	"grid-executor/internal/interfaces"
	"grid-executor/internal/model"
)

type fakeSource struct {
	symbol string
	ticks  chan model.PriceTick
	closed bool
	mu     sync.Mutex
}

func (f *fakeSource) Start(context.Context) error   { return nil }
func (f *fakeSource) Symbol() string                { return f.symbol }
func (f *fakeSource) Ticks() <-chan model.PriceTick { return f.ticks }
func (f *fakeSource) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

type fakeFactory struct {
	mu      sync.Mutex
	sources []*fakeSource
}

func (f *fakeFactory) open(symbol string) interfaces.TickerSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := &fakeSource{symbol: symbol, ticks: make(chan model.PriceTick, 16)}
	f.sources = append(f.sources, src)
	return src
}

func (f *fakeFactory) opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sources {
		out = append(out, s.symbol)
	}
	return out
}

func (f *fakeFactory) latest() *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[len(f.sources)-1]
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_RecordsTicks(t *testing.T) {
	f := &fakeFactory{}
	tr := NewTracker(f.open, 10*time.Millisecond, 3)
	assert.NilError(t, tr.Start(context.Background(), "btcusdt"))
	defer tr.Close()
	assert.Equal(t, tr.Symbol(), "BTCUSDT")

	src := f.latest()
	for _, mid := range []float64{1, 2, 3, 4} {
		src.ticks <- model.PriceTick{Symbol: "BTCUSDT", Mid: mid}
	}
	eventually(t, func() bool {
		mid, ok := tr.LastMid("btcusdt")
		return ok && mid == 4
	})

	mids, ok := tr.RecentMids("BTCUSDT", 3)
	assert.Assert(t, ok)
	assert.DeepEqual(t, mids, []float64{2, 3, 4})

	_, ok = tr.RecentMids("BTCUSDT", 10)
	assert.Assert(t, !ok)

	var _ Service = tr
}

func TestTracker_DebouncesSymbolChanges(t *testing.T) {
	f := &fakeFactory{}
	tr := NewTracker(f.open, 30*time.Millisecond, 10)
	assert.NilError(t, tr.Start(context.Background(), "BTCUSDT"))
	defer tr.Close()

	tr.SetSymbol("E")
	tr.SetSymbol("ET")
	tr.SetSymbol("ethusdt")

	eventually(t, func() bool { return tr.Symbol() == "ETHUSDT" })
	time.Sleep(60 * time.Millisecond)
	assert.DeepEqual(t, f.opened(), []string{"BTCUSDT", "ETHUSDT"})

	f.mu.Lock()
	first := f.sources[0]
	f.mu.Unlock()
	first.mu.Lock()
	defer first.mu.Unlock()
	assert.Assert(t, first.closed)
}

func TestTracker_OnTickCallback(t *testing.T) {
	f := &fakeFactory{}
	got := make(chan model.PriceTick, 1)
	tr := NewTracker(f.open, 0, 0)
	tr.OnTick = func(tick model.PriceTick) { got <- tick }
	assert.NilError(t, tr.Start(context.Background(), "SOLUSDT"))
	defer tr.Close()

	f.latest().ticks <- model.PriceTick{Symbol: "SOLUSDT", Mid: 150.5, Display: "150.50"}
	select {
	case tick := <-got:
		assert.Equal(t, tick.Display, "150.50")
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestTracker_UnknownSymbol(t *testing.T) {
	tr := NewTracker((&fakeFactory{}).open, 0, 0)
	_, ok := tr.LastMid("BTCUSDT")
	assert.Assert(t, !ok)
	mids, ok := tr.RecentMids("BTCUSDT", 5)
	assert.Assert(t, !ok)
	assert.Equal(t, len(mids), 0)
	tr.Close()
}

func TestTracker_IgnoresSymbolChangesAfterClose(t *testing.T) {
	f := &fakeFactory{}
	tr := NewTracker(f.open, 10*time.Millisecond, 10)
	assert.NilError(t, tr.Start(context.Background(), "BTCUSDT"))
	tr.Close()

	tr.SetSymbol("ETHUSDT")
	time.Sleep(50 * time.Millisecond)

	assert.DeepEqual(t, f.opened(), []string{"BTCUSDT"})
	assert.Equal(t, tr.Symbol(), "")
	assert.Assert(t, errors.Is(tr.Start(context.Background(), "ETHUSDT"), ErrTrackerClosed))
}

func TestTracker_CloseDropsPendingSwitch(t *testing.T) {
	f := &fakeFactory{}
	tr := NewTracker(f.open, 20*time.Millisecond, 10)
	assert.NilError(t, tr.Start(context.Background(), "BTCUSDT"))
	tr.SetSymbol("ETHUSDT")
	tr.Close()

	time.Sleep(60 * time.Millisecond)
	assert.DeepEqual(t, f.opened(), []string{"BTCUSDT"})
}
