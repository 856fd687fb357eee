package marketdata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"grid-executor/internal/interfaces"
	"grid-executor/internal/model"
)

const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultHistorySize = 500
)

var ErrTrackerClosed = errors.New("tracker is closed")

// SourceFactory opens a ticker subscription for symbol.
type SourceFactory func(symbol string) interfaces.TickerSource

// Tracker follows one symbol at a time and remembers its latest mid and a bounded mid history.
// Switching symbols is debounced so rapid edits open a single subscription.
type Tracker struct {
	factory     SourceFactory
	debounce    time.Duration
	historySize int

	// OnTick, when set, is called from the consumer goroutine for every tick.
	OnTick func(model.PriceTick)

	switchMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	source  interfaces.TickerSource
	stop    chan struct{}
	done    chan struct{}
	pending *time.Timer
	closed  bool
	last    map[string]model.PriceTick
	history map[string][]float64
}

var _ interfaces.PriceSource = (*Tracker)(nil)

func NewTracker(factory SourceFactory, debounce time.Duration, historySize int) *Tracker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Tracker{
		factory:     factory,
		debounce:    debounce,
		historySize: historySize,
		last:        make(map[string]model.PriceTick),
		history:     make(map[string][]float64),
	}
}

// Start subscribes to symbol right away.
func (t *Tracker) Start(ctx context.Context, symbol string) error {
	t.mu.Lock()
	t.ctx = ctx
	t.mu.Unlock()
	return t.switchTo(symbol)
}

// SetSymbol schedules a resubscription after the debounce window; a newer call replaces a pending one.
func (t *Tracker) SetSymbol(symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.pending != nil {
		t.pending.Stop()
	}
	t.pending = time.AfterFunc(t.debounce, func() {
		if err := t.switchTo(symbol); err != nil && !errors.Is(err, ErrTrackerClosed) {
			log.WithField("symbol", symbol).WithError(err).Error("[Маркет-данные] не удалось переключить символ")
		}
	})
}

// Symbol returns the symbol of the active subscription.
func (t *Tracker) Symbol() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.source == nil {
		return ""
	}
	return t.source.Symbol()
}

func (t *Tracker) LastMid(symbol string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tick, ok := t.last[strings.ToUpper(symbol)]
	return tick.Mid, ok
}

func (t *Tracker) LastTick(symbol string) (model.PriceTick, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tick, ok := t.last[strings.ToUpper(symbol)]
	return tick, ok
}

// RecentMids returns up to n most recent mids, oldest first. ok is false when fewer than n are known.
func (t *Tracker) RecentMids(symbol string, n int) ([]float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.history[strings.ToUpper(symbol)]
	take := n
	if take <= 0 || take > len(h) {
		take = len(h)
	}
	out := make([]float64, take)
	copy(out, h[len(h)-take:])
	return out, take > 0 && (n <= 0 || take == n)
}

// Close stops the subscription for good; later SetSymbol calls are ignored.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.mu.Unlock()

	t.switchMu.Lock()
	defer t.switchMu.Unlock()
	t.detach()
}

func (t *Tracker) switchTo(symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	t.switchMu.Lock()
	defer t.switchMu.Unlock()
	t.mu.Lock()
	closed, ctx := t.closed, t.ctx
	t.mu.Unlock()
	if closed {
		return ErrTrackerClosed
	}
	t.detach()

	src := t.factory(symbol)
	if ctx == nil {
		ctx = context.Background()
	}
	if err := src.Start(ctx); err != nil {
		return err
	}

	stop, done := make(chan struct{}), make(chan struct{})
	t.mu.Lock()
	t.source, t.stop, t.done = src, stop, done
	t.mu.Unlock()

	go t.consume(src, stop, done)
	log.WithField("symbol", symbol).Info("[Маркет-данные] отслеживание цены запущено")
	return nil
}

func (t *Tracker) detach() {
	t.mu.Lock()
	src, stop, done := t.source, t.stop, t.done
	t.source, t.stop, t.done = nil, nil, nil
	t.mu.Unlock()

	if src == nil {
		return
	}
	src.Close()
	close(stop)
	<-done
}

func (t *Tracker) consume(src interfaces.TickerSource, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case tick := <-src.Ticks():
			t.record(tick)
			if t.OnTick != nil {
				t.OnTick(tick)
			}
		}
	}
}

func (t *Tracker) record(tick model.PriceTick) {
	key := strings.ToUpper(tick.Symbol)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[key] = tick
	h := append(t.history[key], tick.Mid)
	if len(h) > t.historySize {
		h = h[len(h)-t.historySize:]
	}
	t.history[key] = h
}
