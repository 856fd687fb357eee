package event

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/thrasher-corp/gocryptotrader/types"

	"grid-executor/internal/interfaces"
	"grid-executor/internal/metrics"
	"grid-executor/internal/model"
	"grid-executor/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultStreamURL = "wss://stream.binancefuture.com"

	tickerStreamID = "ticker"
	tickBuffer     = 64
)

// bookTickerEvent lists the quantity fields too: without them a case-insensitive
// decoder would put "B" into the bid price.
type bookTickerEvent struct {
	EventType string       `json:"e"`
	UpdateID  int64        `json:"u"`
	Symbol    string       `json:"s"`
	BidPrice  types.Number `json:"b"`
	BidQty    types.Number `json:"B"`
	AskPrice  types.Number `json:"a"`
	AskQty    types.Number `json:"A"`
	TxTime    int64        `json:"T"`
	EventTime int64        `json:"E"`
}

// TickerStream publishes best bid/ask mid prices of one symbol.
type TickerStream struct {
	*Session

	baseURL   string
	symbol    string
	ticks     chan model.PriceTick
	formatter *utils.Formatter
}

var _ interfaces.TickerSource = (*TickerStream)(nil)

func NewTickerStream(baseURL, symbol string, reconnectDelay time.Duration) *TickerStream {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	t := &TickerStream{
		baseURL:   strings.TrimRight(baseURL, "/"),
		symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		ticks:     make(chan model.PriceTick, tickBuffer),
		formatter: &utils.Formatter{},
	}
	t.Session = NewSession(t, reconnectDelay)
	return t
}

// Ticks is never closed; consumers stop reading after Close.
func (t *TickerStream) Ticks() <-chan model.PriceTick {
	return t.ticks
}

func (t *TickerStream) Symbol() string {
	return t.symbol
}

func (t *TickerStream) ID() string {
	return tickerStreamID
}

func (t *TickerStream) URL(_ context.Context) (string, error) {
	if t.symbol == "" {
		return "", errors.New("ticker stream needs a symbol")
	}
	return t.baseURL + "/ws/" + strings.ToLower(t.symbol) + "@bookTicker", nil
}

func (t *TickerStream) OnOpen(_ context.Context, _ *websocket.Conn) error {
	log.WithField("symbol", t.symbol).Info("[Маркет-данные] подписка на bookTicker активна")
	return nil
}

func (t *TickerStream) OnMessage(_ context.Context, msg []byte) error {
	tick, err := t.parse(msg)
	if err != nil {
		return err
	}
	select {
	case t.ticks <- tick:
	default:
		metrics.StreamDropped.WithLabelValues(tickerStreamID).Inc()
	}
	return nil
}

func (t *TickerStream) parse(msg []byte) (model.PriceTick, error) {
	var ev bookTickerEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return model.PriceTick{}, errors.Wrap(err, "decode bookTicker")
	}
	bid, ask := ev.BidPrice.Float64(), ev.AskPrice.Float64()
	mid, err := utils.MidPrice(bid, ask)
	if err != nil {
		return model.PriceTick{}, err
	}

	symbol := ev.Symbol
	if symbol == "" {
		symbol = t.symbol
	}
	ts := time.Now()
	if ev.EventTime > 0 {
		ts = time.UnixMilli(ev.EventTime)
	}
	return model.PriceTick{
		Symbol:  symbol,
		Bid:     bid,
		Ask:     ask,
		Mid:     mid,
		Display: t.formatter.FormatMid(mid),
		Time:    ts,
	}, nil
}
