package event

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"grid-executor/internal/interfaces"
	"grid-executor/internal/metrics"
	"grid-executor/internal/model"
)

const (
	DefaultRenewalInterval     = 50 * time.Minute
	DefaultRenewalFailureLimit = 3

	userStreamID  = "user"
	updateBuffer  = 64
	errorsBuffer  = 8
	eventOrder    = "ORDER_TRADE_UPDATE"
	eventKeyStale = "listenKeyExpired"
)

// userJSON keeps numbers inside the "o" map as json.Number so order ids above 2^53 survive.
var userJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

type userEnvelope struct {
	EventType string                 `json:"e"`
	EventTime int64                  `json:"E"`
	TxTime    int64                  `json:"T"`
	Order     map[string]interface{} `json:"o"`
}

// orderPayload mirrors the "o" object. Keys differ only by case ("s"/"S", "x"/"X"),
// mapstructure matches exact names first.
type orderPayload struct {
	Symbol        string `mapstructure:"s"`
	ClientOrderID string `mapstructure:"c"`
	Side          string `mapstructure:"S"`
	Type          string `mapstructure:"o"`
	ExecutionType string `mapstructure:"x"`
	Status        string `mapstructure:"X"`
	OrderID       int64  `mapstructure:"i"`
	OrigQty       string `mapstructure:"q"`
	ExecutedQty   string `mapstructure:"z"`
	AvgPrice      string `mapstructure:"ap"`
	Price         string `mapstructure:"p"`
}

// RenewalError reports one failed keep-alive call.
type RenewalError struct {
	Err         error
	Consecutive int
	Time        time.Time
}

// UserStreamConfig holds the tunables of the private stream.
type UserStreamConfig struct {
	ReconnectDelay  time.Duration
	RenewalInterval time.Duration
	// FailureLimit consecutive renewal failures force a reconnect with a fresh key.
	FailureLimit int
}

// UserStream delivers order status updates from the private user data stream.
type UserStream struct {
	*Session

	api     interfaces.ListenKeyProvider
	creds   *model.Credentials
	baseURL string
	cfg     UserStreamConfig

	updates       chan model.OrderUpdate
	renewalErrors chan RenewalError

	mu        sync.Mutex
	listenKey string
	failures  int
	renewWG   sync.WaitGroup
	stopRenew context.CancelFunc
}

func NewUserStream(api interfaces.ListenKeyProvider, creds *model.Credentials, baseURL string, cfg UserStreamConfig) *UserStream {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	if cfg.RenewalInterval <= 0 {
		cfg.RenewalInterval = DefaultRenewalInterval
	}
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = DefaultRenewalFailureLimit
	}
	u := &UserStream{
		api:           api,
		creds:         creds,
		baseURL:       strings.TrimRight(baseURL, "/"),
		cfg:           cfg,
		updates:       make(chan model.OrderUpdate, updateBuffer),
		renewalErrors: make(chan RenewalError, errorsBuffer),
	}
	u.Session = NewSession(u, cfg.ReconnectDelay)
	return u
}

// Start checks credentials, then runs the session and the renewal timer.
func (u *UserStream) Start(ctx context.Context) error {
	if !u.creds.Complete() {
		if u.creds == nil || u.creds.APIKey == "" {
			return &model.CredentialError{Missing: "api key"}
		}
		return &model.CredentialError{Missing: "secret"}
	}
	if err := u.Session.Start(ctx); err != nil {
		return err
	}

	renewCtx, cancel := context.WithCancel(ctx)
	u.mu.Lock()
	u.stopRenew = cancel
	u.mu.Unlock()
	u.renewWG.Add(1)
	go u.renewLoop(renewCtx)
	return nil
}

func (u *UserStream) Close() {
	u.mu.Lock()
	stop := u.stopRenew
	u.mu.Unlock()
	if stop != nil {
		stop()
	}
	u.renewWG.Wait()
	u.Session.Close()
}

func (u *UserStream) Updates() <-chan model.OrderUpdate {
	return u.updates
}

// RenewalErrors receives every failed keep-alive. Errors are dropped when nobody reads.
func (u *UserStream) RenewalErrors() <-chan RenewalError {
	return u.renewalErrors
}

func (u *UserStream) ListenKey() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.listenKey
}

func (u *UserStream) ID() string {
	return userStreamID
}

// URL obtains a listen key on every connect attempt.
func (u *UserStream) URL(ctx context.Context) (string, error) {
	key, err := u.api.StartListenKey(ctx, u.creds)
	if err != nil {
		return "", errors.Wrap(err, "obtain listen key")
	}
	u.mu.Lock()
	u.listenKey = key
	u.failures = 0
	u.mu.Unlock()
	return u.baseURL + "/ws/" + key, nil
}

func (u *UserStream) OnOpen(_ context.Context, _ *websocket.Conn) error {
	log.Info("[Стрим ордеров] приватный стрим подключен")
	return nil
}

func (u *UserStream) OnMessage(_ context.Context, msg []byte) error {
	env, err := parseUserEvent(msg)
	if err != nil {
		return err
	}

	switch env.EventType {
	case eventOrder:
		upd, err := decodeOrderUpdate(env)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"event":    "order_update",
			"symbol":   upd.Symbol,
			"order_id": upd.OrderID,
			"side":     upd.Side,
			"status":   upd.Status,
			"exec":     upd.ExecutionType,
			"filled":   upd.ExecutedQty,
		}).Info("[Стрим ордеров] обновление ордера")
		select {
		case u.updates <- upd:
		default:
			metrics.StreamDropped.WithLabelValues(userStreamID).Inc()
		}
	case eventKeyStale:
		log.Warn("[Стрим ордеров] listen key истек, переподключение")
		u.Reconnect()
	}
	return nil
}

func parseUserEvent(msg []byte) (userEnvelope, error) {
	var env userEnvelope
	if err := userJSON.Unmarshal(msg, &env); err != nil {
		return userEnvelope{}, errors.Wrap(err, "decode user event")
	}
	return env, nil
}

func decodeOrderUpdate(env userEnvelope) (model.OrderUpdate, error) {
	if env.Order == nil {
		return model.OrderUpdate{}, errors.New("ORDER_TRADE_UPDATE without order payload")
	}
	var p orderPayload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return model.OrderUpdate{}, err
	}
	if err := dec.Decode(env.Order); err != nil {
		return model.OrderUpdate{}, errors.Wrap(err, "decode order payload")
	}
	return model.OrderUpdate{
		Symbol:        p.Symbol,
		ClientOrderID: p.ClientOrderID,
		OrderID:       p.OrderID,
		Side:          p.Side,
		Type:          p.Type,
		Status:        p.Status,
		ExecutionType: p.ExecutionType,
		OrigQty:       p.OrigQty,
		ExecutedQty:   p.ExecutedQty,
		AvgPrice:      p.AvgPrice,
		Price:         p.Price,
		EventTime:     time.UnixMilli(env.EventTime),
	}, nil
}

func (u *UserStream) renewLoop(ctx context.Context) {
	defer u.renewWG.Done()
	ticker := time.NewTicker(u.cfg.RenewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.renew(ctx)
		}
	}
}

func (u *UserStream) renew(ctx context.Context) {
	err := u.api.KeepAliveListenKey(ctx, u.creds)
	u.mu.Lock()
	if err == nil {
		u.failures = 0
		u.mu.Unlock()
		log.Debug("[Стрим ордеров] listen key продлен")
		return
	}
	if ctx.Err() != nil {
		u.mu.Unlock()
		return
	}
	u.failures++
	failures := u.failures
	escalate := failures >= u.cfg.FailureLimit
	if escalate {
		u.failures = 0
	}
	u.mu.Unlock()

	metrics.ListenKeyRenewalFailures.Inc()
	log.WithFields(log.Fields{"event": "listen_key_renewal_failed", "consecutive": failures}).
		WithError(err).Error("[Стрим ордеров] не удалось продлить listen key")

	select {
	case u.renewalErrors <- RenewalError{Err: err, Consecutive: failures, Time: time.Now()}:
	default:
	}
	if escalate {
		u.Reconnect()
	}
}
