package client

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"grid-executor/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultRestURL    = "https://testnet.binancefuture.com"
	DefaultAPIPrefix  = "/fapi/v1"
	DefaultRecvWindow = 5000

	apiKeyHeader = "X-MBX-APIKEY"
)

// Binance is a thin signed REST client for the USDⓈ-M futures API.
// Every private call carries timestamp, recvWindow and signature in the query string.
type Binance struct {
	baseURL    string
	prefix     string
	recvWindow int64
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Binance)

func WithHTTPClient(c *http.Client) Option {
	return func(b *Binance) { b.httpClient = c }
}

func WithRecvWindow(ms int64) Option {
	return func(b *Binance) { b.recvWindow = ms }
}

// WithClock overrides the timestamp source; tests use it to pin signatures.
func WithClock(now func() time.Time) Option {
	return func(b *Binance) { b.now = now }
}

func NewBinance(baseURL, prefix string, opts ...Option) *Binance {
	if baseURL == "" {
		baseURL = DefaultRestURL
	}
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	b := &Binance{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     "/" + strings.Trim(prefix, "/"),
		recvWindow: DefaultRecvWindow,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OrderResponse mirrors the order payload returned by POST and DELETE /order.
type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	TimeInForce   string `json:"timeInForce"`
	UpdateTime    int64  `json:"updateTime"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// PlaceOrder sends POST /order with the caller-ordered params.
func (b *Binance) PlaceOrder(ctx context.Context, creds *model.Credentials, params *Params) (*OrderResponse, error) {
	body, err := b.SignedRequest(ctx, http.MethodPost, "/order", params, creds)
	if err != nil {
		return nil, err
	}
	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode order response")
	}
	return &resp, nil
}

// CancelOrder sends DELETE /order.
func (b *Binance) CancelOrder(ctx context.Context, creds *model.Credentials, params *Params) (*OrderResponse, error) {
	body, err := b.SignedRequest(ctx, http.MethodDelete, "/order", params, creds)
	if err != nil {
		return nil, err
	}
	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode cancel response")
	}
	return &resp, nil
}

// StartListenKey opens (or returns the already active) user data stream key.
func (b *Binance) StartListenKey(ctx context.Context, creds *model.Credentials) (string, error) {
	body, err := b.SignedRequest(ctx, http.MethodPost, "/listenKey", NewParams(), creds)
	if err != nil {
		return "", err
	}
	var resp listenKeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "decode listenKey response")
	}
	if resp.ListenKey == "" {
		return "", errors.New("empty listenKey in response")
	}
	return resp.ListenKey, nil
}

// KeepAliveListenKey extends the active key's validity by another 60 minutes.
func (b *Binance) KeepAliveListenKey(ctx context.Context, creds *model.Credentials) error {
	_, err := b.SignedRequest(ctx, http.MethodPut, "/listenKey", NewParams(), creds)
	return err
}

// SignedRequest appends timestamp and recvWindow to params, signs the encoded
// query and sends it with the API key header. The returned body belongs to a 2xx response.
func (b *Binance) SignedRequest(ctx context.Context, method, endpoint string, params *Params, creds *model.Credentials) ([]byte, error) {
	if creds == nil || creds.APIKey == "" {
		return nil, &model.CredentialError{Missing: "api key"}
	}
	if creds.Secret == "" {
		return nil, &model.CredentialError{Missing: "secret"}
	}
	if params == nil {
		params = NewParams()
	}

	params.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(b.recvWindow, 10))

	query := params.Encode()
	signed := query + "&signature=" + Sign(creds.Secret, query)

	op := method + " " + endpoint
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+b.prefix+endpoint+"?"+signed, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request %s", op)
	}
	req.Header.Set(apiKeyHeader, creds.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.WithFields(log.Fields{"method": method, "endpoint": endpoint, "params": strings.Join(params.Keys(), ",")}).
		Debug("[REST] signed request")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &model.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		exErr := &model.ExchangeError{Status: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil {
			exErr.Code = apiErr.Code
			exErr.Message = apiErr.Msg
		}
		log.WithFields(log.Fields{"op": op, "status": resp.StatusCode, "code": exErr.Code}).
			Warn("[REST] exchange rejected request")
		return nil, exErr
	}
	return body, nil
}
