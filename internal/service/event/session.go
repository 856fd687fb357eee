package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"grid-executor/internal/metrics"
	"grid-executor/internal/model"
)

const DefaultReconnectDelay = 3 * time.Second

// Handler holds the channel specific part of a stream session.
type Handler interface {
	ID() string
	// URL is resolved on every connect attempt, so handlers can refresh credentials like a listen key.
	URL(ctx context.Context) (string, error)
	OnOpen(ctx context.Context, conn *websocket.Conn) error
	OnMessage(ctx context.Context, msg []byte) error
}

// Session keeps one websocket connection alive until Close.
// Any disconnect or failed dial schedules a new attempt after ReconnectDelay.
type Session struct {
	handler Handler

	ReconnectDelay time.Duration
	// ReadTimeout bounds the silence between frames; pings from the server extend it. Zero disables it.
	ReadTimeout time.Duration
	Dialer      *websocket.Dialer

	state  atomic.Int32
	active atomic.Bool

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func NewSession(handler Handler, reconnectDelay time.Duration) *Session {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Session{
		handler:        handler,
		ReconnectDelay: reconnectDelay,
		ReadTimeout:    10 * time.Minute,
		Dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Start launches the connection loop. A session can be started once and never after Close.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.Errorf("session %s is closed", s.handler.ID())
	}
	if s.cancel != nil {
		return errors.Errorf("session %s already started", s.handler.ID())
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.active.Store(true)

	s.wg.Add(2)
	go s.run(ctx)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		s.dropConn()
	}()
	return nil
}

// Close deactivates the session, cancels any pending reconnect and waits for the loop to exit.
func (s *Session) Close() {
	s.mu.Lock()
	s.active.Store(false)
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.dropConn()
	s.wg.Wait()
	s.setState(model.StreamClosed)
}

// Reconnect drops the current socket but keeps the session active; the loop redials after the usual delay.
func (s *Session) Reconnect() {
	log.WithField("stream", s.handler.ID()).Info("[Stream] forced reconnect")
	s.dropConn()
}

func (s *Session) State() model.StreamState {
	return model.StreamState(s.state.Load())
}

func (s *Session) Active() bool {
	return s.active.Load()
}

func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()
	id := s.handler.ID()
	b := &backoff.Backoff{Min: s.ReconnectDelay, Max: s.ReconnectDelay, Factor: 1}

	for {
		if !s.active.Load() || ctx.Err() != nil {
			s.setState(model.StreamClosed)
			return
		}

		s.setState(model.StreamConnecting)
		conn, err := s.connect(ctx)
		if err == nil {
			s.setState(model.StreamOpen)
			b.Reset()
			err = s.read(ctx, conn)
		}

		if !s.active.Load() || ctx.Err() != nil {
			s.setState(model.StreamClosed)
			log.WithField("stream", id).Info("[Stream] closed")
			return
		}

		delay := b.Duration()
		s.setState(model.StreamReconnectScheduled)
		metrics.StreamReconnects.WithLabelValues(id).Inc()
		log.WithFields(log.Fields{"stream": id, "delay": delay}).WithError(err).Warn("[Stream] connection lost, reconnect scheduled")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setState(model.StreamClosed)
			return
		case <-timer.C:
		}
	}
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	url, err := s.handler.URL(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolve stream url")
	}

	conn, resp, err := s.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial: HTTP %s", resp.Status)
		}
		return nil, errors.Wrap(err, "dial")
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return nil, ctx.Err()
	}
	s.conn = conn
	s.mu.Unlock()

	if s.ReadTimeout > 0 {
		conn.SetPingHandler(func(data string) error {
			conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
			err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
			if err == websocket.ErrCloseSent {
				return nil
			}
			return err
		})
	}

	if err := s.handler.OnOpen(ctx, conn); err != nil {
		s.dropConn()
		return nil, errors.Wrap(err, "on open")
	}
	log.WithField("stream", s.handler.ID()).Info("[Stream] connected")
	return conn, nil
}

func (s *Session) read(ctx context.Context, conn *websocket.Conn) error {
	defer s.dropConn()
	for {
		if s.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handler.OnMessage(ctx, msg); err != nil {
			log.WithField("stream", s.handler.ID()).WithError(err).Warn("[Stream] message skipped")
		}
	}
}

func (s *Session) dropConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) setState(st model.StreamState) {
	s.state.Store(int32(st))
	metrics.StreamState.WithLabelValues(s.handler.ID()).Set(float64(st))
}
