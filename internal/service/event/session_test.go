package event

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"gotest.tools/assert"

	"grid-executor/internal/model"
)

type stubHandler struct {
	url      string
	urlErr   error
	opened   int32
	messages int32
}

func (h *stubHandler) ID() string { return "stub" }
func (h *stubHandler) URL(context.Context) (string, error) {
	return h.url, h.urlErr
}
func (h *stubHandler) OnOpen(context.Context, *websocket.Conn) error {
	atomic.AddInt32(&h.opened, 1)
	return nil
}
func (h *stubHandler) OnMessage(_ context.Context, msg []byte) error {
	atomic.AddInt32(&h.messages, 1)
	if string(msg) == "bad" {
		return errors.New("cannot parse")
	}
	return nil
}

func newWSServer(t *testing.T, serve func(r *http.Request, conn *websocket.Conn)) (*httptest.Server, *int32) {
	t.Helper()
	var accepted int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		atomic.AddInt32(&accepted, 1)
		serve(r, conn)
	}))
	t.Cleanup(server.Close)
	return server, &accepted
}

// holdOpen keeps the server side open until the client goes away.
func holdOpen(_ *http.Request, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func wsURL(httpURL string) string {
	return strings.Replace(httpURL, "http://", "ws://", 1)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_ReconnectsAfterServerClose(t *testing.T) {
	server, accepted := newWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`))
	})
	h := &stubHandler{url: wsURL(server.URL)}
	s := NewSession(h, 20*time.Millisecond)

	assert.NilError(t, s.Start(context.Background()))
	defer s.Close()

	waitFor(t, "second connection", func() bool { return atomic.LoadInt32(accepted) >= 2 })
	assert.Assert(t, atomic.LoadInt32(&h.opened) >= 2)
	assert.Assert(t, s.Active())
}

func TestSession_NoReconnectAfterClose(t *testing.T) {
	server, accepted := newWSServer(t, holdOpen)
	h := &stubHandler{url: wsURL(server.URL)}
	s := NewSession(h, 20*time.Millisecond)

	assert.NilError(t, s.Start(context.Background()))
	waitFor(t, "open state", func() bool { return s.State() == model.StreamOpen })

	s.Close()
	assert.Equal(t, s.State(), model.StreamClosed)
	assert.Assert(t, !s.Active())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, atomic.LoadInt32(accepted), int32(1))
}

func TestSession_CloseCancelsPendingReconnect(t *testing.T) {
	h := &stubHandler{urlErr: errors.New("no route")}
	s := NewSession(h, time.Hour)

	assert.NilError(t, s.Start(context.Background()))
	waitFor(t, "scheduled reconnect", func() bool { return s.State() == model.StreamReconnectScheduled })

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a reconnect was pending")
	}
	assert.Equal(t, s.State(), model.StreamClosed)
}

func TestSession_ParseErrorsDoNotStopSession(t *testing.T) {
	server, accepted := newWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("bad"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`))
		holdOpen(r, conn)
	})
	h := &stubHandler{url: wsURL(server.URL)}
	s := NewSession(h, 20*time.Millisecond)

	assert.NilError(t, s.Start(context.Background()))
	defer s.Close()

	waitFor(t, "both messages", func() bool { return atomic.LoadInt32(&h.messages) == 2 })
	assert.Equal(t, s.State(), model.StreamOpen)
	assert.Equal(t, atomic.LoadInt32(accepted), int32(1))
}

func TestSession_ForcedReconnect(t *testing.T) {
	server, accepted := newWSServer(t, holdOpen)
	h := &stubHandler{url: wsURL(server.URL)}
	s := NewSession(h, 20*time.Millisecond)

	assert.NilError(t, s.Start(context.Background()))
	defer s.Close()
	waitFor(t, "open state", func() bool { return s.State() == model.StreamOpen })

	s.Reconnect()
	waitFor(t, "second connection", func() bool { return atomic.LoadInt32(accepted) == 2 })
	assert.Assert(t, s.Active())
}

func TestSession_StartTwice(t *testing.T) {
	h := &stubHandler{urlErr: errors.New("no route")}
	s := NewSession(h, time.Hour)
	assert.NilError(t, s.Start(context.Background()))
	defer s.Close()
	assert.ErrorContains(t, s.Start(context.Background()), "already started")
}

func TestSession_StartAfterCloseFails(t *testing.T) {
	h := &stubHandler{urlErr: errors.New("no route")}
	s := NewSession(h, time.Hour)
	s.Close()

	assert.ErrorContains(t, s.Start(context.Background()), "is closed")
	assert.Assert(t, !s.Active())
	assert.Equal(t, s.State(), model.StreamClosed)
}
