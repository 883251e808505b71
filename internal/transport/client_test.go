package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type dispatchFn func(ctx context.Context, env *Envelope, r *Responder)

func (f dispatchFn) Dispatch(ctx context.Context, env *Envelope, r *Responder) { f(ctx, env, r) }

type wsMessage struct {
	Type int
	Data []byte
}

// echoServer upgrades one connection, forwards every inbound message to the
// returned channel, and runs the given script after the readiness message.
func echoServer(t *testing.T, script func(conn *websocket.Conn)) (*httptest.Server, <-chan wsMessage) {
	t.Helper()
	inbound := make(chan wsMessage, 32)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		first := true
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			inbound <- wsMessage{Type: mt, Data: data}
			if first && script != nil {
				first = false
				script(conn)
			}
		}
	}))
	return srv, inbound
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextMessage(t *testing.T, ch <-chan wsMessage) wsMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message from client")
		return wsMessage{}
	}
}

func TestClientReadinessAndCommandFlow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	command := Envelope{
		Version:       SchemaVersion,
		Type:          KindCommand,
		CorrelationID: "req-1",
		Data:          map[string]interface{}{"name": "get_state"},
	}
	srv, inbound := echoServer(t, func(conn *websocket.Conn) {
		raw, _ := command.Encode()
		_ = conn.WriteMessage(websocket.TextMessage, raw)
	})
	defer srv.Close()

	dispatch := dispatchFn(func(_ context.Context, env *Envelope, r *Responder) {
		require.Equal(t, "get_state", env.Command())
		_ = r.SendFrame(TreeFrame(env.CorrelationID, []byte(`{"root":{}}`)))
		r.Resolve(Success(env.CorrelationID, map[string]interface{}{"cached": false}))
	})

	client := NewClient(ClientConfig{
		URL:          wsURL(srv),
		DeviceID:     "device-9",
		PingInterval: time.Hour, // keep pings out of the assertion stream
	}, dispatch, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	// Readiness first.
	ready := nextMessage(t, inbound)
	assert.Equal(t, websocket.TextMessage, ready.Type)
	env, err := DecodeEnvelope(ready.Data)
	require.NoError(t, err)
	assert.Equal(t, KindReady, env.Type)
	assert.Equal(t, "device-9", env.OriginatorID)

	// Bulk frame precedes the structured response for the same request.
	frameMsg := nextMessage(t, inbound)
	require.Equal(t, websocket.BinaryMessage, frameMsg.Type)
	frame, err := DecodeFrame(frameMsg.Data)
	require.NoError(t, err)
	assert.Equal(t, "req-1", frame.CorrelationID)
	assert.Equal(t, PayloadTreeCompressed, frame.PayloadKind)

	respMsg := nextMessage(t, inbound)
	require.Equal(t, websocket.TextMessage, respMsg.Type)
	resp, err := DecodeEnvelope(respMsg.Data)
	require.NoError(t, err)
	assert.Equal(t, KindCommandResponse, resp.Type)
	assert.Equal(t, "req-1", resp.CorrelationID)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "device-9", resp.OriginatorID)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not shut down")
	}
}

func TestClientAnswersPing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, inbound := echoServer(t, func(conn *websocket.Conn) {
		raw, _ := NewEnvelope(KindPing).Encode()
		_ = conn.WriteMessage(websocket.TextMessage, raw)
	})
	defer srv.Close()

	client := NewClient(ClientConfig{
		URL:          wsURL(srv),
		DeviceID:     "device-9",
		PingInterval: time.Hour,
	}, dispatchFn(func(context.Context, *Envelope, *Responder) {}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	nextMessage(t, inbound) // readiness
	pong := nextMessage(t, inbound)
	env, err := DecodeEnvelope(pong.Data)
	require.NoError(t, err)
	assert.Equal(t, KindPong, env.Type)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not shut down")
	}
}

func TestClientRejectsInvalidEnvelope(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, inbound := echoServer(t, func(conn *websocket.Conn) {
		// A command without a correlation id violates the channel rules.
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"version":1,"type":"command"}`))
	})
	defer srv.Close()

	var dispatched bool
	client := NewClient(ClientConfig{
		URL:          wsURL(srv),
		DeviceID:     "device-9",
		PingInterval: time.Hour,
	}, dispatchFn(func(context.Context, *Envelope, *Responder) { dispatched = true }), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	nextMessage(t, inbound) // readiness
	errMsg := nextMessage(t, inbound)
	env, err := DecodeEnvelope(errMsg.Data)
	require.NoError(t, err)
	assert.Equal(t, KindError, env.Type)
	assert.Contains(t, env.Error, "correlation_id")
	assert.False(t, dispatched)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not shut down")
	}
}

func TestClientRetriesExhausted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	client := NewClient(ClientConfig{
		URL:          "ws://127.0.0.1:1", // nothing listens here
		DeviceID:     "device-9",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, dispatchFn(func(context.Context, *Envelope, *Responder) {}), nil)

	err := client.Run(context.Background())
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}
