package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrRetriesExhausted means the reconnect policy gave up.
var ErrRetriesExhausted = errors.New("transport: reconnect retries exhausted")

// Dispatcher routes inbound envelopes to the agent. Dispatch is called
// sequentially; one command executes at a time per connection.
type Dispatcher interface {
	Dispatch(ctx context.Context, env *Envelope, r *Responder)
}

// ClientConfig configures the channel client. Zero values take defaults.
type ClientConfig struct {
	// URL is the remote controller endpoint, ws:// or wss://.
	URL string
	// DeviceID identifies this device in the readiness message and responses.
	DeviceID string
	// PingInterval is the keep-alive cadence.
	PingInterval time.Duration
	// CommandTimeout is the per-command overall bound.
	CommandTimeout time.Duration
	// MaxRetries bounds consecutive failed reconnect attempts.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per attempt up to 30s.
	RetryBackoff time.Duration
}

func (c *ClientConfig) defaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
}

// Client owns the WebSocket connection: readiness on connect, keep-alive,
// bounded-retry reconnect, and sequential command processing.
type Client struct {
	cfg      ClientConfig
	dispatch Dispatcher
	dialer   *websocket.Dialer
	logger   *zap.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	// OnReconnect, when set, observes each successful reconnect.
	OnReconnect func(attempt int)
}

// NewClient creates a channel client.
func NewClient(cfg ClientConfig, dispatch Dispatcher, logger *zap.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		dispatch: dispatch,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger,
	}
}

// Run connects and serves until the context ends or the reconnect policy
// gives up. Each successful connection resets the retry counter.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			attempt++
			if attempt > c.cfg.MaxRetries {
				return ErrRetriesExhausted
			}
			delay := c.backoff(attempt)
			c.logger.Warn("connect failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if attempt > 0 && c.OnReconnect != nil {
			c.OnReconnect(attempt)
		}
		attempt = 0

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("connection lost", zap.Error(err))
		attempt = 1
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.RetryBackoff << (attempt - 1)
	if delay > 30*time.Second || delay <= 0 {
		delay = 30 * time.Second
	}
	return delay
}

// serve announces readiness, runs the keep-alive ticker, and pumps inbound
// messages until the connection drops.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	defer func() {
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
		conn.Close()
	}()

	if err := c.SendEnvelope(Ready(c.cfg.DeviceID)); err != nil {
		return err
	}

	// Unblock the read loop on cancellation and drive the keep-alive.
	pumpDone := make(chan struct{})
	defer close(pumpDone)
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-pumpDone:
				return
			case <-ticker.C:
				if err := c.SendEnvelope(NewEnvelope(KindPing)); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		c.logger.Warn("rejected inbound message", zap.Error(err))
		e := NewEnvelope(KindError)
		e.Status = StatusError
		e.Error = err.Error()
		_ = c.SendEnvelope(e)
		return
	}

	switch env.Type {
	case KindPing:
		_ = c.SendEnvelope(Pong())
	case KindPong:
		// keep-alive answer, nothing to do
	case KindCommand, KindTaskRequest:
		r := NewResponder(env.CorrelationID, c.cfg.CommandTimeout, c.respond, c.SendFrame)
		c.dispatch.Dispatch(ctx, env, r)
	default:
		c.logger.Debug("ignoring message", zap.String("type", string(env.Type)))
	}
}

func (c *Client) respond(env *Envelope) error {
	env.OriginatorID = c.cfg.DeviceID
	return c.SendEnvelope(env)
}

// SendEnvelope writes one structured message. Safe for concurrent use.
func (c *Client) SendEnvelope(env *Envelope) error {
	raw, err := env.Encode()
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, raw)
}

// SendFrame writes one bulk frame on the binary channel.
func (c *Client) SendFrame(f Frame) error {
	raw, err := f.Encode()
	if err != nil {
		return err
	}
	return c.write(websocket.BinaryMessage, raw)
}

func (c *Client) write(msgType int, raw []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.New("transport: not connected")
	}
	return c.conn.WriteMessage(msgType, raw)
}
