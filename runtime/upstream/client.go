// Package upstream owns the long-lived duplex connection to the
// conversation service: connect/reconnect lifecycle, frame demultiplexing,
// and exponential-backoff reconnection.
package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/callbridge/streamcore/pkg/errors"
	"github.com/callbridge/streamcore/runtime/enginelog"
)

// State is one of the connection's four states.
type State string

const (
	Disconnected    State = "disconnected"
	Connecting      State = "connecting"
	Open            State = "open"
	ReconnectPending State = "reconnect_pending"
)

// FrameKind identifies the kind of a textual JSON frame from the server.
type FrameKind string

const (
	KindTranscript FrameKind = "transcript"
	KindLLMToken   FrameKind = "llm_token"
	KindLLMDone    FrameKind = "llm_done"
)

const (
	backoffBase       = 1 * time.Second
	backoffMax        = 30 * time.Second
	maxReconnectTries = 5
	dialTimeout       = 5 * time.Second
	writeWait         = 10 * time.Second
	maxMessageSize    = 1 * 1024 * 1024
)

// textFrame mirrors the wire shape sent by the conversation service:
// {"type": "<kind>", "text"?: "<s>"}.
type textFrame struct {
	Type FrameKind `json:"type"`
	Text string    `json:"text,omitempty"`
}

// Config identifies and authenticates the upstream endpoint.
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Logger   enginelog.Logger
}

func (c *Config) url() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("api_key", c.APIKey)
	q.Set("language", c.Language)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Event is the sum type carried over the client's single event channel:
// only the fields matching its Kind are populated (CloseCode and
// CloseReason together for a disconnect).
type Event struct {
	Kind         EventKind
	ConnectionID string
	Audio        []byte
	Text         string
	CloseCode    int
	CloseReason  string
	Err          error
}

// EventKind discriminates Event.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventTranscript   EventKind = "transcript"
	EventLLMToken     EventKind = "llm_token"
	EventLLMDone      EventKind = "llm_done"
	EventAudio        EventKind = "audio"
	EventError        EventKind = "error"
)

// Client owns one duplex connection to the conversation service and runs
// its state machine: connect, demultiplex inbound frames onto Events,
// reconnect with backoff on transport failure.
type Client struct {
	cfg Config
	log enginelog.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	events chan Event

	stopped chan struct{}
	stopOne sync.Once
}

// New constructs a Client in the disconnected state.
func New(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = enginelog.Noop()
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		state:   Disconnected,
		events:  make(chan Event, 64),
		stopped: make(chan struct{}),
	}
}

// Events returns the channel of demultiplexed inbound events. The caller
// must drain it for the lifetime of the Client.
func (c *Client) Events() <-chan Event { return c.events }

// State reports the client's current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run drives the connect/receive/reconnect state machine until ctx is
// canceled or Stop is called. It should be run in its own goroutine (the
// "upstream receive task" of the concurrency model).
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = backoffBase
	policy.MaxInterval = backoffMax
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopped:
			return nil
		default:
		}

		c.setState(Connecting)
		conn, connErr := c.dial(ctx)
		if connErr != nil {
			attempts++
			c.log.Warn("upstream connect failed", "attempt", attempts, "error", connErr)

			if stop := c.waitBackoff(ctx, policy, attempts); stop {
				return nil
			}
			continue
		}

		attempts = 0
		policy.Reset()

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(Open)
		connectionID := newConnectionID()
		c.emit(Event{Kind: EventConnected, ConnectionID: connectionID})

		code, reason := c.receiveUntilClosed(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		c.emit(Event{Kind: EventDisconnected, CloseCode: code, CloseReason: reason})

		if code == websocket.CloseNormalClosure || c.isStopped() {
			c.setState(Disconnected)
			return nil
		}

		attempts++
		c.log.Warn("upstream connection dropped", "attempt", attempts, "close_code", code)

		if stop := c.waitBackoff(ctx, policy, attempts); stop {
			return nil
		}
	}
}

// waitBackoff advances the reconnect state machine through ReconnectPending,
// waiting out the next backoff interval before the caller loops back to
// Connecting. It returns true when the caller should give up and return.
func (c *Client) waitBackoff(ctx context.Context, policy *backoff.ExponentialBackOff, attempts int) bool {
	if attempts >= maxReconnectTries {
		c.emit(Event{Kind: EventError, Err: errors.KindSentinel(errors.KindBackoffExhausted)})
		c.setState(Disconnected)
		return true
	}

	delay := policy.NextBackOff()
	if delay == backoff.Stop {
		c.emit(Event{Kind: EventError, Err: errors.KindSentinel(errors.KindBackoffExhausted)})
		c.setState(Disconnected)
		return true
	}

	c.setState(ReconnectPending)
	select {
	case <-ctx.Done():
		c.setState(Disconnected)
		return true
	case <-c.stopped:
		c.setState(Disconnected)
		return true
	case <-time.After(delay):
	}
	return false
}

// isStopped reports whether Stop has been called, without blocking.
func (c *Client) isStopped() bool {
	select {
	case <-c.stopped:
		return true
	default:
		return false
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.cfg.url()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}
	conn, resp, err := dialer.DialContext(dialCtx, target, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.New("upstream", "dial", err).WithKind(errors.KindUpstreamTransport)
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}

// receiveUntilClosed reads frames until the connection closes or errors,
// demultiplexing each onto the event channel, and returns the close code
// and reason observed.
func (c *Client) receiveUntilClosed(ctx context.Context, conn *websocket.Conn) (int, string) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				return ce.Code, ce.Text
			}
			return websocket.CloseAbnormalClosure, err.Error()
		}

		select {
		case <-ctx.Done():
			return websocket.CloseNormalClosure, "context canceled"
		default:
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.emit(Event{Kind: EventAudio, Audio: data})
		case websocket.TextMessage:
			c.handleTextFrame(data)
		}
	}
}

func (c *Client) handleTextFrame(data []byte) {
	var frame textFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
		c.log.Warn("dropping malformed upstream frame", "error", err)
		return
	}

	switch frame.Type {
	case KindTranscript:
		c.emit(Event{Kind: EventTranscript, Text: frame.Text})
	case KindLLMToken:
		c.emit(Event{Kind: EventLLMToken, Text: frame.Text})
	case KindLLMDone:
		c.emit(Event{Kind: EventLLMDone, Text: frame.Text})
	default:
		c.log.Warn("unmatched upstream frame type", "type", frame.Type)
	}
}

// Send writes a binary audio payload to the upstream connection. It is
// only permitted while the client is Open.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != Open || conn == nil {
		return errors.New("upstream", "Send", nil).WithKind(errors.KindNotConnected)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.New("upstream", "Send", err).WithKind(errors.KindUpstreamTransport)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.New("upstream", "Send", err).WithKind(errors.KindUpstreamTransport)
	}
	return nil
}

// Stop closes the connection and halts Run. It is safe to call more than
// once.
func (c *Client) Stop() {
	c.stopOne.Do(func() {
		close(c.stopped)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		}
	})
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) emit(evt Event) {
	select {
	case c.events <- evt:
	default:
		c.log.Warn("dropping upstream event, channel full", "kind", evt.Kind)
	}
}

// newConnectionID produces a fresh connection identifier for each
// successful open, surfaced to the caller in the "connected" event.
func newConnectionID() string {
	return uuid.NewString()
}
