package main

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/callbridge/streamcore/runtime/carrier"
	"github.com/callbridge/streamcore/runtime/enginelog"
)

// wsCarrier is a reference carrier.Adapter implementation: one call leg per
// inbound WebSocket connection, exchanging raw companded narrow-band binary
// frames. It exists to exercise the carrier boundary end to end; a real
// telephony carrier integration (SIP trunk, Twilio Media Streams, etc.)
// would implement the same interface against its own transport instead.
type wsCarrier struct {
	upgrader websocket.Upgrader
	log      enginelog.Logger

	onConnect func(sessionID string, adapter carrier.Adapter) carrier.IngressSource

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newWSCarrier(log enginelog.Logger, onConnect func(string, carrier.Adapter) carrier.IngressSource) *wsCarrier {
	return &wsCarrier{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Carrier-side WebSocket clients are telephony gateways, not
			// browsers; they rarely send a standard Origin header.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		log:       log,
		onConnect: onConnect,
		conns:     make(map[string]*websocket.Conn),
	}
}

func (c *wsCarrier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn("carrier upgrade failed", "err", err)
		return
	}

	sessionID := uuid.NewString()
	c.mu.Lock()
	c.conns[sessionID] = conn
	c.mu.Unlock()
	c.log.Info("carrier leg connected", "session_id", sessionID)

	ingress := c.onConnect(sessionID, &wsCallAdapter{carrier: c, sessionID: sessionID, conn: conn})

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			c.log.Info("carrier leg closed", "session_id", sessionID, "err", err)
			c.teardown(sessionID, "carrier read closed")
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		ingress(sessionID, frame)
	}
}

func (c *wsCarrier) teardown(sessionID string, _ string) {
	c.mu.Lock()
	conn := c.conns[sessionID]
	delete(c.conns, sessionID)
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// wsCallAdapter is the per-call carrier.Adapter handed to one Pipeline.
type wsCallAdapter struct {
	carrier   *wsCarrier
	sessionID string

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (a *wsCallAdapter) EgressSink(frameBytes []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteMessage(websocket.BinaryMessage, frameBytes)
}

func (a *wsCallAdapter) OnTeardown(sessionID string, reason string) {
	a.carrier.teardown(sessionID, reason)
}
