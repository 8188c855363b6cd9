package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// scriptedServer accepts one connection, sends each of frames in order, and
// leaves the socket open until the test closes it.
func scriptedServer(t *testing.T, frames []func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, send := range frames {
			send(conn)
		}
		// keep reading so the client's writes don't fail, until closed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func textFrameSender(payload string) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
	}
}

func binaryFrameSender(payload []byte) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, payload)
	}
}

func TestClient_ConnectEmitsConnectedEvent(t *testing.T) {
	srv := scriptedServer(t, nil)
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Run(ctx)
	}()

	evt := requireEvent(t, c.Events(), EventConnected)
	assert.NotEmpty(t, evt.ConnectionID)

	c.Stop()
	wg.Wait()
}

func TestClient_DemuxesTranscriptTokenAndDoneFrames(t *testing.T) {
	srv := scriptedServer(t, []func(*websocket.Conn){
		textFrameSender(`{"type":"transcript","text":"hello"}`),
		textFrameSender(`{"type":"llm_token","text":"hi"}`),
		textFrameSender(`{"type":"llm_done","text":"hi there"}`),
	})
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	requireEvent(t, c.Events(), EventConnected)
	transcript := requireEvent(t, c.Events(), EventTranscript)
	assert.Equal(t, "hello", transcript.Text)
	token := requireEvent(t, c.Events(), EventLLMToken)
	assert.Equal(t, "hi", token.Text)
	done := requireEvent(t, c.Events(), EventLLMDone)
	assert.Equal(t, "hi there", done.Text)
}

func TestClient_DemuxesBinaryAudioFrame(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	srv := scriptedServer(t, []func(*websocket.Conn){binaryFrameSender(payload)})
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	requireEvent(t, c.Events(), EventConnected)
	audio := requireEvent(t, c.Events(), EventAudio)
	assert.Equal(t, payload, audio.Audio)
}

func TestClient_MalformedTextFrameIsDroppedNotFatal(t *testing.T) {
	srv := scriptedServer(t, []func(*websocket.Conn){
		textFrameSender(`not json`),
		textFrameSender(`{"type":"transcript","text":"ok"}`),
	})
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	requireEvent(t, c.Events(), EventConnected)
	transcript := requireEvent(t, c.Events(), EventTranscript)
	assert.Equal(t, "ok", transcript.Text)
}

func TestClient_SendFailsWhenNotConnected(t *testing.T) {
	c := New(Config{BaseURL: "ws://127.0.0.1:1/nope", APIKey: "k", Language: "en"})
	err := c.Send([]byte("audio"))
	require.Error(t, err)
}

func TestClient_SendSucceedsWhenOpen(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	requireEvent(t, c.Events(), EventConnected)
	require.NoError(t, c.Send([]byte{9, 9}))

	select {
	case data := <-received:
		assert.Equal(t, []byte{9, 9}, data)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the send")
	}
}

func TestClient_AbnormalCloseWaitsBackoffBeforeReconnect(t *testing.T) {
	var connects int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if atomic.AddInt32(&connects, 1) == 1 {
			// First leg: accept then drop abnormally, no close handshake from the client side.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "dropped"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
		// Second leg: stay open so Run settles into EventConnected again.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	requireEvent(t, c.Events(), EventConnected)
	disconnected := requireEvent(t, c.Events(), EventDisconnected)
	assert.NotEqual(t, websocket.CloseNormalClosure, disconnected.CloseCode)

	before := time.Now()
	requireEvent(t, c.Events(), EventConnected)
	elapsed := time.Since(before)

	assert.GreaterOrEqual(t, elapsed, backoffBase, "reconnect must wait out the backoff delay, not retry immediately")
}

func TestClient_StopIsIdempotent(t *testing.T) {
	srv := scriptedServer(t, nil)
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx) }()
	requireEvent(t, c.Events(), EventConnected)

	c.Stop()
	c.Stop() // must not panic
}

func TestClient_StopSettlesStateToDisconnected(t *testing.T) {
	srv := scriptedServer(t, nil)
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), APIKey: "k", Language: "en"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	requireEvent(t, c.Events(), EventConnected)

	c.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.Equal(t, Disconnected, c.State(), "State must settle to Disconnected after Stop, not stay at ReconnectPending")
}

func requireEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed before %s arrived", kind)
			}
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", kind)
		}
	}
}
