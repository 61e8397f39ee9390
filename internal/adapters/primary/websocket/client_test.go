package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
)

// connPair returns the server side of an upgraded connection and the peer dialed to it.
func connPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	select {
	case conn := <-serverConns:
		return conn, peer
	case <-time.After(2 * time.Second):
		t.Fatal("server side of the connection was not upgraded")
		return nil, nil
	}
}

func TestClient_WritePumpStopsQueuedFramesAfterClose(t *testing.T) {
	serverConn, peer := connPair(t)
	hub := NewHub(nil, nil, Options{}, slog.New(slog.DiscardHandler))

	identity, err := domain.NewCustomerIdentity("ORD-1")
	require.NoError(t, err)
	client := newClient(context.Background(), hub, serverConn, identity, hub.opts)

	payload := json.RawMessage(`{"order_number":"ORD-1"}`)
	for i := 0; i < 3; i++ {
		require.True(t, client.Deliver(domain.OutboundMessage{Kind: domain.EventOrderReady, Payload: payload}))
	}
	client.Close()

	// Delivery after close is dropped without evicting.
	assert.True(t, client.Deliver(domain.OutboundMessage{Kind: domain.EventOrderReady, Payload: payload}))

	pumpDone := make(chan struct{})
	go func() {
		client.WritePump()
		close(pumpDone)
	}()

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = peer.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "first frame should be the close frame, got %v", err)

	select {
	case <-pumpDone:
	case <-time.After(2 * time.Second):
		t.Fatal("WritePump did not return after Close")
	}
}

func TestClient_DeliverReportsFullQueue(t *testing.T) {
	serverConn, _ := connPair(t)
	hub := NewHub(nil, nil, Options{SendBufferSize: 1}, slog.New(slog.DiscardHandler))

	identity, err := domain.NewCustomerIdentity("ORD-2")
	require.NoError(t, err)
	client := newClient(context.Background(), hub, serverConn, identity, hub.opts)
	defer client.Close()

	msg := domain.OutboundMessage{Kind: domain.EventOrderReady, Payload: json.RawMessage(`{}`)}
	assert.True(t, client.Deliver(msg))
	assert.False(t, client.Deliver(msg))
}
