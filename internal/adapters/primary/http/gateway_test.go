package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/hellodits/dee-POS-sub002/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/hellodits/dee-POS-sub002/internal/adapters/primary/websocket"
	"github.com/hellodits/dee-POS-sub002/internal/auth"
	"github.com/hellodits/dee-POS-sub002/internal/config"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/core/services"
)

const testIngressKey = "collaborator-secret"

type testGateway struct {
	server   *httptest.Server
	tm       *auth.TokenManager
	registry *services.ConnectionRegistry
	rooms    *services.RoomDirectory
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := bcrypt.GenerateFromPassword([]byte(testIngressKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		WebSocket: config.WebSocketConfig{ReadBufferSize: 1024, WriteBufferSize: 1024},
		App:       config.AppConfig{Environment: "test"},
	}

	rooms := services.NewRoomDirectory()
	registry := services.NewConnectionRegistry(rooms, nil, logger)
	dispatcher := services.NewEventDispatcher(rooms, registry, nil, logger)
	subs := services.NewSubscriptionService(registry, nil, logger)
	tm := auth.NewTokenManager("test-secret", time.Hour)

	hub := wsAdapter.NewHub(registry, subs, wsAdapter.DefaultOptions(), logger)
	customerLimiter := mw.NewRateLimiter(mw.RateLimiterConfig{
		RequestsPerSecond: 100,
		BurstSize:         100,
		CleanupInterval:   time.Hour,
		TTL:               time.Hour,
	})

	router := NewRouter(RouterConfig{
		Logger:         logger,
		WebSocket:      NewWebSocketHandler(hub, tm, services.ClaimsScopeResolver{}, customerLimiter, cfg, logger),
		Events:         NewEventsHandler(dispatcher, logger),
		Health:         NewHealthHandler(nil, NewGatewayStats(registry, rooms), "test"),
		IngressKeyHash: string(hash),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Shutdown()
		server.Close()
	})

	return &testGateway{server: server, tm: tm, registry: registry, rooms: rooms}
}

func (g *testGateway) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws?" + query
}

func (g *testGateway) staffToken(t *testing.T, role, branch string) string {
	t.Helper()
	token, err := g.tm.GenerateToken(uuid.New(), role, branch)
	require.NoError(t, err)
	return token
}

func (g *testGateway) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(g.wsURL(query), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (g *testGateway) publish(t *testing.T, body string) *stdhttp.Response {
	t.Helper()
	req, err := stdhttp.NewRequest(stdhttp.MethodPost, g.server.URL+"/api/v1/events", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(mw.IngressKeyHeader, testIngressKey)

	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func send(t *testing.T, conn *websocket.Conn, msgType domain.ControlType, payload any) {
	t.Helper()
	msg, err := domain.NewControl(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) domain.OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg domain.OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var msg domain.OutboundMessage
	err := conn.ReadJSON(&msg)
	require.Error(t, err, "unexpected message %+v", msg)
}

func joinStaff(t *testing.T, conn *websocket.Conn, role string) {
	t.Helper()
	send(t, conn, domain.ControlJoinStaff, map[string]string{"role": role})
	reply := receive(t, conn)
	require.Equal(t, domain.ControlJoined, reply.Kind, string(reply.Payload))
}

func TestGateway_StaffBranchIsolation(t *testing.T) {
	gw := newTestGateway(t)

	c1 := gw.dial(t, "token="+gw.staffToken(t, "kitchen", "branch-7"))
	c2 := gw.dial(t, "token="+gw.staffToken(t, "kitchen", "branch-9"))
	joinStaff(t, c1, "kitchen")
	joinStaff(t, c2, "kitchen")

	resp := gw.publish(t, `{"kind":"order_status_updated","payload":{"order_number":"A-101","status":"READY"},"scope":{"branch_id":"branch-7"}}`)
	require.Equal(t, stdhttp.StatusAccepted, resp.StatusCode)

	var body struct {
		Data PublishResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []domain.RoomID{"staff:branch-7"}, body.Data.Rooms)

	msg := receive(t, c1)
	assert.Equal(t, domain.EventOrderStatusUpdated, msg.Kind)
	assert.JSONEq(t, `{"order_number":"A-101","status":"READY"}`, string(msg.Payload))
	assertSilent(t, c2)
}

func TestGateway_ClientSuppliedBranchIsIgnored(t *testing.T) {
	gw := newTestGateway(t)

	conn := gw.dial(t, "token="+gw.staffToken(t, "waiter", "branch-7"))
	send(t, conn, domain.ControlJoinStaff, map[string]string{"role": "waiter", "branch_id": "branch-9"})

	reply := receive(t, conn)
	require.Equal(t, domain.ControlJoined, reply.Kind)
	assert.JSONEq(t, `{"room":"staff:branch-7"}`, string(reply.Payload))
	assert.Empty(t, gw.rooms.MembersOf(domain.StaffRoom("branch-9")))
}

func TestGateway_CustomerTrackingAfterDisconnect(t *testing.T) {
	gw := newTestGateway(t)

	c3 := gw.dial(t, "order_number=ORD-555")
	send(t, c3, domain.ControlJoinCustomer, domain.CustomerPayload{OrderNumber: "ORD-555"})
	require.Equal(t, domain.ControlJoined, receive(t, c3).Kind)

	event := `{"kind":"order_ready","payload":{"order_number":"ORD-555"},"scope":{"order_number":"ORD-555"}}`
	require.Equal(t, stdhttp.StatusAccepted, gw.publish(t, event).StatusCode)
	assert.Equal(t, domain.EventOrderReady, receive(t, c3).Kind)

	require.NoError(t, c3.Close())
	require.Eventually(t, func() bool { return gw.registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, stdhttp.StatusAccepted, gw.publish(t, event).StatusCode)
	assert.Empty(t, gw.rooms.MembersOf(domain.OrderRoom("ORD-555")))
}

func TestGateway_Handshake(t *testing.T) {
	gw := newTestGateway(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"no credential", "", stdhttp.StatusUnauthorized},
		{"invalid token", "token=garbage", stdhttp.StatusUnauthorized},
		{"invalid token is not downgraded", "token=garbage&order_number=ORD-1", stdhttp.StatusUnauthorized},
		{"malformed order number", "order_number=1%20OR%201", stdhttp.StatusUnauthorized},
		{"token with unknown role", "token=" + gw.staffToken(t, "chef", "branch-7"), stdhttp.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(gw.wsURL(tt.query), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, 0, gw.registry.Count())
		})
	}

	t.Run("bearer header", func(t *testing.T) {
		header := stdhttp.Header{}
		header.Set("Authorization", "Bearer "+gw.staffToken(t, "owner", "branch-7"))
		conn, resp, err := websocket.DefaultDialer.Dial(gw.wsURL(""), header)
		require.NoError(t, err)
		defer resp.Body.Close()
		defer conn.Close()

		joinStaff(t, conn, "owner")
	})
}

func TestGateway_ControlMessages(t *testing.T) {
	gw := newTestGateway(t)
	conn := gw.dial(t, "token="+gw.staffToken(t, "cashier", "branch-7"))

	t.Run("ping", func(t *testing.T) {
		send(t, conn, domain.ControlPing, nil)
		assert.Equal(t, domain.ControlPong, receive(t, conn).Kind)
	})

	t.Run("role mismatch", func(t *testing.T) {
		send(t, conn, domain.ControlJoinStaff, map[string]string{"role": "manager"})
		reply := receive(t, conn)
		assert.Equal(t, domain.ControlError, reply.Kind)
		assert.Contains(t, string(reply.Payload), "SCOPE_MISMATCH")
	})

	t.Run("staff cannot track orders", func(t *testing.T) {
		send(t, conn, domain.ControlJoinCustomer, domain.CustomerPayload{OrderNumber: "ORD-1"})
		reply := receive(t, conn)
		assert.Equal(t, domain.ControlError, reply.Kind)
		assert.Empty(t, gw.rooms.MembersOf(domain.OrderRoom("ORD-1")))
	})

	t.Run("unknown type", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe:all"}`)))
		reply := receive(t, conn)
		assert.Equal(t, domain.ControlError, reply.Kind)
		assert.Contains(t, string(reply.Payload), "UNKNOWN_MESSAGE_TYPE")
	})

	t.Run("join and leave", func(t *testing.T) {
		joinStaff(t, conn, "cashier")
		send(t, conn, domain.ControlLeaveStaff, nil)
		reply := receive(t, conn)
		assert.Equal(t, domain.ControlLeft, reply.Kind)
		assert.Empty(t, gw.rooms.MembersOf(domain.StaffRoom("branch-7")))
	})

	// The connection survives every rejected control message.
	assert.Equal(t, 1, gw.registry.Count())
}

func TestGateway_Ingress(t *testing.T) {
	gw := newTestGateway(t)

	t.Run("unscoped event", func(t *testing.T) {
		resp := gw.publish(t, `{"kind":"kitchen_update","payload":{}}`)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, resp.StatusCode)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ROOM_TARGET_UNRESOLVABLE", body.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		resp := gw.publish(t, `{"kind":"menu_changed","scope":{"branch_id":"branch-7"}}`)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("array payload", func(t *testing.T) {
		resp := gw.publish(t, `{"kind":"kitchen_update","payload":[1],"scope":{"branch_id":"branch-7"}}`)
		assert.Equal(t, stdhttp.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing key", func(t *testing.T) {
		resp, err := stdhttp.Post(gw.server.URL+"/api/v1/events", "application/json",
			strings.NewReader(`{"kind":"kitchen_update","scope":{"branch_id":"branch-7"}}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGateway_Health(t *testing.T) {
	gw := newTestGateway(t)
	conn := gw.dial(t, "order_number=ORD-7")
	send(t, conn, domain.ControlJoinCustomer, domain.CustomerPayload{OrderNumber: "ORD-7"})
	require.Equal(t, domain.ControlJoined, receive(t, conn).Kind)

	resp, err := stdhttp.Get(gw.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Gateway struct {
			Connections int `json:"connections"`
			Rooms       int `json:"rooms"`
		} `json:"gateway"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.Gateway.Connections)
	assert.Equal(t, 1, body.Gateway.Rooms)
}
