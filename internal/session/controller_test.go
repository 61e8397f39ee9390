package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
)

var errTransportLost = errors.New("transport lost")

type fakeTransport struct {
	inbox     chan domain.OutboundMessage
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	sent []domain.ControlMessage
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:  make(chan domain.OutboundMessage, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(_ context.Context, msg domain.ControlMessage) error {
	select {
	case <-f.closed:
		return errTransportLost
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) (domain.OutboundMessage, error) {
	select {
	case msg := <-f.inbox:
		return msg, nil
	case <-f.closed:
		return domain.OutboundMessage{}, errTransportLost
	case <-ctx.Done():
		return domain.OutboundMessage{}, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) Sent() []domain.ControlMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ControlMessage(nil), f.sent...)
}

// fakeDialer fails the attempts listed in failures (1-based) and succeeds otherwise.
type fakeDialer struct {
	mu         sync.Mutex
	attempts   int
	failures   map[int]error
	failAfter  int
	transports []*fakeTransport
}

func (d *fakeDialer) Dial(context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if err, ok := d.failures[d.attempts]; ok {
		return nil, err
	}
	if d.failAfter > 0 && d.attempts > d.failAfter {
		return nil, fmt.Errorf("dial attempt %d refused", d.attempts)
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) Transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.transports) {
		return nil
	}
	return d.transports[i]
}

func (d *fakeDialer) Set(failAfter int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAfter = failAfter
}

func testConfig() Config {
	return Config{Attempts: 5, Delay: time.Millisecond, Multiplier: 1}
}

func notification(t *testing.T, kind domain.EventKind, payload any) domain.OutboundMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.OutboundMessage{Kind: kind, Payload: raw}
}

func TestController_InitialState(t *testing.T) {
	c := NewController(&fakeDialer{}, testConfig())

	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Offline())
	assert.Empty(t, c.Desired())
}

func TestController_ConnectReplaysDesiredMembership(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())
	ctx := context.Background()

	require.NoError(t, c.Join(ctx, OrderIntent("ORD-1")))
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	assert.Equal(t, StateConnected, c.State())
	sent := dialer.Transport(0).Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.ControlJoinCustomer, sent[0].Type)
	assert.JSONEq(t, `{"order_number":"ORD-1"}`, string(sent[0].Payload))

	assert.ErrorIs(t, c.Connect(ctx), ErrAlreadyConnected)
}

// Scenario: desired rooms {order:ORD-1}, the transport drops, the first two
// reconnect attempts fail and the third succeeds.
func TestController_ReconnectRejoinsWithoutCallerAction(t *testing.T) {
	dialer := &fakeDialer{failures: map[int]error{
		2: errors.New("connection refused"),
		3: errors.New("connection refused"),
	}}
	c := NewController(dialer, testConfig())
	ctx := context.Background()

	var mu sync.Mutex
	var states []State
	reconnected := make(chan struct{}, 1)
	c.OnStateChange(func(ev StateEvent) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, ev.NewState)
	})
	c.OnReconnected(func() { reconnected <- struct{}{} })

	require.NoError(t, c.Join(ctx, OrderIntent("ORD-1")))
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	require.NoError(t, dialer.Transport(0).Close())

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not reconnect")
	}

	assert.Equal(t, 4, dialer.Attempts())
	assert.Equal(t, StateConnected, c.State())
	assert.False(t, c.Offline())

	rejoin := dialer.Transport(1).Sent()
	require.Len(t, rejoin, 1)
	assert.Equal(t, domain.ControlJoinCustomer, rejoin[0].Type)
	assert.JSONEq(t, `{"order_number":"ORD-1"}`, string(rejoin[0].Payload))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateConnected, StateConnecting, StateConnected}, states)
}

func TestController_ExhaustedAttemptsGoOffline(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())
	ctx := context.Background()

	var errs []error
	var mu sync.Mutex
	c.OnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	require.NoError(t, c.Connect(ctx))
	dialer.Set(1)
	require.NoError(t, dialer.Transport(0).Close())

	require.Eventually(t, c.Offline, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1+5, dialer.Attempts())

	mu.Lock()
	assert.NotEmpty(t, errs)
	mu.Unlock()

	// The offline indicator clears on the next successful connect.
	dialer.Set(0)
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	assert.False(t, c.Offline())
	assert.Equal(t, StateConnected, c.State())
}

func TestController_HandshakeRejectedIsNotRetried(t *testing.T) {
	dialer := &fakeDialer{failures: map[int]error{
		1: fmt.Errorf("%w: status 401", ErrHandshakeRejected),
	}}
	c := NewController(dialer, testConfig())

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrHandshakeRejected)
	assert.Equal(t, 1, dialer.Attempts())
	assert.True(t, c.Offline())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestController_DisconnectStopsRetries(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()

	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Offline())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dialer.Attempts())

	// Disconnecting twice is harmless.
	c.Disconnect()
}

func TestController_DisconnectFromHandler(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())
	ctx := context.Background()

	returned := make(chan struct{})
	c.On(domain.EventOrderReady, func(domain.OutboundMessage) {
		assert.NoError(t, c.Leave(ctx, OrderIntent("ORD-1")))
		c.Disconnect()
		close(returned)
	})

	require.NoError(t, c.Join(ctx, OrderIntent("ORD-1")))
	require.NoError(t, c.Connect(ctx))
	dialer.Transport(0).inbox <- notification(t, domain.EventOrderReady, map[string]string{"order_number": "ORD-1"})

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("Disconnect from an order_ready handler did not return (state=%s)", c.State())
	}
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Offline())
	assert.Empty(t, c.Desired())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dialer.Attempts())

	// A later Disconnect from outside the loop still waits for it and returns.
	c.Disconnect()
}

func TestController_DisconnectFromStateCallbackDuringConnect(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())

	var once sync.Once
	c.OnStateChange(func(ev StateEvent) {
		if ev.NewState == StateConnecting {
			once.Do(c.Disconnect)
		}
	})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after Disconnect from a callback")
	}
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Offline())
}

func TestController_ReconnectAfterOffline(t *testing.T) {
	dialer := &fakeDialer{failures: map[int]error{
		1: fmt.Errorf("%w: status 401", ErrHandshakeRejected),
	}}
	c := NewController(dialer, testConfig())
	ctx := context.Background()

	require.NoError(t, c.Join(ctx, OrderIntent("ORD-7")))
	require.ErrorIs(t, c.Connect(ctx), ErrHandshakeRejected)
	require.True(t, c.Offline())
	require.Equal(t, StateDisconnected, c.State())

	// The desired membership survives the outage and is replayed.
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	assert.Equal(t, StateConnected, c.State())
	assert.False(t, c.Offline())
	assert.Equal(t, []string{"order:ORD-7"}, c.Desired())

	sent := dialer.Transport(0).Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.ControlJoinCustomer, sent[0].Type)
	assert.JSONEq(t, `{"order_number":"ORD-7"}`, string(sent[0].Payload))
}

func TestController_JoinAndLeaveWhileConnected(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	require.NoError(t, c.Join(ctx, StaffIntent(domain.RoleKitchen)))
	require.NoError(t, c.Join(ctx, StaffIntent(domain.RoleKitchen)))
	assert.Equal(t, []string{"staff"}, c.Desired())

	require.NoError(t, c.Leave(ctx, StaffIntent(domain.RoleKitchen)))
	assert.Empty(t, c.Desired())

	sent := dialer.Transport(0).Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, domain.ControlJoinStaff, sent[0].Type)
	assert.JSONEq(t, `{"role":"kitchen"}`, string(sent[0].Payload))
	assert.Equal(t, domain.ControlLeaveStaff, sent[2].Type)
}

func TestController_LastKnownIsLastWriteWins(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())

	received := make(chan domain.OutboundMessage, 4)
	c.On(domain.EventOrderStatusUpdated, func(msg domain.OutboundMessage) { received <- msg })

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	tr := dialer.Transport(0)
	tr.inbox <- notification(t, domain.EventOrderStatusUpdated, map[string]string{"order_number": "A-101", "status": "COOKING"})
	tr.inbox <- notification(t, domain.EventOrderStatusUpdated, map[string]string{"order_number": "A-102", "status": "PENDING"})
	tr.inbox <- notification(t, domain.EventOrderStatusUpdated, map[string]string{"order_number": "A-101", "status": "READY"})

	for i := 0; i < 3; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("notification was not delivered to the handler")
		}
	}

	latest, ok := c.LastKnown(domain.EventOrderStatusUpdated, "A-101")
	require.True(t, ok)
	assert.JSONEq(t, `{"order_number":"A-101","status":"READY"}`, string(latest))

	other, ok := c.LastKnown(domain.EventOrderStatusUpdated, "A-102")
	require.True(t, ok)
	assert.JSONEq(t, `{"order_number":"A-102","status":"PENDING"}`, string(other))

	_, ok = c.LastKnown(domain.EventOrderReady, "A-101")
	assert.False(t, ok)
}

func TestController_ServerErrorFrame(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(dialer, testConfig())

	errs := make(chan error, 1)
	c.OnError(func(err error) { errs <- err })

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	dialer.Transport(0).inbox <- domain.NewControlMessage(domain.ControlError, domain.ErrorPayload{
		Code:    "SCOPE_MISMATCH",
		Message: "role does not match credential",
	})

	select {
	case err := <-errs:
		var serverErr *ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Equal(t, "SCOPE_MISMATCH", serverErr.Code)
	case <-time.After(time.Second):
		t.Fatal("error frame was not reported")
	}
	assert.Equal(t, StateConnected, c.State())
}

func TestEntityID(t *testing.T) {
	tests := []struct {
		kind    domain.EventKind
		payload string
		want    string
	}{
		{domain.EventOrderReady, `{"order_number":"ORD-1"}`, "ORD-1"},
		{domain.EventKitchenUpdate, `{"order_number":"A-9","items":[]}`, "A-9"},
		{domain.EventNewReservation, `{"reservation_id":"r-1"}`, "r-1"},
		{domain.EventTableStatusUpdated, `{"table_id":"t-4","status":"FREE"}`, "t-4"},
		{domain.EventTableStatusUpdated, `{}`, ""},
		{domain.ControlPong, `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, EntityID(tt.kind, json.RawMessage(tt.payload)))
		})
	}
}

func TestConfig_Policy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := Config{}.withDefaults()
		assert.Equal(t, 5, cfg.Attempts)
		assert.Equal(t, time.Second, cfg.Delay)
	})

	t.Run("constant delay bounded by attempts", func(t *testing.T) {
		b := Config{Attempts: 5, Delay: 10 * time.Millisecond, Multiplier: 1}.withDefaults().policy()
		b.Reset()

		var waits []time.Duration
		for next := b.NextBackOff(); next != backoff.Stop; next = b.NextBackOff() {
			waits = append(waits, next)
		}
		assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, waits)
	})

	t.Run("exponential", func(t *testing.T) {
		b := Config{Attempts: 4, Delay: 10 * time.Millisecond, Multiplier: 2}.withDefaults().policy()
		b.Reset()

		assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
		assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
		assert.Equal(t, 40*time.Millisecond, b.NextBackOff())
		assert.Equal(t, backoff.Stop, b.NextBackOff())
	})
}
