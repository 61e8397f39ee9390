package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
)

var (
	// ErrAlreadyConnected is returned by Connect when the session is not disconnected.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrHandshakeRejected marks dial errors that retrying cannot fix, such as
	// an invalid credential. The session goes offline without further attempts.
	ErrHandshakeRejected = errors.New("handshake rejected")
)

// ServerError is a control error frame reported by the gateway.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// entityPaths locates the entity ID in each notification payload.
var entityPaths = map[domain.EventKind]string{
	domain.EventOrderStatusUpdated: "order_number",
	domain.EventOrderReady:         "order_number",
	domain.EventNewOrder:           "order_number",
	domain.EventKitchenUpdate:      "order_number",
	domain.EventNewReservation:     "reservation_id",
	domain.EventTableStatusUpdated: "table_id",
}

// EntityID extracts the entity a notification payload describes.
func EntityID(kind domain.EventKind, payload json.RawMessage) string {
	path, ok := entityPaths[kind]
	if !ok {
		return ""
	}
	return gjson.GetBytes(payload, path).String()
}

type lastKnownKey struct {
	kind     domain.EventKind
	entityID string
}

// Controller keeps one client connected to the gateway. The desired
// membership is owned here and replayed on every connect, so the server side
// never has to remember it across a reconnect.
type Controller struct {
	dialer Dialer
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	offline    bool
	generation uint64
	transport  Transport
	cancel     context.CancelFunc
	done       chan struct{}
	desired    map[string]Intent
	order      []string
	lastKnown  map[lastKnownKey]json.RawMessage

	// dispatching counts callbacks currently running. Disconnect called from
	// inside one must not wait for the loop that is running it.
	dispatching atomic.Int32

	hmu           sync.RWMutex
	onStateChange []func(StateEvent)
	onReconnected []func()
	onError       []func(error)
	handlers      map[domain.EventKind][]func(domain.OutboundMessage)
}

// NewController creates a disconnected session.
func NewController(dialer Dialer, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		dialer:    dialer,
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "session"),
		desired:   make(map[string]Intent),
		lastKnown: make(map[lastKnownKey]json.RawMessage),
		handlers:  make(map[domain.EventKind][]func(domain.OutboundMessage)),
	}
}

// OnStateChange registers a callback for every state transition.
func (c *Controller) OnStateChange(fn func(StateEvent)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onStateChange = append(c.onStateChange, fn)
}

// OnReconnected registers a callback fired after a reconnect completes and
// desired rooms were replayed. UIs should re-fetch authoritative state here.
func (c *Controller) OnReconnected(fn func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onReconnected = append(c.onReconnected, fn)
}

// OnError registers a callback for gateway error frames and transport failures.
func (c *Controller) OnError(fn func(error)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onError = append(c.onError, fn)
}

// On registers a callback for one notification kind.
func (c *Controller) On(kind domain.EventKind, fn func(domain.OutboundMessage)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], fn)
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Offline reports whether the last outage exhausted every attempt. It is
// cleared by the next successful connect.
func (c *Controller) Offline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offline
}

// Desired returns the keys of the desired membership in join order.
func (c *Controller) Desired() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// LastKnown returns the newest payload received for the kind and entity.
func (c *Controller) LastKnown(kind domain.EventKind, entityID string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.lastKnown[lastKnownKey{kind: kind, entityID: entityID}]
	return payload, ok
}

// Join adds the intent to the desired membership and, when a transport is up,
// sends it immediately. A send failure is returned but the intent is kept and
// will be replayed on the next connect.
func (c *Controller) Join(ctx context.Context, intent Intent) error {
	c.mu.Lock()
	if _, ok := c.desired[intent.key]; !ok {
		c.order = append(c.order, intent.key)
	}
	c.desired[intent.key] = intent
	t := c.transport
	c.mu.Unlock()

	if t == nil {
		return nil
	}
	msg, err := intent.joinMessage()
	if err != nil {
		return err
	}
	return t.Send(ctx, msg)
}

// Leave removes the intent from the desired membership and, when a transport
// is up, tells the gateway.
func (c *Controller) Leave(ctx context.Context, intent Intent) error {
	c.mu.Lock()
	if _, ok := c.desired[intent.key]; ok {
		delete(c.desired, intent.key)
		for i, key := range c.order {
			if key == intent.key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	t := c.transport
	c.mu.Unlock()

	if t == nil {
		return nil
	}
	msg, err := intent.leaveMessage()
	if err != nil {
		return err
	}
	return t.Send(ctx, msg)
}

// Connect moves a disconnected session to connecting and blocks until the
// first transport is up or the attempts are exhausted. After a successful
// return the session reconnects on its own until Disconnect is called.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	old := c.state
	c.state = StateConnecting
	c.mu.Unlock()
	c.fireState(StateEvent{OldState: old, NewState: StateConnecting})

	// The caller's ctx bounds the first connect only.
	stop := context.AfterFunc(ctx, cancel)
	t, err := c.establish(runCtx)
	stop()
	if err != nil {
		close(done)
		c.goOffline(runCtx, err)
		return err
	}

	go c.supervise(runCtx, t, done)
	return nil
}

// Disconnect closes the transport and stops reconnecting. It waits for the
// background loop to exit unless it is called from a registered callback, in
// which case the loop exits once that callback returns.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = StateDisconnected
	c.offline = false
	if c.cancel != nil {
		c.cancel()
	}
	t := c.transport
	c.transport = nil
	done := c.done
	c.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
	c.fireState(StateEvent{OldState: old, NewState: StateDisconnected})
	if done != nil && c.dispatching.Load() == 0 {
		<-done
	}
}

func (c *Controller) supervise(ctx context.Context, t Transport, done chan struct{}) {
	defer close(done)
	for {
		err := c.readLoop(ctx, t)
		_ = t.Close()
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("transport lost", "error", err)
		c.fireError(err)
		if !c.transition(ctx, StateConnecting, err) {
			return
		}

		t, err = c.establish(ctx)
		if err != nil {
			c.goOffline(ctx, err)
			return
		}
	}
}

// establish dials with the reconnection policy. Every successful dial replays
// the desired membership before the session counts as connected.
func (c *Controller) establish(ctx context.Context) (Transport, error) {
	var t Transport
	attempt := 0

	op := func() error {
		attempt++
		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			if errors.Is(err, ErrHandshakeRejected) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := c.replay(ctx, conn); err != nil {
			_ = conn.Close()
			return err
		}
		t = conn
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Info("connect attempt failed", "attempt", attempt, "retry_in", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(c.cfg.policy(), ctx), notify); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		_ = t.Close()
		return nil, ctx.Err()
	}
	c.generation++
	reconnected := c.generation > 1
	old := c.state
	c.state = StateConnected
	c.offline = false
	c.mu.Unlock()

	c.logger.Info("connected", "attempt", attempt, "reconnect", reconnected)
	c.fireState(StateEvent{OldState: old, NewState: StateConnected})
	if reconnected {
		c.fireReconnected()
	}
	return t, nil
}

// replay publishes the transport and re-sends every desired join. Intents
// added while the replay runs see the transport and send themselves; the
// gateway treats a duplicate join as a no-op.
func (c *Controller) replay(ctx context.Context, t Transport) error {
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.transport = t
	intents := make([]Intent, 0, len(c.order))
	for _, key := range c.order {
		intents = append(intents, c.desired[key])
	}
	c.mu.Unlock()

	for _, intent := range intents {
		msg, err := intent.joinMessage()
		if err != nil {
			return err
		}
		if err := t.Send(ctx, msg); err != nil {
			c.clearTransport(t)
			return fmt.Errorf("replaying %s: %w", intent.key, err)
		}
	}
	return nil
}

func (c *Controller) clearTransport(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == t {
		c.transport = nil
	}
}

func (c *Controller) readLoop(ctx context.Context, t Transport) error {
	for {
		msg, err := t.Receive(ctx)
		if err != nil {
			c.clearTransport(t)
			return err
		}
		c.apply(msg)
	}
}

// apply records notifications last-write-wins per kind and entity and then
// runs the registered handlers.
func (c *Controller) apply(msg domain.OutboundMessage) {
	switch {
	case msg.Kind.IsNotification():
		key := lastKnownKey{kind: msg.Kind, entityID: EntityID(msg.Kind, msg.Payload)}
		c.mu.Lock()
		c.lastKnown[key] = msg.Payload
		c.mu.Unlock()

		c.hmu.RLock()
		handlers := slices.Clone(c.handlers[msg.Kind])
		c.hmu.RUnlock()
		c.dispatch(func() {
			for _, fn := range handlers {
				fn(msg)
			}
		})
	case msg.Kind == domain.ControlError:
		var payload domain.ErrorPayload
		_ = json.Unmarshal(msg.Payload, &payload)
		c.fireError(&ServerError{Code: payload.Code, Message: payload.Message})
	default:
		c.logger.Debug("control reply", "kind", msg.Kind, "payload", string(msg.Payload))
	}
}

// transition changes state unless the session was disconnected meanwhile.
func (c *Controller) transition(ctx context.Context, to State, cause error) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	old := c.state
	c.state = to
	c.mu.Unlock()
	c.fireState(StateEvent{OldState: old, NewState: to, Error: cause})
	return true
}

func (c *Controller) goOffline(ctx context.Context, cause error) {
	c.mu.Lock()
	if ctx.Err() != nil && c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = StateDisconnected
	c.offline = true
	c.transport = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.logger.Warn("session offline", "error", cause)
	c.fireState(StateEvent{OldState: old, NewState: StateDisconnected, Error: cause})
	c.fireError(cause)
}

func (c *Controller) fireState(ev StateEvent) {
	c.hmu.RLock()
	fns := slices.Clone(c.onStateChange)
	c.hmu.RUnlock()
	c.dispatch(func() {
		for _, fn := range fns {
			fn(ev)
		}
	})
}

func (c *Controller) fireReconnected() {
	c.hmu.RLock()
	fns := slices.Clone(c.onReconnected)
	c.hmu.RUnlock()
	c.dispatch(func() {
		for _, fn := range fns {
			fn()
		}
	})
}

func (c *Controller) fireError(err error) {
	if err == nil {
		return
	}
	c.hmu.RLock()
	fns := slices.Clone(c.onError)
	c.hmu.RUnlock()
	c.dispatch(func() {
		for _, fn := range fns {
			fn(err)
		}
	})
}

func (c *Controller) dispatch(run func()) {
	c.dispatching.Add(1)
	defer c.dispatching.Add(-1)
	run()
}
