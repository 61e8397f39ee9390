package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
)

// Options tunes the per-connection pumps.
type Options struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration

	// Maximum message size allowed from peer.
	MaxMessageSize int64

	// Outbound queue length. A full queue evicts the connection.
	SendBufferSize int
}

// DefaultOptions returns the pump settings used when none are configured.
func DefaultOptions() Options {
	pongWait := 60 * time.Second
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingPeriod:     (pongWait * 9) / 10,
		MaxMessageSize: 4096,
		SendBufferSize: 256,
	}
}

// Client is a middleman between the websocket connection and the registry.
// It is the registry's DeliverySink for one connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	opts Options

	id       domain.ConnectionID
	identity domain.Identity

	// Buffered channel of outbound messages. Never closed; done signals shutdown.
	send chan domain.OutboundMessage

	done      chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func newClient(ctx context.Context, hub *Hub, conn *websocket.Conn, identity domain.Identity, opts Options) *Client {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Client{
		hub:      hub,
		conn:     conn,
		opts:     opts,
		identity: identity,
		send:     make(chan domain.OutboundMessage, opts.SendBufferSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger:   hub.logger,
	}
}

// ID returns the registry-assigned connection ID.
func (c *Client) ID() domain.ConnectionID {
	return c.id
}

// Deliver queues msg without blocking. It reports false only when the queue is full.
func (c *Client) Deliver(msg domain.OutboundMessage) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// ReadPump reads control messages from the peer. It runs in its own
// goroutine and unregisters the connection when the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.detach(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump writes queued messages and keepalive pings to the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		// Close wins over queued frames.
		select {
		case <-c.done:
			c.writeClose()
			return
		default:
		}

		select {
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				return
			}

		case <-c.done:
			c.writeClose()
			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		c.logger.Debug("failed to send close message", "error", err)
	}
}

// --- Incoming Message Handling ---

func (c *Client) handleIncomingMessage(message []byte) {
	var msg domain.ControlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.replyError("BAD_REQUEST", "message must be a JSON object with a type")
		return
	}

	subs := c.hub.subscriptions
	var (
		room domain.RoomID
		err  error
		kind = domain.ControlJoined
	)

	switch msg.Type {
	case domain.ControlJoinStaff:
		var p domain.JoinStaffPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			c.replyError("BAD_REQUEST", "invalid join:staff payload")
			return
		}
		room, err = subs.JoinStaff(c.ctx, c.id, p.Role)

	case domain.ControlJoinCustomer:
		var p domain.CustomerPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			c.replyError("BAD_REQUEST", "invalid join:customer payload")
			return
		}
		room, err = subs.JoinCustomer(c.ctx, c.id, p.OrderNumber)

	case domain.ControlLeaveStaff:
		kind = domain.ControlLeft
		room, err = subs.LeaveStaff(c.ctx, c.id)

	case domain.ControlLeaveCustomer:
		var p domain.CustomerPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			c.replyError("BAD_REQUEST", "invalid leave:customer payload")
			return
		}
		kind = domain.ControlLeft
		room, err = subs.LeaveCustomer(c.ctx, c.id, p.OrderNumber)

	case domain.ControlPing:
		c.reply(domain.NewControlMessage(domain.ControlPong, nil))
		return

	default:
		c.replyError("UNKNOWN_MESSAGE_TYPE", "unknown message type")
		return
	}

	if err != nil {
		code, message := controlErrorCode(err)
		c.logger.Warn("control message rejected", "type", msg.Type, "error", err)
		c.replyError(code, message)
		return
	}
	c.reply(domain.NewControlMessage(kind, domain.RoomPayload{Room: room}))
}

func (c *Client) reply(msg domain.OutboundMessage) {
	c.hub.registry.Send(c.id, msg)
}

func (c *Client) replyError(code, message string) {
	c.reply(domain.NewControlMessage(domain.ControlError, domain.ErrorPayload{Code: code, Message: message}))
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func controlErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, apperrors.ErrScopeMismatch):
		return "SCOPE_MISMATCH", "requested room does not match this connection"
	case errors.Is(err, apperrors.ErrOrderNumberFormat):
		return "ORDER_NUMBER_INVALID", apperrors.ErrOrderNumberFormat.Error()
	case errors.Is(err, apperrors.ErrOrderNotFound):
		return "ORDER_NOT_FOUND", apperrors.ErrOrderNotFound.Error()
	case errors.Is(err, apperrors.ErrConnectionClosed):
		return "CONNECTION_CLOSED", apperrors.ErrConnectionClosed.Error()
	default:
		return "INTERNAL_ERROR", "request could not be processed"
	}
}
