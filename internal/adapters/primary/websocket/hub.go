package websocket

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
	"github.com/hellodits/dee-POS-sub002/internal/infrastructure/logging"
)

// Hub binds upgraded websocket connections to the connection registry.
// Membership and fan-out live in the core services; the hub only owns the
// socket lifecycle.
type Hub struct {
	registry      ports.ConnectionRegistry
	subscriptions ports.SubscriptionService
	opts          Options
	logger        *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(registry ports.ConnectionRegistry, subscriptions ports.SubscriptionService, opts Options, logger *slog.Logger) *Hub {
	defaults := DefaultOptions()
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaults.WriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaults.PongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = (opts.PongWait * 9) / 10
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaults.SendBufferSize
	}

	return &Hub{
		registry:      registry,
		subscriptions: subscriptions,
		opts:          opts,
		logger:        logger.With("component", "websocket_hub"),
	}
}

// Attach registers an authenticated, already upgraded connection and starts
// its pumps. On error the caller still owns conn.
func (h *Hub) Attach(ctx context.Context, conn *websocket.Conn, identity domain.Identity) (*Client, error) {
	client := newClient(ctx, h, conn, identity, h.opts)

	id, err := h.registry.Register(identity, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	client.id = id

	clientCtx := logging.WithConnectionID(client.ctx, string(id))
	if identity.IsStaff() {
		clientCtx = logging.WithBranchID(clientCtx, identity.BranchID)
	}
	client.ctx = clientCtx
	client.logger = h.logger.With("connection_id", id, "identity_kind", identity.Kind)

	h.logger.InfoContext(clientCtx, "client connected",
		"identity_kind", identity.Kind,
		"total_connections", h.registry.Count(),
	)

	go client.WritePump()
	go client.ReadPump()
	return client, nil
}

func (h *Hub) detach(c *Client) {
	h.registry.Unregister(c.id)
	c.Close()
	h.logger.InfoContext(c.ctx, "client disconnected")
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() {
	count := h.registry.Count()
	h.registry.CloseAll()
	h.logger.Info("websocket hub shut down", "closed_connections", count)
}
