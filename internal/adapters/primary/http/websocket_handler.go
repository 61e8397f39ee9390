package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	mw "github.com/hellodits/dee-POS-sub002/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/hellodits/dee-POS-sub002/internal/adapters/primary/websocket"
	"github.com/hellodits/dee-POS-sub002/internal/auth"
	"github.com/hellodits/dee-POS-sub002/internal/config"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

// WebSocketHandler authenticates the handshake and hands the upgraded
// connection to the hub. Nothing is registered unless the identity is valid.
type WebSocketHandler struct {
	hub             *wsAdapter.Hub
	tm              *auth.TokenManager
	resolver        ports.BranchScopeResolver
	customerLimiter *mw.RateLimiter
	errorHandler    *ErrorHandler
	upgrader        websocket.Upgrader
	logger          *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler. customerLimiter may be
// nil to disable the order-number handshake limit.
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	tm *auth.TokenManager,
	resolver ports.BranchScopeResolver,
	customerLimiter *mw.RateLimiter,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:             hub,
		tm:              tm,
		resolver:        resolver,
		customerLimiter: customerLimiter,
		errorHandler:    NewErrorHandler(logger),
		logger:          logger.With("component", "websocket_handler"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins
	development := cfg.IsDevelopment()

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		if development && len(allowedOrigins) == 0 {
			h.logger.Debug("allowing websocket origin in development mode", "origin", origin)
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		if originAllowed(parsedOrigin.Host, allowedOrigins) {
			return true
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
		)
		return false
	}
}

// originAllowed supports exact hosts and wildcard subdomains like "*.example.com".
func originAllowed(host string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.TrimPrefix(strings.TrimPrefix(a, "https://"), "http://")
		if strings.HasPrefix(a, "*.") {
			if strings.HasSuffix(host, a[1:]) || host == a[2:] {
				return true
			}
		} else if host == a {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket connection requests.
//
// Staff present a JWT as ?token= or a Bearer header. Customers present only
// ?order_number=. A request carrying a bad token is refused outright and is
// never treated as a customer.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. Establish the identity
	identity, err := h.authenticate(ctx, r)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket handshake rejected",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		h.errorHandler.Handle(w, r, err)
		return
	}

	// 2. Upgrade the connection
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error
		h.logger.WarnContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	// 3. Register and start the pumps
	if _, err := h.hub.Attach(ctx, conn, identity); err != nil {
		h.logger.ErrorContext(ctx, "failed to register websocket connection", "error", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "identity invalid")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = conn.Close()
	}
}

func (h *WebSocketHandler) authenticate(ctx context.Context, r *http.Request) (domain.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = mw.BearerToken(r)
	}
	if token != "" {
		return h.staffIdentity(ctx, token)
	}

	orderNumber := r.URL.Query().Get("order_number")
	if orderNumber == "" {
		return domain.Identity{}, apperrors.NewIdentityError(apperrors.ErrCredentialMissing, "A staff token or an order number is required")
	}

	if h.customerLimiter != nil && !h.customerLimiter.AllowRequest(r) {
		return domain.Identity{}, apperrors.NewRateLimitError()
	}

	identity, err := domain.NewCustomerIdentity(orderNumber)
	if err != nil {
		return domain.Identity{}, apperrors.NewIdentityError(err, "Order number is invalid")
	}
	return identity, nil
}

func (h *WebSocketHandler) staffIdentity(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := h.tm.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, apperrors.NewIdentityError(err, "Invalid or expired token")
	}

	branch, err := h.resolver.ResolveBranch(ctx, claims.StaffID, claims.BranchID)
	switch {
	case errors.Is(err, apperrors.ErrBranchUnresolved),
		errors.Is(err, apperrors.ErrBranchInvalid),
		errors.Is(err, apperrors.ErrCredentialMissing):
		return domain.Identity{}, apperrors.NewIdentityError(err, "Staff branch could not be resolved")
	case err != nil:
		return domain.Identity{}, apperrors.NewInternalError(err)
	}

	identity, err := domain.NewStaffIdentity(claims.StaffID.String(), domain.Role(claims.Role), branch)
	if err != nil {
		return domain.Identity{}, apperrors.NewIdentityError(err, "Token does not carry a valid staff identity")
	}
	return identity, nil
}
