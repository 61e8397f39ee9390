package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hellodits/dee-POS-sub002/internal/adapters/primary/validation"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

// EventsHandler is the collaborator publish ingress.
type EventsHandler struct {
	publisher    ports.EventPublisher
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(publisher ports.EventPublisher, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		publisher:    publisher,
		errorHandler: NewErrorHandler(logger),
		logger:       logger.With("component", "events_handler"),
	}
}

// ScopeRequest is the producer-attached scope. Emptiness is checked by the dispatcher.
type ScopeRequest struct {
	BranchID    string `json:"branch_id,omitempty" validate:"omitempty,branch_id"`
	OrderNumber string `json:"order_number,omitempty" validate:"omitempty,order_number"`
}

// PublishRequest is the body of POST /api/v1/events
type PublishRequest struct {
	Kind    string          `json:"kind" validate:"required,event_kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Scope   ScopeRequest    `json:"scope"`
}

// PublishResponse lists the rooms the event was broadcast to
type PublishResponse struct {
	Rooms []domain.RoomID `json:"rooms"`
}

// RegisterRoutes registers the events routes
func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandlePublish)
}

// HandlePublish validates a collaborator event and dispatches it. The response
// is sent once fan-out has been attempted; it says nothing about delivery.
func (h *EventsHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[PublishRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	event := domain.Event{
		Kind:    domain.EventKind(req.Kind),
		Payload: req.Payload,
		Scope: domain.Scope{
			BranchID:    req.Scope.BranchID,
			OrderNumber: req.Scope.OrderNumber,
		},
	}

	rooms, err := h.publisher.Publish(r.Context(), event)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteAccepted(w, PublishResponse{Rooms: rooms})
}
