package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"ticket-bridge/internal/reconcile"
	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// EventCatalog is the event API the handlers drive.
type EventCatalog interface {
	Events(ctx context.Context) ([]*models.Event, error)
	CreateEvent(ctx context.Context, req reconcile.EventRequest) (*models.Event, error)
}

type EventHandler struct {
	service EventCatalog
}

func NewEventHandler(service EventCatalog) *EventHandler {
	return &EventHandler{service: service}
}

// GetEvents - Public event catalog
func (h *EventHandler) GetEvents(e *core.RequestEvent) error {
	events, err := h.service.Events(e.Request.Context())
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		return apis.NewInternalServerError("Failed to list events", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"events": events})
}

// CreateEvent - Add an event (superusers only)
func (h *EventHandler) CreateEvent(e *core.RequestEvent) error {
	var req struct {
		Name        string `json:"name"`
		Date        string `json:"date"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	event, err := h.service.CreateEvent(e.Request.Context(), reconcile.EventRequest{
		Name:        req.Name,
		Date:        req.Date,
		Location:    req.Location,
		Description: req.Description,
	})
	if errors.Is(err, status.ErrInvalidRequest) {
		return apis.NewBadRequestError(err.Error(), nil)
	}
	if err != nil {
		slog.Error("Failed to create event", "name", req.Name, "error", err)
		return apis.NewInternalServerError("Failed to create event", err)
	}

	return e.JSON(http.StatusCreated, map[string]any{"event": event})
}
