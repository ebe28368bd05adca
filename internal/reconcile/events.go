package reconcile

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ticket-bridge/internal/status"
	"ticket-bridge/models"
)

const maxEventName = 200

type EventRequest struct {
	Name        string
	Date        string
	Location    string
	Description string
}

// CreateEvent adds an event to the catalog. Nothing is sent to the chain.
func (s *Service) CreateEvent(ctx context.Context, req EventRequest) (*models.Event, error) {
	if s.events == nil {
		return nil, fmt.Errorf("event catalog is not configured: %w", status.ErrInvalidRequest)
	}

	name, err := requireField("name", req.Name)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(name) > maxEventName {
		return nil, fmt.Errorf("name is longer than %d characters: %w", maxEventName, status.ErrInvalidRequest)
	}

	ev := &models.Event{
		Name:        name,
		Date:        strings.TrimSpace(req.Date),
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.events.CreateEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Events lists the catalog, oldest first.
func (s *Service) Events(ctx context.Context) ([]*models.Event, error) {
	if s.events == nil {
		return []*models.Event{}, nil
	}
	return s.events.ListEvents(ctx)
}

// checkEvent resolves an optional event reference. An empty id is allowed; a
// named event has to exist.
func (s *Service) checkEvent(ctx context.Context, eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", nil
	}
	if s.events == nil {
		return "", fmt.Errorf("event %s: event catalog is not configured: %w", eventID, status.ErrInvalidRequest)
	}

	if _, err := s.events.FindEvent(ctx, eventID); err != nil {
		return "", err
	}
	return eventID, nil
}
