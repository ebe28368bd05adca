package store

import (
	"context"
	"iter"

	"ticket-bridge/models"
)

// pageSize is the number of rows ListAll reads per query.
const pageSize = 200

// TicketStore persists the off-chain mirror of minted tickets.
type TicketStore interface {
	// Create inserts t. status.ErrDuplicateTicket when the id already exists.
	Create(ctx context.Context, t *models.Ticket) error
	// FindByID returns status.ErrNotFound when no record has the id.
	FindByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	// Update merges p into the stored record and returns the result.
	Update(ctx context.Context, ticketID string, p models.TicketPatch) (*models.Ticket, error)
	// ListAll yields every record once per range. Each range runs fresh
	// queries, so the sequence can be iterated again.
	ListAll(ctx context.Context) iter.Seq2[*models.Ticket, error]
}

// EventStore keeps the event catalog tickets may reference.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *models.Event) error
	// FindEvent returns status.ErrNotFound when no event has the id.
	FindEvent(ctx context.Context, id string) (*models.Event, error)
	// ListEvents returns every event, oldest first.
	ListEvents(ctx context.Context) ([]*models.Event, error)
}

// Store is what a backing database provides.
type Store interface {
	TicketStore
	EventStore
}

func normalizeAmount(v string) string {
	if v == "" {
		return models.NotListed
	}
	return v
}
