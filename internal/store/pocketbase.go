package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

const (
	ticketsCollection = "tickets"
	eventsCollection  = "events"
)

var _ Store = (*PocketBaseStore)(nil)

// PocketBaseStore keeps tickets as records of the "tickets" collection and
// events in "events". A ticket's event is a relation field.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) Create(ctx context.Context, t *models.Ticket) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		existing, err := txApp.FindFirstRecordByData(ticketsCollection, "ticket_id", t.TicketID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up ticket %s: %w", t.TicketID, err)
		}
		if existing != nil {
			return fmt.Errorf("ticket %s: %w", t.TicketID, status.ErrDuplicateTicket)
		}

		collection, err := txApp.FindCachedCollectionByNameOrId(ticketsCollection)
		if err != nil {
			return fmt.Errorf("failed to find tickets collection: %w", err)
		}

		record := core.NewRecord(collection)
		record.Set("ticket_id", t.TicketID)
		record.Set("owner", t.Owner)
		record.Set("base_price", normalizeAmount(t.BasePrice))
		record.Set("sale_price", normalizeAmount(t.SalePrice))
		record.Set("token_uri", t.TokenURI)
		record.Set("validated", t.Validated)
		record.Set("event", t.EventID)

		if err := txApp.SaveWithContext(ctx, record); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("ticket %s: %w", t.TicketID, status.ErrDuplicateTicket)
			}
			return fmt.Errorf("failed to save ticket %s: %w", t.TicketID, err)
		}

		*t = *recordToTicket(record)
		return nil
	})
}

func (s *PocketBaseStore) FindByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	record, err := s.findRecord(s.app, ticketID)
	if err != nil {
		return nil, err
	}
	return recordToTicket(record), nil
}

func (s *PocketBaseStore) Update(ctx context.Context, ticketID string, p models.TicketPatch) (*models.Ticket, error) {
	var updated *models.Ticket

	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := s.findRecord(txApp, ticketID)
		if err != nil {
			return err
		}

		t := recordToTicket(record)
		t.Apply(p)

		record.Set("owner", t.Owner)
		record.Set("sale_price", normalizeAmount(t.SalePrice))
		record.Set("validated", t.Validated)

		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return fmt.Errorf("failed to update ticket %s: %w", ticketID, err)
		}

		updated = recordToTicket(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ListAll pages through the collection ordered by record id.
func (s *PocketBaseStore) ListAll(ctx context.Context) iter.Seq2[*models.Ticket, error] {
	return func(yield func(*models.Ticket, error) bool) {
		lastID := ""
		for {
			var records []*core.Record

			query := s.app.RecordQuery(ticketsCollection).
				WithContext(ctx).
				OrderBy("id ASC").
				Limit(pageSize)
			if lastID != "" {
				query = query.AndWhere(dbx.NewExp("id > {:last}", dbx.Params{"last": lastID}))
			}

			if err := query.All(&records); err != nil {
				yield(nil, fmt.Errorf("failed to list tickets: %w", err))
				return
			}

			for _, record := range records {
				if !yield(recordToTicket(record), nil) {
					return
				}
			}

			if len(records) < pageSize {
				return
			}
			lastID = records[len(records)-1].Id
		}
	}
}

func (s *PocketBaseStore) findRecord(app core.App, ticketID string) (*core.Record, error) {
	record, err := app.FindFirstRecordByData(ticketsCollection, "ticket_id", ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, status.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket %s: %w", ticketID, err)
	}
	return record, nil
}

func recordToTicket(record *core.Record) *models.Ticket {
	return &models.Ticket{
		TicketID:  record.GetString("ticket_id"),
		Owner:     record.GetString("owner"),
		BasePrice: normalizeAmount(record.GetString("base_price")),
		SalePrice: normalizeAmount(record.GetString("sale_price")),
		TokenURI:  record.GetString("token_uri"),
		Validated: record.GetBool("validated"),
		EventID:   record.GetString("event"),
		CreatedAt: record.GetDateTime("created").Time(),
		UpdatedAt: record.GetDateTime("updated").Time(),
	}
}

func (s *PocketBaseStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	collection, err := s.app.FindCachedCollectionByNameOrId(eventsCollection)
	if err != nil {
		return fmt.Errorf("failed to find events collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("name", ev.Name)
	record.Set("date", ev.Date)
	record.Set("location", ev.Location)
	record.Set("description", ev.Description)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("failed to save event %q: %w", ev.Name, err)
	}

	*ev = *recordToEvent(record)
	return nil
}

func (s *PocketBaseStore) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	record, err := s.app.FindRecordById(eventsCollection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, status.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event %s: %w", id, err)
	}
	return recordToEvent(record), nil
}

func (s *PocketBaseStore) ListEvents(ctx context.Context) ([]*models.Event, error) {
	var records []*core.Record
	err := s.app.RecordQuery(eventsCollection).
		WithContext(ctx).
		OrderBy("created ASC", "id ASC").
		All(&records)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*models.Event, 0, len(records))
	for _, record := range records {
		events = append(events, recordToEvent(record))
	}
	return events, nil
}

func recordToEvent(record *core.Record) *models.Event {
	return &models.Event{
		ID:          record.Id,
		Name:        record.GetString("name"),
		Date:        record.GetString("date"),
		Location:    record.GetString("location"),
		Description: record.GetString("description"),
		CreatedAt:   record.GetDateTime("created").Time(),
		UpdatedAt:   record.GetDateTime("updated").Time(),
	}
}

// isUniqueViolation matches both the sqlite constraint error and the
// validation error PocketBase raises for unique indexes.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "validation_not_unique") ||
		strings.Contains(msg, "must be unique")
}
