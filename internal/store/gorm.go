package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = (*GormStore)(nil)

type ticketRow struct {
	TicketID  string `gorm:"primaryKey;type:numeric(78,0)"`
	Owner     string `gorm:"index;not null"`
	BasePrice string `gorm:"type:numeric(78,0);not null;default:0"`
	SalePrice string `gorm:"type:numeric(78,0);not null;default:0"`
	TokenURI  string
	Validated bool   `gorm:"not null;default:false"`
	EventID   string `gorm:"index;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ticketRow) TableName() string {
	return "tickets"
}

type eventRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"not null"`
	Date        string
	Location    string
	Description string
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (eventRow) TableName() string {
	return "events"
}

// GormStore keeps tickets in a Postgres table. uint256 values use
// numeric(78,0) so they sort and compare as integers.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the tickets and events tables.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&eventRow{}, &ticketRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return NewGormStore(db), nil
}

// NewGormStore uses db as is. Open it with TranslateError so duplicate keys
// surface as ErrDuplicateTicket.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, t *models.Ticket) error {
	row := ticketRow{
		TicketID:  t.TicketID,
		Owner:     t.Owner,
		BasePrice: normalizeAmount(t.BasePrice),
		SalePrice: normalizeAmount(t.SalePrice),
		TokenURI:  t.TokenURI,
		Validated: t.Validated,
		EventID:   t.EventID,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("ticket %s: %w", t.TicketID, status.ErrDuplicateTicket)
		}
		return fmt.Errorf("failed to save ticket %s: %w", t.TicketID, err)
	}

	*t = *row.toTicket()
	return nil
}

func (s *GormStore) FindByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var row ticketRow
	if err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Take(&row).Error; err != nil {
		return nil, notFound(ticketID, err)
	}
	return row.toTicket(), nil
}

func (s *GormStore) Update(ctx context.Context, ticketID string, p models.TicketPatch) (*models.Ticket, error) {
	var updated *models.Ticket

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ticketRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ticket_id = ?", ticketID).
			Take(&row).Error
		if err != nil {
			return notFound(ticketID, err)
		}

		t := row.toTicket()
		t.Apply(p)

		row.Owner = t.Owner
		row.SalePrice = normalizeAmount(t.SalePrice)
		row.Validated = t.Validated

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to update ticket %s: %w", ticketID, err)
		}

		updated = row.toTicket()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *GormStore) ListAll(ctx context.Context) iter.Seq2[*models.Ticket, error] {
	return func(yield func(*models.Ticket, error) bool) {
		query := s.db.WithContext(ctx).Model(&ticketRow{}).Order("ticket_id ASC")

		var rows []ticketRow
		for {
			q := query.Session(&gorm.Session{}).Limit(pageSize)
			if len(rows) > 0 {
				q = q.Where("ticket_id > ?", rows[len(rows)-1].TicketID)
			}

			var page []ticketRow
			if err := q.Find(&page).Error; err != nil {
				yield(nil, fmt.Errorf("failed to list tickets: %w", err))
				return
			}

			for i := range page {
				if !yield(page[i].toTicket(), nil) {
					return
				}
			}

			if len(page) < pageSize {
				return
			}
			rows = page
		}
	}
}

func (s *GormStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	row := eventRow{
		ID:          uuid.NewString(),
		Name:        ev.Name,
		Date:        ev.Date,
		Location:    ev.Location,
		Description: ev.Description,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save event %q: %w", ev.Name, err)
	}

	*ev = *row.toEvent()
	return nil
}

func (s *GormStore) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("event %s: %w", id, status.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event %s: %w", id, err)
	}
	return row.toEvent(), nil
}

func (s *GormStore) ListEvents(ctx context.Context) ([]*models.Event, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*models.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toEvent())
	}
	return events, nil
}

func (r *eventRow) toEvent() *models.Event {
	return &models.Event{
		ID:          r.ID,
		Name:        r.Name,
		Date:        r.Date,
		Location:    r.Location,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *ticketRow) toTicket() *models.Ticket {
	return &models.Ticket{
		TicketID:  r.TicketID,
		Owner:     r.Owner,
		BasePrice: normalizeAmount(r.BasePrice),
		SalePrice: normalizeAmount(r.SalePrice),
		TokenURI:  r.TokenURI,
		Validated: r.Validated,
		EventID:   r.EventID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func notFound(ticketID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ticket %s: %w", ticketID, status.ErrNotFound)
	}
	return fmt.Errorf("failed to find ticket %s: %w", ticketID, err)
}
