package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set TEST_POSTGRES_DSN to run these against a scratch database.
func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	require.NoError(t, s.db.Exec("TRUNCATE tickets, events").Error)
	return s
}

func TestGormStore_Lifecycle(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Ticket{TicketID: "1", Owner: "0xa", BasePrice: "10"}))
	assert.ErrorIs(t, s.Create(ctx, &models.Ticket{TicketID: "1", Owner: "0xb"}), status.ErrDuplicateTicket)

	updated, err := s.Update(ctx, "1", models.TicketPatch{SalePrice: ptr("5")})
	require.NoError(t, err)
	assert.Equal(t, "5", updated.SalePrice)

	_, err = s.Update(ctx, "2", models.TicketPatch{SalePrice: ptr("5")})
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = s.FindByID(ctx, "2")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestGormStore_ListAll(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()

	total := pageSize + 3
	for i := 1; i <= total; i++ {
		require.NoError(t, s.Create(ctx, &models.Ticket{TicketID: fmt.Sprint(i), Owner: "0xa"}))
	}

	seen := make(map[string]bool)
	for ticket, err := range s.ListAll(ctx) {
		require.NoError(t, err)
		assert.False(t, seen[ticket.TicketID])
		seen[ticket.TicketID] = true
	}
	assert.Len(t, seen, total)
}

func TestGormStore_Events(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()

	ev := &models.Event{Name: "Summer Festival", Date: "2025-07-12", Location: "Vientiane"}
	require.NoError(t, s.CreateEvent(ctx, ev))
	assert.Len(t, ev.ID, 36)

	found, err := s.FindEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vientiane", found.Location)

	require.NoError(t, s.Create(ctx, &models.Ticket{TicketID: "1", Owner: "0xa", EventID: ev.ID}))
	ticket, err := s.FindByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ev.ID, ticket.EventID)

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Summer Festival", events[0].Name)

	_, err = s.FindEvent(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, status.ErrNotFound)
}
