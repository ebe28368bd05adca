package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"ticket-bridge/internal/reconcile"
	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetEvents(t *testing.T) {
	svc := new(MockReconciler)
	h := NewEventHandler(svc)

	svc.On("Events", mock.Anything).Return([]*models.Event{
		{ID: "evt1", Name: "Summer Festival", Date: "2025-07-12", Location: "Vientiane"},
	}, nil)

	e, rec := newEvent(http.MethodGet, "/api/v1/events", "")
	require.NoError(t, h.GetEvents(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	events := decode(t, rec)["events"].([]any)
	require.Len(t, events, 1)
	first := events[0].(map[string]any)
	assert.Equal(t, "evt1", first["id"])
	assert.Equal(t, "Summer Festival", first["name"])
	assert.Equal(t, "Vientiane", first["location"])
	svc.AssertExpectations(t)
}

func TestGetEvents_StoreFailure(t *testing.T) {
	svc := new(MockReconciler)
	h := NewEventHandler(svc)
	svc.On("Events", mock.Anything).Return(nil, errors.New("database is locked"))

	e, _ := newEvent(http.MethodGet, "/api/v1/events", "")
	assert.Equal(t, http.StatusInternalServerError, apiStatus(t, h.GetEvents(e)))
}

func TestCreateEvent(t *testing.T) {
	svc := new(MockReconciler)
	h := NewEventHandler(svc)

	svc.On("CreateEvent", mock.Anything, reconcile.EventRequest{
		Name:        "Summer Festival",
		Date:        "2025-07-12",
		Location:    "Vientiane",
		Description: "Open air",
	}).Return(&models.Event{ID: "evt1", Name: "Summer Festival", Date: "2025-07-12"}, nil)

	e, rec := newEvent(http.MethodPost, "/api/v1/events",
		`{"name":"Summer Festival","date":"2025-07-12","location":"Vientiane","description":"Open air"}`)
	require.NoError(t, h.CreateEvent(e))

	assert.Equal(t, http.StatusCreated, rec.Code)
	event := decode(t, rec)["event"].(map[string]any)
	assert.Equal(t, "evt1", event["id"])
	svc.AssertExpectations(t)
}

func TestCreateEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "malformed body", body: `{"name": 5}`, want: http.StatusBadRequest},
		{name: "missing name", body: `{}`, err: fmt.Errorf("missing name: %w", status.ErrInvalidRequest), want: http.StatusBadRequest},
		{name: "store failure", body: `{"name":"x"}`, err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReconciler)
			h := NewEventHandler(svc)
			svc.On("CreateEvent", mock.Anything, mock.Anything).Return(nil, tt.err)

			e, _ := newEvent(http.MethodPost, "/api/v1/events", tt.body)
			assert.Equal(t, tt.want, apiStatus(t, h.CreateEvent(e)))
		})
	}
}

func TestBuy_PassesEvent(t *testing.T) {
	svc := new(MockReconciler)
	h := NewTicketHandler(svc)

	ticket := &models.Ticket{TicketID: "3", Owner: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC", EventID: "evt1"}
	svc.On("Buy", mock.Anything, reconcile.BuyRequest{
		TokenURI: "ipfs://t",
		Buyer:    "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
		Value:    "1",
		EventID:  "evt1",
	}).Return(&reconcile.Outcome{Ticket: ticket, Receipt: receipt}, nil)

	e, rec := newEvent(http.MethodPost, "/api/v1/tickets/buy",
		`{"tokenURI":"ipfs://t","buyer":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","value":1,"event":"evt1"}`)
	require.NoError(t, h.Buy(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "evt1", decode(t, rec)["ticket"].(map[string]any)["event"])
	svc.AssertExpectations(t)
}

func TestMint_UnknownEventIsNotFound(t *testing.T) {
	svc := new(MockReconciler)
	h := NewTicketHandler(svc)
	svc.On("Mint", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("event nope: %w", status.ErrNotFound))

	e, _ := newEvent(http.MethodPost, "/api/v1/tickets/mint", `{"to":"0xabc","price":"1","tokenURI":"u","event":"nope"}`)
	assert.Equal(t, http.StatusNotFound, apiStatus(t, h.Mint(e)))
}
