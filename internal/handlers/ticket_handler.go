package handlers

import (
	"context"
	"net/http"

	"ticket-bridge/internal/reconcile"
	"ticket-bridge/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// Reconciler is the lifecycle API the handlers drive.
type Reconciler interface {
	Mint(ctx context.Context, req reconcile.MintRequest) (*reconcile.Outcome, error)
	Buy(ctx context.Context, req reconcile.BuyRequest) (*reconcile.Outcome, error)
	List(ctx context.Context, req reconcile.ListRequest) (*reconcile.Outcome, error)
	Cancel(ctx context.Context, req reconcile.CancelRequest) (*reconcile.Outcome, error)
	Purchase(ctx context.Context, req reconcile.PurchaseRequest) (*reconcile.Outcome, error)
	Validate(ctx context.Context, req reconcile.ValidateRequest) (*reconcile.Outcome, error)
	Withdraw(ctx context.Context, req reconcile.WithdrawRequest) (*reconcile.Outcome, error)
	Tickets(ctx context.Context) ([]*models.Ticket, error)
	Gaps(ctx context.Context, limit int64) ([]*models.Gap, error)
	Repair(ctx context.Context, gapID string) (*reconcile.Outcome, error)
}

type TicketHandler struct {
	service Reconciler
}

func NewTicketHandler(service Reconciler) *TicketHandler {
	return &TicketHandler{service: service}
}

// Mint - Issue a new ticket to an address
func (h *TicketHandler) Mint(e *core.RequestEvent) error {
	var req struct {
		To       string     `json:"to"`
		Price    flexString `json:"price"`
		TokenURI string     `json:"tokenURI"`
		Event    string     `json:"event"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	out, err := h.service.Mint(e.Request.Context(), reconcile.MintRequest{
		To:       req.To,
		Price:    string(req.Price),
		TokenURI: req.TokenURI,
		EventID:  req.Event,
	})
	if err != nil {
		return respondError(e, "mint", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket":      out.Ticket,
		"transaction": newTransaction(out.Receipt),
	})
}

// Buy - Buyer pays for and receives a freshly minted ticket
func (h *TicketHandler) Buy(e *core.RequestEvent) error {
	var req struct {
		TokenURI string     `json:"tokenURI"`
		Buyer    string     `json:"buyer"`
		Value    flexString `json:"value"`
		Event    string     `json:"event"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	out, err := h.service.Buy(e.Request.Context(), reconcile.BuyRequest{
		TokenURI: req.TokenURI,
		Buyer:    req.Buyer,
		Value:    string(req.Value),
		EventID:  req.Event,
	})
	if err != nil {
		return respondError(e, "buy", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket":      out.Ticket,
		"transaction": newTransaction(out.Receipt),
	})
}

func (h *TicketHandler) List(e *core.RequestEvent) error {
	var req struct {
		TicketID  flexString `json:"ticketId"`
		SalePrice flexString `json:"salePrice"`
		Owner     string     `json:"owner"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	out, err := h.service.List(e.Request.Context(), reconcile.ListRequest{
		TicketID:  string(req.TicketID),
		SalePrice: string(req.SalePrice),
		Owner:     req.Owner,
	})
	if err != nil {
		return respondError(e, "list", err)
	}
	return transactionResponse(e, out)
}

func (h *TicketHandler) Cancel(e *core.RequestEvent) error {
	var req struct {
		TicketID flexString `json:"ticketId"`
		Owner    string     `json:"owner"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	out, err := h.service.Cancel(e.Request.Context(), reconcile.CancelRequest{
		TicketID: string(req.TicketID),
		Owner:    req.Owner,
	})
	if err != nil {
		return respondError(e, "cancel", err)
	}
	return transactionResponse(e, out)
}

func (h *TicketHandler) Purchase(e *core.RequestEvent) error {
	var req struct {
		TicketID flexString `json:"ticketId"`
		Buyer    string     `json:"buyer"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	out, err := h.service.Purchase(e.Request.Context(), reconcile.PurchaseRequest{
		TicketID: string(req.TicketID),
		Buyer:    req.Buyer,
	})
	if err != nil {
		return respondError(e, "purchase", err)
	}
	return transactionResponse(e, out)
}

func (h *TicketHandler) Validate(e *core.RequestEvent) error {
	var req struct {
		TicketID flexString `json:"ticketId"`
		Owner    string     `json:"owner"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	out, err := h.service.Validate(e.Request.Context(), reconcile.ValidateRequest{
		TicketID: string(req.TicketID),
		Owner:    req.Owner,
	})
	if err != nil {
		return respondError(e, "validate", err)
	}
	return transactionResponse(e, out)
}

// GetTickets - All mirrored tickets
func (h *TicketHandler) GetTickets(e *core.RequestEvent) error {
	tickets, err := h.service.Tickets(e.Request.Context())
	if err != nil {
		return respondError(e, "list all", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"tickets": tickets})
}

func transactionResponse(e *core.RequestEvent, out *reconcile.Outcome) error {
	return e.JSON(http.StatusOK, map[string]any{
		"transaction": newTransaction(out.Receipt),
	})
}
