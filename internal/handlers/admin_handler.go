package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"ticket-bridge/internal/reconcile"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	service Reconciler
	checks  map[string]func(ctx context.Context) error
}

// NewAdminHandler serves operator routes. checks back the /health route.
func NewAdminHandler(service Reconciler, checks map[string]func(ctx context.Context) error) *AdminHandler {
	return &AdminHandler{
		service: service,
		checks:  checks,
	}
}

// GetGaps - Unresolved reconciliation gaps, oldest first
func (h *AdminHandler) GetGaps(e *core.RequestEvent) error {
	var limit int64
	if raw := e.Request.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return apis.NewBadRequestError("Invalid limit", nil)
		}
		limit = n
	}

	gaps, err := h.service.Gaps(e.Request.Context(), limit)
	if err != nil {
		return respondError(e, "list gaps for", err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"gaps":  gaps,
		"count": len(gaps),
	})
}

// RepairGap - Replay the store write of one gap from its mined transaction
func (h *AdminHandler) RepairGap(e *core.RequestEvent) error {
	gapID := e.Request.PathValue("gapId")
	if gapID == "" {
		return apis.NewBadRequestError("Missing gap id", nil)
	}

	out, err := h.service.Repair(e.Request.Context(), gapID)
	if err != nil {
		return respondError(e, "repair", err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"ticket":      out.Ticket,
		"transaction": newTransaction(out.Receipt),
	})
}

func (h *AdminHandler) Withdraw(e *core.RequestEvent) error {
	var req struct {
		Owner string `json:"owner"`
	}
	// An empty body withdraws as the admin account.
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	out, err := h.service.Withdraw(e.Request.Context(), reconcile.WithdrawRequest{Owner: req.Owner})
	if err != nil {
		return respondError(e, "withdraw", err)
	}
	return transactionResponse(e, out)
}

// Health reports each dependency; 503 when any is down.
func (h *AdminHandler) Health(e *core.RequestEvent) error {
	ctx, cancel := context.WithTimeout(e.Request.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		return e.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"checks": results,
		})
	}
	return e.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"checks": results,
	})
}
