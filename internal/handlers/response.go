package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"ticket-bridge/internal/chain"
	"ticket-bridge/internal/reconcile"
	"ticket-bridge/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// Transaction is the client view of a mined transaction. Every numeric
// field is a decimal string.
type Transaction struct {
	TxHash      string `json:"txHash"`
	Status      string `json:"status"`
	GasUsed     string `json:"gasUsed"`
	BlockNumber string `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
}

func newTransaction(r chain.Receipt) Transaction {
	return Transaction{
		TxHash:      r.TxHash,
		Status:      strconv.FormatUint(r.Status, 10),
		GasUsed:     strconv.FormatUint(r.GasUsed, 10),
		BlockNumber: strconv.FormatUint(r.BlockNumber, 10),
		BlockHash:   r.BlockHash,
	}
}

// flexString accepts either a JSON string or a bare JSON number, keeping the
// number's literal text so amounts and ids never pass through a float.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// respondError maps a reconcile error onto the API. A gap still reports the
// confirmed transaction so the caller knows the chain effect happened.
func respondError(e *core.RequestEvent, action string, err error) error {
	var gapErr *reconcile.GapError
	if errors.As(err, &gapErr) {
		return e.JSON(http.StatusMultiStatus, map[string]any{
			"confirmed":   true,
			"gapId":       gapErr.Gap.ID,
			"transaction": newTransaction(gapErr.Receipt),
			"message":     "Transaction confirmed on-chain but the ticket record was not updated",
		})
	}

	switch {
	case errors.Is(err, status.ErrChainUnavailable), errors.Is(err, status.ErrChainRejected):
		kind := "rejected"
		if errors.Is(err, status.ErrChainUnavailable) {
			kind = "unavailable"
		}
		body := map[string]any{
			"chain":   kind,
			"message": err.Error(),
		}
		var chainErr *chain.Error
		if errors.As(err, &chainErr) && chainErr.TxHash != "" {
			body["txHash"] = chainErr.TxHash
		}
		return e.JSON(http.StatusBadGateway, body)
	case errors.Is(err, status.ErrInvalidRequest), errors.Is(err, status.ErrInvalidAmount):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrDuplicateTicket):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	}

	slog.Error("Ticket action failed", "action", action, "error", err)
	return apis.NewInternalServerError("Failed to "+action+" ticket", err)
}
