package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"ticket-bridge/internal/chain"
	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/ethereum/go-ethereum/common"
)

// GapError reports a transaction that is final on-chain but missing from the
// store. It matches status.ErrReconciliationGap and, when set, the store or
// decode error that caused it.
type GapError struct {
	Gap     *models.Gap
	Receipt chain.Receipt
	Err     error
}

func (e *GapError) Error() string {
	msg := fmt.Sprintf("%v: %s tx %s: %s", status.ErrReconciliationGap, e.Gap.Action, e.Receipt.TxHash, e.Gap.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GapError) Unwrap() []error {
	if e.Err == nil {
		return []error{status.ErrReconciliationGap}
	}
	return []error{status.ErrReconciliationGap, e.Err}
}

// recordGap logs and queues a confirmed action whose mirror write is
// missing. target holds the state the store should have reached.
func (s *Service) recordGap(ctx context.Context, action chain.Action, receipt chain.Receipt, target *models.Ticket, cause error, reason string) *GapError {
	gap := &models.Gap{
		Action:      string(action),
		TxHash:      receipt.TxHash,
		BlockNumber: strconv.FormatUint(receipt.BlockNumber, 10),
		TicketID:    target.TicketID,
		Owner:       target.Owner,
		BasePrice:   target.BasePrice,
		SalePrice:   target.SalePrice,
		TokenURI:    target.TokenURI,
		EventID:     target.EventID,
		Reason:      reason,
		CreatedAt:   s.now().UTC(),
	}
	if cause != nil {
		gap.Reason = reason + ": " + cause.Error()
	}

	if err := s.gaps.Push(ctx, gap); err != nil {
		slog.Error("Failed to queue reconciliation gap",
			"action", action,
			"txHash", receipt.TxHash,
			"ticketId", target.TicketID,
			"error", err,
		)
	}

	slog.Error("Reconciliation gap",
		"gapId", gap.ID,
		"action", action,
		"txHash", receipt.TxHash,
		"blockNumber", receipt.BlockNumber,
		"ticketId", target.TicketID,
		"reason", reason,
		"error", cause,
	)

	return &GapError{Gap: gap, Receipt: receipt, Err: cause}
}

// Gaps lists unresolved gaps, oldest first.
func (s *Service) Gaps(ctx context.Context, limit int64) ([]*models.Gap, error) {
	return s.gaps.List(ctx, limit)
}

// Repair replays the store write of a queued gap from the already mined
// transaction. It never submits a transaction. A create that finds the
// ticket already stored counts as repaired.
func (s *Service) Repair(ctx context.Context, gapID string) (_ *Outcome, err error) {
	gap, err := s.gaps.Get(ctx, gapID)
	if err != nil {
		return nil, err
	}
	defer func() { s.track(chain.Action("repair_"+gap.Action), err) }()

	res, err := s.chain.TransactionResult(ctx, common.HexToHash(gap.TxHash))
	if err != nil {
		return nil, err
	}

	var ticket *models.Ticket
	switch chain.Action(gap.Action) {
	case chain.ActionMint, chain.ActionBuy:
		ticket, err = s.repairCreate(ctx, gap, res)
	case chain.ActionList, chain.ActionCancel, chain.ActionPurchase, chain.ActionValidate:
		ticket, err = s.store.Update(ctx, gap.TicketID, repairPatch(gap))
	default:
		err = fmt.Errorf("gap %s has unknown action %q: %w", gap.ID, gap.Action, status.ErrInvalidRequest)
	}
	if err != nil {
		slog.Error("Gap repair failed", "gapId", gap.ID, "action", gap.Action, "txHash", gap.TxHash, "error", err)
		return nil, err
	}

	if err := s.gaps.Resolve(ctx, gap.ID); err != nil {
		slog.Error("Failed to resolve repaired gap", "gapId", gap.ID, "error", err)
		return nil, err
	}

	slog.Info("Gap repaired", "gapId", gap.ID, "action", gap.Action, "txHash", gap.TxHash, "ticketId", ticket.TicketID)
	return &Outcome{Ticket: ticket, Receipt: res.Receipt}, nil
}

func (s *Service) repairCreate(ctx context.Context, gap *models.Gap, res *chain.Result) (*models.Ticket, error) {
	id, ok := res.MintedTokenID()
	if !ok {
		return nil, fmt.Errorf("tx %s has no TicketMinted event: %w", gap.TxHash, status.ErrReconciliationGap)
	}

	ticket := &models.Ticket{
		TicketID:  id.String(),
		Owner:     gap.Owner,
		BasePrice: gap.BasePrice,
		SalePrice: models.NotListed,
		TokenURI:  gap.TokenURI,
		EventID:   gap.EventID,
	}

	err := s.store.Create(ctx, ticket)
	if errors.Is(err, status.ErrDuplicateTicket) {
		return s.store.FindByID(ctx, ticket.TicketID)
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func repairPatch(gap *models.Gap) models.TicketPatch {
	notListed := models.NotListed
	switch chain.Action(gap.Action) {
	case chain.ActionList:
		salePrice := gap.SalePrice
		return models.TicketPatch{SalePrice: &salePrice}
	case chain.ActionCancel:
		return models.TicketPatch{SalePrice: &notListed}
	case chain.ActionPurchase:
		owner := gap.Owner
		return models.TicketPatch{Owner: &owner, SalePrice: &notListed}
	default:
		validated := true
		return models.TicketPatch{Validated: &validated}
	}
}
