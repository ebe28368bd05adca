// Package reconcile drives every ticket lifecycle action through the contract
// first and mirrors the confirmed result into the ticket store.
//
// The store is never written before the chain confirms. A confirmed
// transaction whose mirror write fails is reported as a *GapError and queued
// for repair; it is never resubmitted.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"ticket-bridge/internal/chain"
	"ticket-bridge/internal/notify"
	"ticket-bridge/internal/status"
	"ticket-bridge/internal/store"
	"ticket-bridge/models"

	"github.com/ethereum/go-ethereum/common"
)

// GapQueue holds confirmed transactions whose store write is missing.
type GapQueue interface {
	Push(ctx context.Context, gap *models.Gap) error
	Get(ctx context.Context, id string) (*models.Gap, error)
	List(ctx context.Context, limit int64) ([]*models.Gap, error)
	Resolve(ctx context.Context, id string) error
}

type Metrics interface {
	ObserveChainCall(action, outcome string, duration time.Duration)
	TrackReconcile(action, outcome string)
}

type Deps struct {
	Chain chain.Client
	Store store.TicketStore
	// Events is the event catalog. Without it, requests naming an event
	// are rejected.
	Events   store.EventStore
	Gaps     GapQueue
	Notifier notify.Notifier
	Metrics  Metrics
}

type Config struct {
	// Admin signs mint and withdraw transactions.
	Admin    common.Address
	GasLimit uint64
	GasPrice *big.Int
	// ChainTimeout bounds one chain call including the receipt wait.
	ChainTimeout time.Duration
}

type Service struct {
	chain    chain.Client
	store    store.TicketStore
	events   store.EventStore
	gaps     GapQueue
	notifier notify.Notifier
	metrics  Metrics
	cfg      Config
	now      func() time.Time
}

// Outcome is a confirmed and mirrored lifecycle action. Ticket is nil for
// actions that do not touch a ticket record.
type Outcome struct {
	Ticket  *models.Ticket
	Receipt chain.Receipt
}

func NewService(deps Deps, cfg Config) *Service {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = 2 * time.Minute
	}

	return &Service{
		chain:    deps.Chain,
		store:    deps.Store,
		events:   deps.Events,
		gaps:     deps.Gaps,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *Service) txOpts(from common.Address, value *big.Int) chain.TxOpts {
	return chain.TxOpts{
		From:     from,
		Gas:      s.cfg.GasLimit,
		GasPrice: s.cfg.GasPrice,
		Value:    value,
	}
}

// submit runs one chain call. The call is detached from ctx cancellation: a
// transaction cannot be recalled once sent, so its receipt is always awaited.
func (s *Service) submit(ctx context.Context, action chain.Action, call func(ctx context.Context) (*chain.Result, error)) (*chain.Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ChainTimeout)
	defer cancel()

	start := time.Now()
	res, err := call(callCtx)
	s.metrics.ObserveChainCall(string(action), outcomeOf(err), time.Since(start))

	if err != nil {
		slog.Error("Chain call failed", "action", action, "error", err)
		return nil, err
	}

	slog.Info("Chain call confirmed",
		"action", action,
		"txHash", res.Receipt.TxHash,
		"blockNumber", res.Receipt.BlockNumber,
		"gasUsed", res.Receipt.GasUsed,
	)
	return res, nil
}

// mirrorCreate stores the ticket a mint or buy created, taking the id from
// the TicketMinted event.
func (s *Service) mirrorCreate(ctx context.Context, action chain.Action, res *chain.Result, ticket *models.Ticket) (*Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	id, ok := res.MintedTokenID()
	if !ok {
		return nil, s.recordGap(ctx, action, res.Receipt, ticket, nil, "no TicketMinted event in receipt")
	}
	ticket.TicketID = id.String()

	if err := s.store.Create(ctx, ticket); err != nil {
		return nil, s.recordGap(ctx, action, res.Receipt, ticket, err, "store create failed")
	}

	s.publish(ctx, action, ticket, res.Receipt)
	return &Outcome{Ticket: ticket, Receipt: res.Receipt}, nil
}

func (s *Service) mirrorUpdate(ctx context.Context, action chain.Action, res *chain.Result, ticketID string, patch models.TicketPatch) (*Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	updated, err := s.store.Update(ctx, ticketID, patch)
	if err != nil {
		target := &models.Ticket{TicketID: ticketID}
		target.Apply(patch)
		return nil, s.recordGap(ctx, action, res.Receipt, target, err, "store update failed")
	}

	s.publish(ctx, action, updated, res.Receipt)
	return &Outcome{Ticket: updated, Receipt: res.Receipt}, nil
}

func (s *Service) publish(ctx context.Context, action chain.Action, ticket *models.Ticket, receipt chain.Receipt) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n := notify.Notification{
		Action: string(action),
		TxHash: receipt.TxHash,
		At:     s.now().UTC(),
	}
	if ticket != nil {
		n.TicketID = ticket.TicketID
		n.Owner = ticket.Owner
		n.SalePrice = ticket.SalePrice
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Warn("Failed to publish ticket notification", "action", action, "txHash", receipt.TxHash, "error", err)
	}
}

func (s *Service) track(action chain.Action, err error) {
	s.metrics.TrackReconcile(string(action), outcomeOf(err))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, status.ErrReconciliationGap):
		return "gap"
	case errors.Is(err, status.ErrChainRejected):
		return "rejected"
	case errors.Is(err, status.ErrChainUnavailable):
		return "unavailable"
	case errors.Is(err, status.ErrNotFound):
		return "not_found"
	case errors.Is(err, status.ErrInvalidRequest), errors.Is(err, status.ErrInvalidAmount):
		return "invalid"
	default:
		return "error"
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveChainCall(string, string, time.Duration) {}
func (nopMetrics) TrackReconcile(string, string)                  {}
