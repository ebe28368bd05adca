package reconcile

import (
	"context"
	"fmt"

	"ticket-bridge/internal/chain"
	"ticket-bridge/internal/status"
	"ticket-bridge/internal/units"
	"ticket-bridge/models"
)

// MintRequest and BuyRequest may name a catalog event with EventID. The
// event must exist before anything is sent to the chain.
type MintRequest struct {
	To       string
	Price    string
	TokenURI string
	EventID  string
}

type BuyRequest struct {
	TokenURI string
	Buyer    string
	Value    string
	EventID  string
}

type ListRequest struct {
	TicketID  string
	SalePrice string
	Owner     string
}

type CancelRequest struct {
	TicketID string
	Owner    string
}

type PurchaseRequest struct {
	TicketID string
	Buyer    string
}

type ValidateRequest struct {
	TicketID string
	Owner    string
}

type WithdrawRequest struct {
	Owner string
}

// Mint issues a new ticket to req.To, signed by the admin account.
func (s *Service) Mint(ctx context.Context, req MintRequest) (_ *Outcome, err error) {
	defer func() { s.track(chain.ActionMint, err) }()

	to, err := parseAddress("to", req.To)
	if err != nil {
		return nil, err
	}
	tokenURI, err := requireField("tokenURI", req.TokenURI)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		return nil, err
	}
	eventID, err := s.checkEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, chain.ActionMint, func(ctx context.Context) (*chain.Result, error) {
		return s.chain.Mint(ctx, s.txOpts(s.cfg.Admin, nil), to, price, tokenURI)
	})
	if err != nil {
		return nil, err
	}

	return s.mirrorCreate(ctx, chain.ActionMint, res, &models.Ticket{
		Owner:     to.Hex(),
		BasePrice: price.String(),
		SalePrice: models.NotListed,
		TokenURI:  tokenURI,
		EventID:   eventID,
	})
}

// Buy mints a ticket to the buyer, paying req.Value.
func (s *Service) Buy(ctx context.Context, req BuyRequest) (_ *Outcome, err error) {
	defer func() { s.track(chain.ActionBuy, err) }()

	tokenURI, err := requireField("tokenURI", req.TokenURI)
	if err != nil {
		return nil, err
	}
	buyer, err := parseAddress("buyer", req.Buyer)
	if err != nil {
		return nil, err
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		return nil, err
	}
	eventID, err := s.checkEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, chain.ActionBuy, func(ctx context.Context) (*chain.Result, error) {
		return s.chain.Buy(ctx, s.txOpts(buyer, value), tokenURI)
	})
	if err != nil {
		return nil, err
	}

	return s.mirrorCreate(ctx, chain.ActionBuy, res, &models.Ticket{
		Owner:     buyer.Hex(),
		BasePrice: value.String(),
		SalePrice: models.NotListed,
		TokenURI:  tokenURI,
		EventID:   eventID,
	})
}

// List puts a ticket up for resale. A zero price is rejected because zero
// means "not listed".
func (s *Service) List(ctx context.Context, req ListRequest) (_ *Outcome, err error) {
	defer func() { s.track(chain.ActionList, err) }()

	id, err := parseTicketID(req.TicketID)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount("salePrice", req.SalePrice)
	if err != nil {
		return nil, err
	}
	if price.Sign() == 0 {
		return nil, fmt.Errorf("salePrice must be greater than zero: %w", status.ErrInvalidRequest)
	}

	if _, err := s.store.FindByID(ctx, id.String()); err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, chain.ActionList, func(ctx context.Context) (*chain.Result, error) {
		return s.chain.ListForSale(ctx, s.txOpts(owner, nil), id, price)
	})
	if err != nil {
		return nil, err
	}

	salePrice := price.String()
	return s.mirrorUpdate(ctx, chain.ActionList, res, id.String(), models.TicketPatch{SalePrice: &salePrice})
}

func (s *Service) Cancel(ctx context.Context, req CancelRequest) (_ *Outcome, err error) {
	defer func() { s.track(chain.ActionCancel, err) }()

	id, err := parseTicketID(req.TicketID)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByID(ctx, id.String()); err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, chain.ActionCancel, func(ctx context.Context) (*chain.Result, error) {
		return s.chain.CancelSale(ctx, s.txOpts(owner, nil), id)
	})
	if err != nil {
		return nil, err
	}

	notListed := models.NotListed
	return s.mirrorUpdate(ctx, chain.ActionCancel, res, id.String(), models.TicketPatch{SalePrice: &notListed})
}

// Purchase buys a listed ticket. The stored sale price is sent as the
// transaction value; the contract decides whether the ticket is for sale.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (_ *Outcome, err error) {
	defer func() { s.track(chain.ActionPurchase, err) }()

	id, err := parseTicketID(req.TicketID)
	if err != nil {
		return nil, err
	}
	buyer, err := parseAddress("buyer", req.Buyer)
	if err != nil {
		return nil, err
	}

	ticket, err := s.store.FindByID(ctx, id.String())
	if err != nil {
		return nil, err
	}
	value, err := units.ParseBaseUnits(ticket.SalePrice)
	if err != nil {
		return nil, fmt.Errorf("stored sale price of ticket %s: %w", ticket.TicketID, err)
	}

	res, err := s.submit(ctx, chain.ActionPurchase, func(ctx context.Context) (*chain.Result, error) {
		return s.chain.Purchase(ctx, s.txOpts(buyer, value), id)
	})
	if err != nil {
		return nil, err
	}

	newOwner := buyer.Hex()
	notListed := models.NotListed
	return s.mirrorUpdate(ctx, chain.ActionPurchase, res, id.String(), models.TicketPatch{
		Owner:     &newOwner,
		SalePrice: &notListed,
	})
}

// Validate marks a ticket as used. Every call sends a transaction, even for a
// ticket the store already shows as validated.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (_ *Outcome, err error) {
	defer func() { s.track(chain.ActionValidate, err) }()

	id, err := parseTicketID(req.TicketID)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByID(ctx, id.String()); err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, chain.ActionValidate, func(ctx context.Context) (*chain.Result, error) {
		return s.chain.Validate(ctx, s.txOpts(owner, nil), id)
	})
	if err != nil {
		return nil, err
	}

	validated := true
	return s.mirrorUpdate(ctx, chain.ActionValidate, res, id.String(), models.TicketPatch{Validated: &validated})
}

// Withdraw moves the contract balance to its owner. Nothing is mirrored.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (_ *Outcome, err error) {
	defer func() { s.track(chain.ActionWithdraw, err) }()

	owner := s.cfg.Admin
	if req.Owner != "" {
		if owner, err = parseAddress("owner", req.Owner); err != nil {
			return nil, err
		}
	}

	res, err := s.submit(ctx, chain.ActionWithdraw, func(ctx context.Context) (*chain.Result, error) {
		return s.chain.Withdraw(ctx, s.txOpts(owner, nil))
	})
	if err != nil {
		return nil, err
	}

	s.publish(context.WithoutCancel(ctx), chain.ActionWithdraw, nil, res.Receipt)
	return &Outcome{Receipt: res.Receipt}, nil
}

// Tickets returns every mirrored ticket.
func (s *Service) Tickets(ctx context.Context) ([]*models.Ticket, error) {
	tickets := make([]*models.Ticket, 0)
	for ticket, err := range s.store.ListAll(ctx) {
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

