package models

import (
	"time"
)

// Ticket is the off-chain mirror of one minted ticket token.
// Amounts are wei integers kept as strings.
type Ticket struct {
	TicketID  string    `json:"ticketId"`
	Owner     string    `json:"owner"`
	BasePrice string    `json:"basePrice"`
	SalePrice string    `json:"salePrice"` // "0" when not listed
	TokenURI  string    `json:"tokenURI"`
	Validated bool      `json:"validated"`
	EventID   string    `json:"event,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotListed is the sale price of a ticket that is not for sale.
const NotListed = "0"

// IsListed reports whether the ticket currently has a sale price.
func (t *Ticket) IsListed() bool {
	return t.SalePrice != "" && t.SalePrice != NotListed
}

// TicketPatch is a partial update. Nil fields are left untouched.
type TicketPatch struct {
	Owner     *string
	SalePrice *string
	Validated *bool
}

// Apply merges the patch into t. Validation only moves forward: a patch can
// never clear Validated.
func (t *Ticket) Apply(p TicketPatch) {
	if p.Owner != nil {
		t.Owner = *p.Owner
	}
	if p.SalePrice != nil {
		t.SalePrice = *p.SalePrice
	}
	if p.Validated != nil && *p.Validated {
		t.Validated = true
	}
}
