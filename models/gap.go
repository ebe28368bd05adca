package models

import (
	"time"
)

// Gap records a lifecycle action that was confirmed on-chain but could not be
// mirrored into the ticket store. It carries what is needed to replay the store
// write without submitting another transaction.
type Gap struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	TxHash      string    `json:"txHash"`
	BlockNumber string    `json:"blockNumber,omitempty"`
	TicketID    string    `json:"ticketId,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	BasePrice   string    `json:"basePrice,omitempty"`
	SalePrice   string    `json:"salePrice,omitempty"`
	TokenURI    string    `json:"tokenURI,omitempty"`
	EventID     string    `json:"event,omitempty"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"createdAt"`
}
