package notify

import (
	"context"
	"errors"
	"time"
)

// Notification announces a lifecycle action that is confirmed on-chain and
// mirrored in the store.
type Notification struct {
	Action    string    `json:"action"`
	TicketID  string    `json:"ticketId,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	SalePrice string    `json:"salePrice,omitempty"`
	TxHash    string    `json:"txHash"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
