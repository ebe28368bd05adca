package notify

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
)

// BroadcastChannel receives every ticket notification. Owners additionally
// get one on their own user-<address> channel.
const BroadcastChannel = "tickets"

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

type PubNubNotifier struct {
	publish func(ctx context.Context, channel string, message any) error
}

func NewPubNubNotifier(cfg PubNubConfig) *PubNubNotifier {
	userID := cfg.UserID
	if userID == "" {
		userID = "ticket-bridge"
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	pn := pubnub.NewPubNub(pnCfg)

	return &PubNubNotifier{
		publish: func(ctx context.Context, channel string, message any) error {
			_, _, err := pn.PublishWithContext(ctx).
				Channel(channel).
				Message(message).
				Execute()
			return err
		},
	}
}

func (p *PubNubNotifier) Notify(ctx context.Context, n Notification) error {
	message := map[string]any{
		"type":       "ticket_" + n.Action,
		"ticket_id":  n.TicketID,
		"owner":      n.Owner,
		"sale_price": n.SalePrice,
		"tx_hash":    n.TxHash,
		"at":         n.At.Unix(),
	}

	if err := p.publish(ctx, BroadcastChannel, message); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", BroadcastChannel, err)
	}

	if n.Owner != "" {
		channel := fmt.Sprintf("user-%s", n.Owner)
		if err := p.publish(ctx, channel, message); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", channel, err)
		}
	}

	return nil
}
