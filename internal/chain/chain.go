package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Action names one ticket lifecycle call on the contract.
type Action string

const (
	ActionMint     Action = "mint"
	ActionBuy      Action = "buy"
	ActionList     Action = "list"
	ActionCancel   Action = "cancel"
	ActionPurchase Action = "purchase"
	ActionValidate Action = "validate"
	ActionWithdraw Action = "withdraw"
)

// EventTicketMinted is emitted by mintTicket and buyTicket and carries the new token id.
const EventTicketMinted = "TicketMinted"

// TxOpts are the transaction parameters for a single call. From is used exactly as
// given; the node must manage the key for it.
type TxOpts struct {
	From     common.Address
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
}

// Receipt is the confirmation of a mined transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	Status      uint64 `json:"status"`
	GasUsed     uint64 `json:"gasUsed"`
	BlockNumber uint64 `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
}

// Event is one decoded contract log.
type Event struct {
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields"`
}

// Result is a confirmed transaction with every contract event it emitted,
// keyed by event name. When an event is emitted more than once the first
// occurrence is kept.
type Result struct {
	Receipt Receipt          `json:"receipt"`
	Events  map[string]Event `json:"events"`
}

// MintedTokenID returns the token id from the TicketMinted event. The second
// value is false when the transaction did not emit one.
func (r *Result) MintedTokenID() (*big.Int, bool) {
	if r == nil {
		return nil, false
	}
	ev, ok := r.Events[EventTicketMinted]
	if !ok {
		return nil, false
	}
	id, ok := ev.Fields["tokenId"].(*big.Int)
	if !ok || id == nil {
		return nil, false
	}
	return new(big.Int).Set(id), true
}

// Client submits ticket lifecycle transactions and waits for their receipts.
// Implementations never resubmit a transaction on their own. Failures are
// returned as *Error.
type Client interface {
	Mint(ctx context.Context, opts TxOpts, to common.Address, price *big.Int, tokenURI string) (*Result, error)
	Buy(ctx context.Context, opts TxOpts, tokenURI string) (*Result, error)
	ListForSale(ctx context.Context, opts TxOpts, tokenID, price *big.Int) (*Result, error)
	CancelSale(ctx context.Context, opts TxOpts, tokenID *big.Int) (*Result, error)
	Purchase(ctx context.Context, opts TxOpts, tokenID *big.Int) (*Result, error)
	Validate(ctx context.Context, opts TxOpts, tokenID *big.Int) (*Result, error)
	Withdraw(ctx context.Context, opts TxOpts) (*Result, error)

	// TransactionResult reads back an already mined transaction. It never submits.
	TransactionResult(ctx context.Context, txHash common.Hash) (*Result, error)

	Health(ctx context.Context) error
}

// Error is a failed chain call. Kind is status.ErrChainRejected or
// status.ErrChainUnavailable. TxHash is set when the transaction was submitted,
// so callers can look it up before deciding to resubmit.
type Error struct {
	Action Action
	Kind   error
	TxHash string
	Err    error
}

func (e *Error) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s (tx %s): %v: %v", e.Action, e.TxHash, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Action, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
