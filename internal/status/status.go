package status

import "errors"

var (
	ErrInvalidRequest = errors.New("request: invalid request")
	ErrInvalidAmount  = errors.New("amount: invalid amount")

	ErrNotFound        = errors.New("ticket: ticket not found")
	ErrDuplicateTicket = errors.New("ticket: duplicate ticket id")

	// ErrChainRejected means the contract reverted or the node refused the transaction.
	ErrChainRejected = errors.New("chain: transaction rejected")
	// ErrChainUnavailable means the outcome is unknown: the RPC endpoint could not be
	// reached, timed out, or the receipt never arrived.
	ErrChainUnavailable = errors.New("chain: node unavailable")

	// ErrReconciliationGap means the chain transaction is final but the store mirror
	// could not be written.
	ErrReconciliationGap = errors.New("reconcile: chain confirmed but store not updated")
)
