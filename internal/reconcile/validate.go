package reconcile

import (
	"fmt"
	"math/big"
	"strings"

	"ticket-bridge/internal/status"
	"ticket-bridge/internal/units"

	"github.com/ethereum/go-ethereum/common"
)

// maxUint256 bounds token ids and amounts to what the contract can hold.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func requireField(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("missing %s: %w", field, status.ErrInvalidRequest)
	}
	return value, nil
}

func parseAddress(field, value string) (common.Address, error) {
	value, err := requireField(field, value)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q is not an address: %w", field, value, status.ErrInvalidRequest)
	}
	return common.HexToAddress(value), nil
}

// parseTicketID accepts a non-negative base-10 integer.
func parseTicketID(value string) (*big.Int, error) {
	value, err := requireField("ticketId", value)
	if err != nil {
		return nil, err
	}

	for _, r := range value {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("ticketId %q is not a non-negative integer: %w", value, status.ErrInvalidRequest)
		}
	}

	id, ok := new(big.Int).SetString(value, 10)
	if !ok || id.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("ticketId %q is out of range: %w", value, status.ErrInvalidRequest)
	}
	return id, nil
}

// parseAmount converts a decimal ether amount into wei.
func parseAmount(field, value string) (*big.Int, error) {
	value, err := requireField(field, value)
	if err != nil {
		return nil, err
	}

	wei, err := units.ToBaseUnits(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if wei.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%s %q is out of range: %w", field, value, status.ErrInvalidAmount)
	}
	return wei, nil
}
