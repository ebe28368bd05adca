// Package units converts between human-entered ether amounts and the integer wei
// amounts the ticket contract works with.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"ticket-bridge/internal/status"

	"github.com/shopspring/decimal"
)

// Decimals is the number of base units per whole currency unit, as a power of ten.
const Decimals = 18

// MaxDigits is the number of decimal digits in the largest uint256.
const MaxDigits = 78

// ToBaseUnits parses a decimal amount such as "0.25" and returns it in base units.
// Digits below one base unit are truncated.
func ToBaseUnits(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount: %w", status.ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", amount, status.ErrInvalidAmount)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q: %w", amount, status.ErrInvalidAmount)
	}
	if d.IsZero() {
		return new(big.Int), nil
	}

	// Bound the integer part from the exponent before materializing it.
	// Inputs like "1e100000000" would otherwise expand to hundreds of
	// megabits.
	intDigits := int64(d.NumDigits()) + int64(d.Exponent()) + Decimals
	if intDigits > MaxDigits {
		return nil, fmt.Errorf("amount %q is out of range: %w", amount, status.ErrInvalidAmount)
	}
	if intDigits <= 0 {
		return new(big.Int), nil
	}

	return d.Shift(Decimals).Truncate(0).BigInt(), nil
}

// FromBaseUnits renders a base unit amount as a decimal string without trailing zeros.
func FromBaseUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}

// ParseBaseUnits parses an integer base unit string, as stored in ticket records.
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("base units %q: %w", s, status.ErrInvalidAmount)
	}
	return v, nil
}
