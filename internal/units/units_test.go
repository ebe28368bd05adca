package units

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"ticket-bridge/internal/status"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected string
	}{
		{"Whole ether", "1", "1000000000000000000"},
		{"Fraction", "0.2", "200000000000000000"},
		{"Smallest unit", "0.000000000000000001", "1"},
		{"Truncates below one wei", "0.0000000000000000019", "1"},
		{"Never rounds up", "0.9999999999999999999", "999999999999999999"},
		{"Zero", "0", "0"},
		{"Surrounding spaces", "  1.5 ", "1500000000000000000"},
		{"Large amount", "123456789012345678901234567890", "123456789012345678901234567890000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ToBaseUnits(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.String())
		})
	}
}

func TestToBaseUnits_InvalidAmount(t *testing.T) {
	for _, amount := range []string{"", "   ", "abc", "1.2.3", "-0.1", "-1", "0x10", "ten"} {
		t.Run(amount, func(t *testing.T) {
			v, err := ToBaseUnits(amount)
			assert.Nil(t, v)
			assert.ErrorIs(t, err, status.ErrInvalidAmount)
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "0", FromBaseUnits(nil))
	assert.Equal(t, "0", FromBaseUnits(big.NewInt(0)))
	assert.Equal(t, "0.2", FromBaseUnits(big.NewInt(200000000000000000)))
	assert.Equal(t, "0.000000000000000001", FromBaseUnits(big.NewInt(1)))
	assert.Equal(t, "3", FromBaseUnits(new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))))
}

func TestRoundTripWithinOneBaseUnit(t *testing.T) {
	oneUnit := decimal.New(1, -Decimals)

	for _, amount := range []string{
		"0", "1", "0.1", "0.2", "0.3", "2.5", "0.123456789123456789",
		"0.1234567891234567891", "99999999.999999999999999999", "1e-20", "7e3",
	} {
		t.Run(amount, func(t *testing.T) {
			v, err := ToBaseUnits(amount)
			require.NoError(t, err)

			back, err := decimal.NewFromString(FromBaseUnits(v))
			require.NoError(t, err)

			original, err := decimal.NewFromString(amount)
			require.NoError(t, err)

			assert.True(t, original.Sub(back).Abs().LessThan(oneUnit),
				"round trip of %s drifted to %s", amount, back)
		})
	}
}

func TestParseBaseUnits(t *testing.T) {
	v, err := ParseBaseUnits("200000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "200000000000000000", v.String())

	v, err = ParseBaseUnits("")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())

	_, err = ParseBaseUnits("-5")
	assert.ErrorIs(t, err, status.ErrInvalidAmount)

	_, err = ParseBaseUnits("0.5")
	assert.ErrorIs(t, err, status.ErrInvalidAmount)
}

func TestToBaseUnits_ExtremeExponents(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    string
		wantErr bool
	}{
		{"Huge exponent", "1e100000000", "", true},
		{"Near max int32 exponent", "1e2147483000", "", true},
		{"Just past uint256 digits", "1e60", "", true},
		{"Largest digit count", "1e59", "1" + strings.Repeat("0", 77), false},
		{"Tiny exponent", "1e-100000000", "0", false},
		{"Near min int32 exponent", "9e-2147483000", "0", false},
		{"Zero with huge exponent", "0e100000000", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			v, err := ToBaseUnits(tt.amount)
			assert.Less(t, time.Since(start), 100*time.Millisecond)

			if tt.wantErr {
				assert.Nil(t, v)
				assert.ErrorIs(t, err, status.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}
