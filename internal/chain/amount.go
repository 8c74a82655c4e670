package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-supplied amount string into base units for
// the token's declared precision. Rejects non-numeric input, zero and
// negative values, and more fractional digits than the token supports.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount.String())
	}

	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", s, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits renders a base-unit integer as a whole-token decimal string.
func FormatUnits(units *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(units, 0).Shift(-int32(decimals)).String()
}
