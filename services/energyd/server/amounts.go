package server

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// parseAmount accepts a base-10 integer in the token's smallest unit. Values
// must be positive and fit in 256 bits.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	if trimmed[0] == '-' || trimmed[0] == '+' {
		return nil, fmt.Errorf("invalid amount %q: sign not allowed", raw)
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if value.IsZero() {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value.ToBig(), nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
