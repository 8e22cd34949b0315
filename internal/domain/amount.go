package domain

import (
	"fmt"
	"math/big"
)

// Amounts are arbitrary-precision non-negative integers denominated in the
// asset's smallest unit. All arithmetic is exact; floating point never
// touches an amount.

// ParseAmount parses a base-10 integer string into an amount.
// Returns ErrInvalidInput for malformed or negative values.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: malformed amount %q", ErrInvalidInput, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidInput, s)
	}
	return n, nil
}

// MustAmount parses a base-10 integer string, panicking on failure.
// Intended for constants and test fixtures.
func MustAmount(s string) *big.Int {
	n, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return n
}

// AmountString renders an amount as a base-10 string, with nil treated
// as zero.
func AmountString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
