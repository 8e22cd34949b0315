// Package slippage derives the minimum acceptable swap output from a
// quoted output and a tolerance expressed in basis points.
package slippage

import (
	"fmt"
	"math/big"

	"sui-swap-engine/internal/domain"
)

var bpsDenominator = big.NewInt(domain.MaxSlippageBps)

// MinOut computes quoteOut - floor(quoteOut * bps / 10000) using exact
// integer arithmetic. Monotonic: a larger tolerance never increases the
// result. MinOut(x, 0) == x and MinOut(x, 10000) == 0.
func MinOut(quoteOut *big.Int, bps int) (*big.Int, error) {
	if quoteOut == nil || quoteOut.Sign() < 0 {
		return nil, fmt.Errorf("%w: quoted output must be non-negative", domain.ErrInvalidInput)
	}
	if bps < domain.MinSlippageBps || bps > domain.MaxSlippageBps {
		return nil, fmt.Errorf("%w: slippage %d bps outside [%d,%d]",
			domain.ErrInvalidInput, bps, domain.MinSlippageBps, domain.MaxSlippageBps)
	}

	discount := new(big.Int).Mul(quoteOut, big.NewInt(int64(bps)))
	discount.Quo(discount, bpsDenominator)
	return new(big.Int).Sub(quoteOut, discount), nil
}
