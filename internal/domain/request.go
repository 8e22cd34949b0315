package domain

import (
	"fmt"
	"math/big"
)

// Basis-point bounds for slippage tolerance. 10000 bps = 100%.
const (
	MinSlippageBps = 0
	MaxSlippageBps = 10000
)

// SwapRequest is the user's intent: swap AmountIn of FromAsset into
// ToAsset, accepting at most SlippageBps drop from the quoted output.
// A fresh request is constructed on every user edit.
type SwapRequest struct {
	Owner       string
	FromAsset   Asset
	ToAsset     Asset
	AmountIn    *big.Int
	SlippageBps int
}

// Validate checks the request before any I/O is issued.
func (r *SwapRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidInput)
	}
	if r.FromAsset == "" {
		return fmt.Errorf("%w: from asset is required", ErrInvalidInput)
	}
	if r.ToAsset == "" {
		return fmt.Errorf("%w: to asset is required", ErrInvalidInput)
	}
	if r.FromAsset == r.ToAsset {
		return fmt.Errorf("%w: from and to assets must differ", ErrInvalidInput)
	}
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidInput)
	}
	if r.SlippageBps < MinSlippageBps || r.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: slippage %d bps outside [%d,%d]",
			ErrInvalidInput, r.SlippageBps, MinSlippageBps, MaxSlippageBps)
	}
	return nil
}
