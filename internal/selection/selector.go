// Package selection plans which of an owner's coins cover a required
// input amount.
package selection

import (
	"fmt"
	"math/big"

	"sui-swap-engine/internal/domain"
)

// SelectCoins scans available coins in their given order, keeping those
// matching asset until the running total reaches amountIn. The listing
// order comes from the ledger and is never re-sorted here, so the
// result is a greedy prefix of the matching coins, reproducible for a
// given listing. Returns ErrInsufficientBalance when the matching coins
// are exhausted first.
func SelectCoins(available []domain.Coin, asset domain.Asset, amountIn *big.Int) (*domain.SelectionPlan, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: required amount must be greater than 0", domain.ErrInvalidInput)
	}

	total := new(big.Int)
	var selected []domain.Coin
	for _, coin := range available {
		if coin.CoinType != asset {
			continue
		}
		if coin.Balance == nil || coin.Balance.Sign() <= 0 {
			continue
		}
		selected = append(selected, coin)
		total.Add(total, coin.Balance)
		if total.Cmp(amountIn) >= 0 {
			return &domain.SelectionPlan{
				Selected:      selected,
				TotalSelected: total,
				ChangeAmount:  new(big.Int).Sub(total, amountIn),
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: have %s of %s, need %s",
		domain.ErrInsufficientBalance, total, asset, amountIn)
}
