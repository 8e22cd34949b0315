package selection

import (
	"errors"
	"math/big"
	"testing"

	"sui-swap-engine/internal/domain"
)

const (
	suiType  = domain.Asset("0x2::sui::SUI")
	usdcType = domain.Asset("0xdba::usdc::USDC")
)

func coin(id string, balance int64, asset domain.Asset) domain.Coin {
	return domain.Coin{
		ObjectID: id,
		Owner:    "0xowner",
		CoinType: asset,
		Balance:  big.NewInt(balance),
	}
}

func TestSelectCoins_TwoCoinsWithChange(t *testing.T) {
	available := []domain.Coin{
		coin("c1", 100, suiType),
		coin("c2", 50, suiType),
	}

	plan, err := SelectCoins(available, suiType, big.NewInt(120))
	if err != nil {
		t.Fatalf("SelectCoins failed: %v", err)
	}

	if len(plan.Selected) != 2 {
		t.Fatalf("Expected 2 coins selected, got %d", len(plan.Selected))
	}
	if plan.Selected[0].ObjectID != "c1" || plan.Selected[1].ObjectID != "c2" {
		t.Errorf("Selection order mismatch: %s, %s",
			plan.Selected[0].ObjectID, plan.Selected[1].ObjectID)
	}
	if plan.TotalSelected.Int64() != 150 {
		t.Errorf("Expected total 150, got %s", plan.TotalSelected)
	}
	if plan.ChangeAmount.Int64() != 30 {
		t.Errorf("Expected change 30, got %s", plan.ChangeAmount)
	}
}

func TestSelectCoins_SingleCoinCovers(t *testing.T) {
	available := []domain.Coin{coin("c1", 200, suiType)}

	plan, err := SelectCoins(available, suiType, big.NewInt(120))
	if err != nil {
		t.Fatalf("SelectCoins failed: %v", err)
	}
	if len(plan.Selected) != 1 || plan.Selected[0].ObjectID != "c1" {
		t.Fatalf("Expected only c1 selected, got %v", plan.Selected)
	}
	if plan.ChangeAmount.Int64() != 80 {
		t.Errorf("Expected change 80, got %s", plan.ChangeAmount)
	}
}

func TestSelectCoins_ExactCover(t *testing.T) {
	available := []domain.Coin{
		coin("c1", 70, suiType),
		coin("c2", 50, suiType),
	}

	plan, err := SelectCoins(available, suiType, big.NewInt(120))
	if err != nil {
		t.Fatalf("SelectCoins failed: %v", err)
	}
	if plan.ChangeAmount.Sign() != 0 {
		t.Errorf("Expected zero change, got %s", plan.ChangeAmount)
	}
}

func TestSelectCoins_GreedyPrefixNotOptimal(t *testing.T) {
	// c3 alone would cover the amount, but the rule is a prefix scan in
	// listing order, so c1+c2+c3 must all be taken.
	available := []domain.Coin{
		coin("c1", 10, suiType),
		coin("c2", 20, suiType),
		coin("c3", 120, suiType),
	}

	plan, err := SelectCoins(available, suiType, big.NewInt(120))
	if err != nil {
		t.Fatalf("SelectCoins failed: %v", err)
	}
	if len(plan.Selected) != 3 {
		t.Fatalf("Expected 3 coins (prefix rule), got %d", len(plan.Selected))
	}
	if plan.TotalSelected.Int64() != 150 {
		t.Errorf("Expected total 150, got %s", plan.TotalSelected)
	}
}

func TestSelectCoins_StopsAtThreshold(t *testing.T) {
	// Trailing coins beyond the stopping index must not be selected.
	available := []domain.Coin{
		coin("c1", 100, suiType),
		coin("c2", 50, suiType),
		coin("c3", 999, suiType),
	}

	plan, err := SelectCoins(available, suiType, big.NewInt(120))
	if err != nil {
		t.Fatalf("SelectCoins failed: %v", err)
	}
	if len(plan.Selected) != 2 {
		t.Fatalf("Expected 2 coins, got %d", len(plan.Selected))
	}
}

func TestSelectCoins_FiltersByAsset(t *testing.T) {
	available := []domain.Coin{
		coin("u1", 1000, usdcType),
		coin("c1", 100, suiType),
		coin("u2", 1000, usdcType),
		coin("c2", 50, suiType),
	}

	plan, err := SelectCoins(available, suiType, big.NewInt(120))
	if err != nil {
		t.Fatalf("SelectCoins failed: %v", err)
	}
	for _, c := range plan.Selected {
		if c.CoinType != suiType {
			t.Errorf("Selected foreign asset coin %s", c.ObjectID)
		}
	}
	if len(plan.Selected) != 2 {
		t.Errorf("Expected 2 SUI coins, got %d", len(plan.Selected))
	}
}

func TestSelectCoins_Insufficient(t *testing.T) {
	available := []domain.Coin{
		coin("c1", 100, suiType),
		coin("c2", 19, suiType),
	}

	_, err := SelectCoins(available, suiType, big.NewInt(120))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSelectCoins_NoCoins(t *testing.T) {
	_, err := SelectCoins(nil, suiType, big.NewInt(1))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSelectCoins_InvalidAmount(t *testing.T) {
	available := []domain.Coin{coin("c1", 100, suiType)}
	for _, amt := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := SelectCoins(available, suiType, amt)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("SelectCoins(%v): expected ErrInvalidInput, got %v", amt, err)
		}
	}
}
