package slippage

import (
	"errors"
	"math/big"
	"testing"

	"sui-swap-engine/internal/domain"
)

func TestMinOut_FiftyBps(t *testing.T) {
	// 0.5% tolerance on 1000 leaves 995.
	out, err := MinOut(big.NewInt(1000), 50)
	if err != nil {
		t.Fatalf("MinOut failed: %v", err)
	}
	if out.Int64() != 995 {
		t.Errorf("Expected 995, got %s", out)
	}
}

func TestMinOut_Bounds(t *testing.T) {
	quoted := domain.MustAmount("123456789123456789")

	out, err := MinOut(quoted, 0)
	if err != nil {
		t.Fatalf("MinOut(0 bps) failed: %v", err)
	}
	if out.Cmp(quoted) != 0 {
		t.Errorf("Zero tolerance must return the quoted amount, got %s", out)
	}

	out, err = MinOut(quoted, 10000)
	if err != nil {
		t.Fatalf("MinOut(10000 bps) failed: %v", err)
	}
	if out.Sign() != 0 {
		t.Errorf("Full tolerance must return 0, got %s", out)
	}
}

func TestMinOut_FloorRounding(t *testing.T) {
	// floor(999 * 1 / 10000) == 0, so a 1 bps tolerance on a small
	// amount changes nothing.
	out, err := MinOut(big.NewInt(999), 1)
	if err != nil {
		t.Fatalf("MinOut failed: %v", err)
	}
	if out.Int64() != 999 {
		t.Errorf("Expected 999, got %s", out)
	}
}

func TestMinOut_Monotonic(t *testing.T) {
	quoted := big.NewInt(1000003)
	prev := new(big.Int).Add(quoted, big.NewInt(1))
	for bps := 0; bps <= 10000; bps += 37 {
		out, err := MinOut(quoted, bps)
		if err != nil {
			t.Fatalf("MinOut(%d) failed: %v", bps, err)
		}
		if out.Cmp(prev) > 0 {
			t.Fatalf("MinOut not monotonic at %d bps: %s > %s", bps, out, prev)
		}
		prev = out
	}
}

func TestMinOut_InvalidTolerance(t *testing.T) {
	for _, bps := range []int{-1, 10001} {
		_, err := MinOut(big.NewInt(1000), bps)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("MinOut(%d): expected ErrInvalidInput, got %v", bps, err)
		}
	}
}

func TestMinOut_NilQuoted(t *testing.T) {
	_, err := MinOut(nil, 50)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
