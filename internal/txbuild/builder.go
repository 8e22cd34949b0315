// Package txbuild assembles unsigned transaction drafts from a
// selection plan and a quote. Assembly is a pure function: identical
// inputs always yield an identical instruction sequence.
package txbuild

import (
	"fmt"
	"math/big"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/slippage"
)

// Build produces the draft for a request given its selection plan and
// quote, deriving the minimum acceptable output from the request's
// slippage tolerance. The plan and quote must belong to this request;
// a mismatch signals a stale pairing and returns ErrPlanMismatch.
func Build(plan *domain.SelectionPlan, req *domain.SwapRequest, quote *domain.Quote) (*domain.TransactionDraft, error) {
	if plan == nil || req == nil || quote == nil {
		return nil, fmt.Errorf("%w: missing plan, request or quote", domain.ErrPlanMismatch)
	}
	if quote.FromAsset != req.FromAsset || quote.ToAsset != req.ToAsset {
		return nil, fmt.Errorf("%w: quote is for %s->%s, request is for %s->%s",
			domain.ErrPlanMismatch, quote.FromAsset, quote.ToAsset, req.FromAsset, req.ToAsset)
	}
	if plan.TotalSelected == nil || req.AmountIn == nil || plan.TotalSelected.Cmp(req.AmountIn) < 0 {
		return nil, fmt.Errorf("%w: plan covers %s, request needs %s",
			domain.ErrPlanMismatch, domain.AmountString(plan.TotalSelected), domain.AmountString(req.AmountIn))
	}

	minOut, err := slippage.MinOut(quote.AmountOut, req.SlippageBps)
	if err != nil {
		return nil, err
	}

	return assemble(plan, req.Owner, req.FromAsset, req.ToAsset, req.AmountIn, minOut)
}

// BuildWithMinOut produces the draft with an explicit minimum output,
// bypassing slippage derivation. Used by callers that already hold a
// minOut, such as the POST /swap surface.
func BuildWithMinOut(plan *domain.SelectionPlan, sender string, from, to domain.Asset, amountIn, minOut *big.Int) (*domain.TransactionDraft, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: missing plan", domain.ErrPlanMismatch)
	}
	if plan.TotalSelected == nil || amountIn == nil || plan.TotalSelected.Cmp(amountIn) < 0 {
		return nil, fmt.Errorf("%w: plan covers %s, need %s",
			domain.ErrPlanMismatch, domain.AmountString(plan.TotalSelected), domain.AmountString(amountIn))
	}
	if minOut == nil || minOut.Sign() < 0 {
		return nil, fmt.Errorf("%w: minimum output must be non-negative", domain.ErrInvalidInput)
	}
	return assemble(plan, sender, from, to, amountIn, minOut)
}

// assemble emits the fixed instruction order: (a) one merge when more
// than one coin was selected, (b) one split when change remains,
// (c) exactly one swap call consuming the resulting coin.
func assemble(plan *domain.SelectionPlan, sender string, from, to domain.Asset, amountIn, minOut *big.Int) (*domain.TransactionDraft, error) {
	if len(plan.Selected) == 0 {
		return nil, fmt.Errorf("%w: empty selection", domain.ErrPlanMismatch)
	}

	input := plan.Selected[0].ObjectID
	var instructions []domain.Instruction

	if len(plan.Selected) > 1 {
		merged := make([]string, 0, len(plan.Selected)-1)
		for _, c := range plan.Selected[1:] {
			merged = append(merged, c.ObjectID)
		}
		instructions = append(instructions, domain.Instruction{
			Kind:  domain.InstructionMerge,
			Merge: &domain.MergeInstruction{Into: input, From: merged},
		})
	}

	if plan.ChangeAmount != nil && plan.ChangeAmount.Sign() > 0 {
		instructions = append(instructions, domain.Instruction{
			Kind:  domain.InstructionSplit,
			Split: &domain.SplitInstruction{From: input, Amount: new(big.Int).Set(amountIn)},
		})
	}

	instructions = append(instructions, domain.Instruction{
		Kind: domain.InstructionSwapCall,
		Swap: &domain.SwapCallInstruction{
			Input:     input,
			FromAsset: from,
			ToAsset:   to,
			AmountIn:  new(big.Int).Set(amountIn),
			MinOut:    new(big.Int).Set(minOut),
		},
	})

	return &domain.TransactionDraft{
		Sender:       sender,
		Instructions: instructions,
	}, nil
}
