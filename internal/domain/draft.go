package domain

import "math/big"

// InstructionKind discriminates draft instructions.
type InstructionKind string

// Instruction kinds, in the only order the builder may emit them:
// merge, then split, then exactly one swap call.
const (
	InstructionMerge    InstructionKind = "merge"
	InstructionSplit    InstructionKind = "split"
	InstructionSwapCall InstructionKind = "swap_call"
)

// MergeInstruction consolidates From coins into Into.
type MergeInstruction struct {
	Into string
	From []string
}

// SplitInstruction carves Amount out of From, leaving the remainder
// with the owner as change.
type SplitInstruction struct {
	From   string
	Amount *big.Int
}

// SwapCallInstruction invokes the router with a single input coin.
type SwapCallInstruction struct {
	Input     string // object ID of the consumed coin
	FromAsset Asset
	ToAsset   Asset
	AmountIn  *big.Int
	MinOut    *big.Int
}

// Instruction is a tagged union; exactly one payload matches Kind.
type Instruction struct {
	Kind  InstructionKind
	Merge *MergeInstruction
	Split *SplitInstruction
	Swap  *SwapCallInstruction
}

// TransactionDraft is an unsigned, ordered instruction sequence. Pure
// data: it has no side effects until handed to a signer/submitter.
type TransactionDraft struct {
	Sender       string
	Instructions []Instruction
}

// SwapCall returns the draft's swap call instruction, or nil if absent.
func (d *TransactionDraft) SwapCall() *SwapCallInstruction {
	for i := range d.Instructions {
		if d.Instructions[i].Kind == InstructionSwapCall {
			return d.Instructions[i].Swap
		}
	}
	return nil
}
