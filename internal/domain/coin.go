package domain

import "math/big"

// Coin is one discrete, individually addressable holding of an asset
// (a balance object). The ledger owns these; the engine only reads and
// references them. Multiple coins of one asset may coexist for an owner
// and are consolidated by a merge instruction when no single coin
// covers a required amount.
type Coin struct {
	ObjectID string   // opaque object handle
	Owner    string   // owning address
	CoinType Asset    // asset held
	Balance  *big.Int // balance in smallest units
}

// SelectionPlan is the output of coin selection: the ordered coins to
// consume, their total, and the change to return to the owner.
// Consumed by the transaction builder and discarded after one use.
type SelectionPlan struct {
	Selected      []Coin
	TotalSelected *big.Int // invariant: TotalSelected >= requested amount
	ChangeAmount  *big.Int // TotalSelected - requested amount, >= 0
}
