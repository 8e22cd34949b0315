package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// Quote is the routing backend's estimate of output for a prospective
// swap. Immutable, valid only for the instant it was fetched; no
// execution at the quoted price is guaranteed.
type Quote struct {
	FromAsset Asset
	ToAsset   Asset
	AmountIn  *big.Int
	AmountOut *big.Int
	Route     json.RawMessage // opaque route metadata from the backend
	FetchedAt time.Time
}

// Age returns how long ago the quote was fetched.
func (q *Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}
