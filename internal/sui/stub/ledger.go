// Package stub provides an in-memory ledger implementing the fullnode
// client surface for testing.
package stub

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/sui"
)

// Ledger implements the fullnode read and submit surface against
// in-memory state. Coins keep their insertion order, matching the
// deterministic enumeration of a real node.
type Ledger struct {
	mu sync.Mutex

	// coins per owner, in insertion order
	coins map[string][]domain.Coin

	// executed transactions by digest
	executed map[string]*sui.TransactionStatus

	// ExecuteErr, when set, fails the next submission.
	ExecuteErr error

	// ExecuteStatus overrides the status reported for executed
	// transactions. Defaults to success.
	ExecuteStatus string

	submissions int
}

// NewLedger creates an empty stub ledger.
func NewLedger() *Ledger {
	return &Ledger{
		coins:    make(map[string][]domain.Coin),
		executed: make(map[string]*sui.TransactionStatus),
	}
}

// AddCoin appends a coin to an owner's holdings.
func (l *Ledger) AddCoin(coin domain.Coin) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.coins[coin.Owner] = append(l.coins[coin.Owner], coin)
}

// GetCoins returns the owner's coins of coinType in insertion order.
func (l *Ledger) GetCoins(_ context.Context, owner string, coinType domain.Asset) ([]domain.Coin, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Coin
	for _, c := range l.coins[owner] {
		if c.CoinType == coinType {
			out = append(out, c)
		}
	}
	return out, nil
}

// ExecuteTransactionBlock records a submission and assigns a digest
// derived from the transaction bytes.
func (l *Ledger) ExecuteTransactionBlock(_ context.Context, txBytes string, _ []string) (*sui.ExecuteResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ExecuteErr != nil {
		err := l.ExecuteErr
		l.ExecuteErr = nil
		return nil, err
	}

	l.submissions++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", l.submissions, txBytes)))
	digest := base58.Encode(sum[:])

	status := l.ExecuteStatus
	if status == "" {
		status = sui.ExecutionStatusSuccess
	}

	l.executed[digest] = &sui.TransactionStatus{
		Digest: digest,
		Status: status,
	}

	return &sui.ExecuteResult{Digest: digest, Status: status}, nil
}

// GetTransactionBlock returns the recorded status for a digest, or a
// pending status for unknown digests.
func (l *Ledger) GetTransactionBlock(_ context.Context, digest string) (*sui.TransactionStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st, ok := l.executed[digest]; ok {
		copied := *st
		return &copied, nil
	}
	return &sui.TransactionStatus{Digest: digest}, nil
}

// Submissions returns how many transactions were executed.
func (l *Ledger) Submissions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submissions
}
