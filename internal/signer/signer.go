// Package signer turns transaction drafts into signed, submitted
// transactions and reports their final outcome.
package signer

import (
	"context"

	"sui-swap-engine/internal/domain"
)

// Status is the terminal disposition of a submitted draft.
type Status string

const (
	// StatusSucceeded means the transaction executed successfully.
	StatusSucceeded Status = "succeeded"
	// StatusRejected means the signer declined to sign. Nothing was
	// submitted to the ledger.
	StatusRejected Status = "rejected"
	// StatusFailed means the transaction was submitted but did not
	// execute successfully, or submission itself failed.
	StatusFailed Status = "failed"
)

// Outcome is the single result delivered for one Submit call.
type Outcome struct {
	Status Status
	Digest string
	Err    error
}

// Signer signs and submits a draft. Submit returns immediately with a
// request identifier; exactly one Outcome is later delivered on the
// returned channel, which is then closed. An error from Submit itself
// means the draft never reached the signing step.
type Signer interface {
	Submit(ctx context.Context, draft *domain.TransactionDraft) (requestID string, outcome <-chan Outcome, err error)
}
