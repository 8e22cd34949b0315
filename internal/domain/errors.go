package domain

import "errors"

// Error kinds of the swap pipeline. Callers classify failures with
// errors.Is; packages wrap these with context via fmt.Errorf and %w.
var (
	// ErrInvalidInput marks a malformed or out-of-range request,
	// rejected before any I/O is issued.
	ErrInvalidInput = errors.New("invalid input")

	// ErrQuoteUnavailable is returned when the routing backend reports
	// no viable route or returns malformed data.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrInsufficientBalance is returned when the owner's balance
	// objects cannot cover the requested input amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPlanMismatch marks a stale plan/quote pairing. Always a caller
	// bug, never retried.
	ErrPlanMismatch = errors.New("plan mismatch")

	// ErrSignatureRejected is returned when the signer declines a draft.
	ErrSignatureRejected = errors.New("signature rejected")

	// ErrSubmissionFailed is returned when the ledger reports execution
	// failure for a submitted transaction.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrNetwork marks a transport-level failure of an external call.
	ErrNetwork = errors.New("network error")
)
