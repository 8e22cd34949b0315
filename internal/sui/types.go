package sui

// Execution status values reported by the ledger.
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailure = "failure"
)

// ExecuteResult is the ledger's acknowledgement of a submitted
// transaction. The digest identifies the transaction from submission
// onward; confirmation arrives separately.
type ExecuteResult struct {
	Digest string
	Status string // empty until effects are certified
	Error  string
}

// TransactionStatus is the confirmed execution state of a transaction.
type TransactionStatus struct {
	Digest     string
	Status     string // ExecutionStatusSuccess | ExecutionStatusFailure, empty while pending
	Error      string
	Checkpoint int64
}

// Pending reports whether the ledger has not yet certified effects.
func (s *TransactionStatus) Pending() bool {
	return s == nil || s.Status == ""
}

// EffectsNotification is one transaction-effects event from the
// WebSocket subscription stream.
type EffectsNotification struct {
	Digest string
	Status string
	Error  string
}

// EffectsFilter selects which transactions a subscription observes.
type EffectsFilter struct {
	FromAddress string
}
