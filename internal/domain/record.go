package domain

// SwapRecord is the persisted trace of one submitted swap.
// Corresponds to swap_records table in PostgreSQL. Amounts are stored
// as base-10 strings to keep them exact end to end.
type SwapRecord struct {
	ID          int64  // BIGSERIAL primary key
	Owner       string // sender address
	FromAsset   string
	ToAsset     string
	AmountIn    string
	MinOut      string
	RequestID   string // submission request ID from the signer
	Digest      string // transaction digest, empty until confirmed
	Status      string // "succeeded" | "failed"
	FailReason  string // error kind on failure, empty on success
	SubmittedAt int64  // Unix timestamp in milliseconds
	CompletedAt int64  // Unix timestamp in milliseconds
	CreatedAt   int64  // record creation timestamp (ms)
}

// Swap record status constants
const (
	SwapRecordSucceeded = "succeeded"
	SwapRecordFailed    = "failed"
)
