package domain

// Phase is the lifecycle position of the current swap attempt.
type Phase string

// Lifecycle phases. Idle is initial; Succeeded and Failed are terminal
// for a given request sequence, recoverable only by a fresh user edit.
const (
	PhaseIdle              Phase = "idle"
	PhaseQuoting           Phase = "quoting"
	PhaseQuoteReady        Phase = "quote_ready"
	PhaseBuilding          Phase = "building"
	PhaseAwaitingSignature Phase = "awaiting_signature"
	PhaseSubmitted         Phase = "submitted"
	PhaseSucceeded         Phase = "succeeded"
	PhaseFailed            Phase = "failed"
)

// Terminal reports whether the phase ends a lifecycle run.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// SwapState is a snapshot of the lifecycle machine. Fields beyond Phase
// are populated progressively: Quote from QuoteReady, Draft from
// AwaitingSignature, RequestID from Submitted, Digest on success, Err
// on failure.
type SwapState struct {
	Phase     Phase
	Seq       uint64
	Request   *SwapRequest
	Quote     *Quote
	Draft     *TransactionDraft
	RequestID string
	Digest    string
	Err       error
}
