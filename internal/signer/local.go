package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/observability"
	"sui-swap-engine/internal/sui"
)

// ed25519 scheme flag in Sui addresses and serialized signatures.
const ed25519Flag = 0x00

// Ledger is the fullnode surface the local signer submits through.
type Ledger interface {
	ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*sui.ExecuteResult, error)
	GetTransactionBlock(ctx context.Context, digest string) (*sui.TransactionStatus, error)
}

// ApproveFunc inspects a draft before signing. A non-nil error rejects
// the draft without submitting anything.
type ApproveFunc func(draft *domain.TransactionDraft) error

// LocalOptions configures the local signer.
type LocalOptions struct {
	// Approve is consulted before signing. Nil approves everything.
	Approve ApproveFunc
	// PollInterval between confirmation polls. Default 2s.
	PollInterval time.Duration
	// ConfirmTimeout bounds the wait for confirmation. Default 60s.
	ConfirmTimeout time.Duration
	// Logger for submission events. Default log.Default().
	Logger *log.Logger
}

// Local signs drafts with an in-process ed25519 key and submits them
// to the ledger. It stands in for a wallet in server deployments.
type Local struct {
	key     ed25519.PrivateKey
	address string
	ledger  Ledger

	approve        ApproveFunc
	pollInterval   time.Duration
	confirmTimeout time.Duration
	logger         *log.Logger
}

var _ Signer = (*Local)(nil)

// NewLocal creates a local signer for key. The key's public half must
// be a valid curve point.
func NewLocal(key ed25519.PrivateKey, ledger Ledger, opts *LocalOptions) (*Local, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size %d", len(key))
	}
	pub := key.Public().(ed25519.PublicKey)
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("public key is not on curve: %w", err)
	}

	s := &Local{
		key:            key,
		address:        AddressFromPublicKey(pub),
		ledger:         ledger,
		pollInterval:   2 * time.Second,
		confirmTimeout: 60 * time.Second,
		logger:         log.Default(),
	}
	if opts != nil {
		if opts.Approve != nil {
			s.approve = opts.Approve
		}
		if opts.PollInterval > 0 {
			s.pollInterval = opts.PollInterval
		}
		if opts.ConfirmTimeout > 0 {
			s.confirmTimeout = opts.ConfirmTimeout
		}
		if opts.Logger != nil {
			s.logger = opts.Logger
		}
	}
	return s, nil
}

// AddressFromPublicKey derives the Sui address for an ed25519 key:
// blake2b-256 over the scheme flag byte followed by the public key.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{ed25519Flag})
	h.Write(pub)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// Address returns the signer's ledger address.
func (s *Local) Address() string {
	return s.address
}

// Submit serializes, approves, signs and submits the draft. The
// request identifier is derived from the transaction bytes and is
// stable for the draft; the outcome arrives asynchronously.
func (s *Local) Submit(ctx context.Context, draft *domain.TransactionDraft) (string, <-chan Outcome, error) {
	if draft == nil || len(draft.Instructions) == 0 {
		return "", nil, fmt.Errorf("%w: empty draft", domain.ErrInvalidInput)
	}

	txBytes, err := encodeDraft(draft)
	if err != nil {
		return "", nil, fmt.Errorf("encode draft: %w", err)
	}

	digest := blake2b.Sum256(txBytes)
	requestID := base58.Encode(digest[:])

	ch := make(chan Outcome, 1)
	go s.run(ctx, draft, txBytes, digest[:], requestID, ch)

	return requestID, ch, nil
}

// run drives one submission to its outcome. Exactly one Outcome is
// sent before the channel closes.
func (s *Local) run(ctx context.Context, draft *domain.TransactionDraft, txBytes, digest []byte, requestID string, ch chan Outcome) {
	defer close(ch)

	deliver := func(o Outcome) {
		observability.RecordSubmission(string(o.Status))
		ch <- o
	}

	if s.approve != nil {
		if err := s.approve(draft); err != nil {
			s.logger.Printf("[signer] request %s rejected: %v", requestID, err)
			deliver(Outcome{
				Status: StatusRejected,
				Err:    fmt.Errorf("%w: %v", domain.ErrSignatureRejected, err),
			})
			return
		}
	}

	sig := ed25519.Sign(s.key, digest)
	pub := s.key.Public().(ed25519.PublicKey)

	// Serialized signature: flag || signature || public key
	serialized := make([]byte, 0, 1+len(sig)+len(pub))
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)

	res, err := s.ledger.ExecuteTransactionBlock(ctx,
		base64.StdEncoding.EncodeToString(txBytes),
		[]string{base64.StdEncoding.EncodeToString(serialized)},
	)
	if err != nil {
		s.logger.Printf("[signer] request %s submission failed: %v", requestID, err)
		deliver(Outcome{
			Status: StatusFailed,
			Err:    fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err),
		})
		return
	}

	s.logger.Printf("[signer] request %s submitted as %s", requestID, res.Digest)

	switch res.Status {
	case sui.ExecutionStatusSuccess:
		deliver(Outcome{Status: StatusSucceeded, Digest: res.Digest})
		return
	case sui.ExecutionStatusFailure:
		deliver(Outcome{
			Status: StatusFailed,
			Digest: res.Digest,
			Err:    fmt.Errorf("%w: %s", domain.ErrSubmissionFailed, res.Error),
		})
		return
	}

	deliver(s.awaitConfirmation(ctx, res.Digest))
}

// awaitConfirmation polls the ledger until effects are certified or
// the timeout expires.
func (s *Local) awaitConfirmation(ctx context.Context, txDigest string) Outcome {
	deadline := time.Now().Add(s.confirmTimeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{
				Status: StatusFailed,
				Digest: txDigest,
				Err:    fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, ctx.Err()),
			}
		case <-ticker.C:
		}

		status, err := s.ledger.GetTransactionBlock(ctx, txDigest)
		if err == nil && !status.Pending() {
			if status.Status == sui.ExecutionStatusSuccess {
				return Outcome{Status: StatusSucceeded, Digest: txDigest}
			}
			return Outcome{
				Status: StatusFailed,
				Digest: txDigest,
				Err:    fmt.Errorf("%w: %s", domain.ErrSubmissionFailed, status.Error),
			}
		}

		if time.Now().After(deadline) {
			return Outcome{
				Status: StatusFailed,
				Digest: txDigest,
				Err:    fmt.Errorf("%w: confirmation timeout", domain.ErrSubmissionFailed),
			}
		}
	}
}

// draftEnvelope is the canonical serialization signed and submitted
// for a draft. Field order is fixed by the struct definition.
type draftEnvelope struct {
	Sender       string            `json:"sender"`
	Instructions []instructionWire `json:"instructions"`
}

type instructionWire struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// encodeDraft produces deterministic transaction bytes for a draft.
func encodeDraft(draft *domain.TransactionDraft) ([]byte, error) {
	env := draftEnvelope{Sender: draft.Sender}
	for _, ins := range draft.Instructions {
		var payload interface{}
		switch ins.Kind {
		case domain.InstructionMerge:
			payload = ins.Merge
		case domain.InstructionSplit:
			payload = ins.Split
		case domain.InstructionSwapCall:
			payload = ins.Swap
		default:
			return nil, fmt.Errorf("unknown instruction kind %q", ins.Kind)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Instructions = append(env.Instructions, instructionWire{
			Kind:    string(ins.Kind),
			Payload: raw,
		})
	}
	return json.Marshal(env)
}
