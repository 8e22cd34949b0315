// Package lifecycle runs the swap state machine: quote, build, sign,
// submit, confirm. A single dispatch goroutine owns all state; user
// commands and asynchronous results are serialized through it, and
// every result carries the sequence number of the request that spawned
// it so stale results are dropped.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/observability"
	"sui-swap-engine/internal/selection"
	"sui-swap-engine/internal/signer"
	"sui-swap-engine/internal/txbuild"
)

// DefaultQuoteMaxAge is how old a quote may be at Submit time before
// it is silently re-fetched.
const DefaultQuoteMaxAge = 10 * time.Second

// QuoteFetcher prices a pair. *quote.Service is the production
// implementation.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, from, to domain.Asset, amountIn *big.Int) (*domain.Quote, error)
}

// CoinLister enumerates an owner's coins in ledger order.
type CoinLister interface {
	GetCoins(ctx context.Context, owner string, coinType domain.Asset) ([]domain.Coin, error)
}

// RecordStore persists terminal swap outcomes. Persistence failures
// are logged and never affect the machine.
type RecordStore interface {
	Insert(ctx context.Context, record *domain.SwapRecord) error
}

// Options configures a Machine.
type Options struct {
	Quotes QuoteFetcher
	Coins  CoinLister
	Signer signer.Signer

	// Records is optional; nil disables outcome persistence.
	Records RecordStore

	// QuoteMaxAge bounds quote staleness at Submit. Default 10s.
	QuoteMaxAge time.Duration

	// Logger defaults to log.Default().
	Logger *log.Logger

	// Now is overridable for tests.
	Now func() time.Time
}

// command kinds flowing into the dispatch loop.
type command struct {
	edit     *domain.SwapRequest
	submit   bool
	reset    bool
	snapshot bool
	reply    chan cmdReply
}

type cmdReply struct {
	state domain.SwapState
	err   error
}

// eventKind discriminates asynchronous results.
type eventKind int

const (
	evQuote eventKind = iota
	evBuilt
	evSubmitted
	evOutcome
)

// event is one asynchronous result, tagged with the sequence of the
// request that spawned it.
type event struct {
	seq       uint64
	kind      eventKind
	quote     *domain.Quote
	draft     *domain.TransactionDraft
	requestID string
	outcome   *signer.Outcome
	err       error
}

// Machine is the swap lifecycle state machine. All exported methods
// are safe for concurrent use; they block only for the dispatch
// loop's acknowledgement, never for I/O.
type Machine struct {
	quotes  QuoteFetcher
	coins   CoinLister
	signer  signer.Signer
	records RecordStore

	quoteMaxAge time.Duration
	logger      *log.Logger
	now         func() time.Time

	cmds    chan command
	events  chan event
	updates chan domain.SwapState

	// Dispatch-loop-owned state. Never touched outside run.
	state         domain.SwapState
	pendingSubmit bool
	cancelActive  context.CancelFunc
}

// NewMachine creates a lifecycle machine. Run must be called before
// any command is issued.
func NewMachine(opts Options) (*Machine, error) {
	if opts.Quotes == nil || opts.Coins == nil || opts.Signer == nil {
		return nil, errors.New("lifecycle: quotes, coins and signer are required")
	}

	m := &Machine{
		quotes:      opts.Quotes,
		coins:       opts.Coins,
		signer:      opts.Signer,
		records:     opts.Records,
		quoteMaxAge: opts.QuoteMaxAge,
		logger:      opts.Logger,
		now:         opts.Now,
		cmds:        make(chan command),
		events:      make(chan event, 16),
		updates:     make(chan domain.SwapState, 64),
		state:       domain.SwapState{Phase: domain.PhaseIdle},
	}
	if m.quoteMaxAge <= 0 {
		m.quoteMaxAge = DefaultQuoteMaxAge
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Run owns the machine state until ctx is cancelled. It must be
// running for Edit, Submit, Reset and Snapshot to make progress.
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if m.cancelActive != nil {
				m.cancelActive()
			}
			return
		case cmd := <-m.cmds:
			m.handleCommand(ctx, cmd)
		case ev := <-m.events:
			m.handleEvent(ctx, ev)
		}
	}
}

// Edit starts a new request sequence. Any in-flight work for the
// previous sequence is superseded; its results will be dropped when
// they arrive. The request is validated before any I/O.
func (m *Machine) Edit(ctx context.Context, req domain.SwapRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return m.send(ctx, command{edit: &req})
}

// Submit commits the current quote: select coins, build the draft,
// sign and submit. Valid only from the quote-ready phase. A quote
// older than the configured maximum is re-fetched first, transparently.
func (m *Machine) Submit(ctx context.Context) error {
	return m.send(ctx, command{submit: true})
}

// Reset returns the machine to idle, superseding any in-flight work.
func (m *Machine) Reset(ctx context.Context) error {
	return m.send(ctx, command{reset: true})
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot(ctx context.Context) (domain.SwapState, error) {
	reply := make(chan cmdReply, 1)
	select {
	case m.cmds <- command{snapshot: true, reply: reply}:
	case <-ctx.Done():
		return domain.SwapState{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.state, nil
	case <-ctx.Done():
		return domain.SwapState{}, ctx.Err()
	}
}

// Updates returns the state change feed. Slow consumers lose oldest
// snapshots; Snapshot always has the truth.
func (m *Machine) Updates() <-chan domain.SwapState {
	return m.updates
}

func (m *Machine) send(ctx context.Context, cmd command) error {
	reply := make(chan cmdReply, 1)
	cmd.reply = reply
	select {
	case m.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case r := <-reply:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleCommand processes one user command on the dispatch goroutine.
func (m *Machine) handleCommand(ctx context.Context, cmd command) {
	switch {
	case cmd.snapshot:
		cmd.reply <- cmdReply{state: m.state}

	case cmd.edit != nil:
		m.supersede()
		prev := m.state.Phase
		m.state = domain.SwapState{
			Phase:   domain.PhaseQuoting,
			Seq:     m.state.Seq + 1,
			Request: cmd.edit,
		}
		m.pendingSubmit = false
		m.transitioned(prev)
		m.spawnQuote(cmd.edit)
		cmd.reply <- cmdReply{}

	case cmd.reset:
		m.supersede()
		prev := m.state.Phase
		m.state = domain.SwapState{
			Phase: domain.PhaseIdle,
			Seq:   m.state.Seq + 1,
		}
		m.pendingSubmit = false
		m.transitioned(prev)
		cmd.reply <- cmdReply{}

	case cmd.submit:
		if m.state.Phase != domain.PhaseQuoteReady {
			cmd.reply <- cmdReply{err: fmt.Errorf("%w: cannot submit from phase %s",
				domain.ErrInvalidInput, m.state.Phase)}
			return
		}
		if m.now().Sub(m.state.Quote.FetchedAt) > m.quoteMaxAge {
			// Stale quote: refresh before committing, then continue
			// the submit automatically.
			prev := m.state.Phase
			m.state.Phase = domain.PhaseQuoting
			m.state.Quote = nil
			m.pendingSubmit = true
			m.transitioned(prev)
			m.spawnQuote(m.state.Request)
			cmd.reply <- cmdReply{}
			return
		}
		prev := m.state.Phase
		m.state.Phase = domain.PhaseBuilding
		m.transitioned(prev)
		m.spawnBuildAndSubmit(m.state.Request, m.state.Quote)
		cmd.reply <- cmdReply{}
	}
}

// handleEvent processes one asynchronous result. Results from a
// superseded sequence are dropped without touching state.
func (m *Machine) handleEvent(ctx context.Context, ev event) {
	if ev.seq != m.state.Seq {
		if ev.kind == evQuote {
			observability.RecordQuoteDropped()
		}
		m.logger.Printf("[lifecycle] dropping stale result (seq %d, current %d)", ev.seq, m.state.Seq)
		return
	}

	prev := m.state.Phase

	switch ev.kind {
	case evQuote:
		if ev.err != nil {
			m.state.Phase = domain.PhaseFailed
			m.state.Err = ev.err
			m.pendingSubmit = false
			m.transitioned(prev)
			return
		}
		m.state.Quote = ev.quote
		if m.pendingSubmit {
			m.pendingSubmit = false
			m.state.Phase = domain.PhaseBuilding
			m.transitioned(prev)
			m.spawnBuildAndSubmit(m.state.Request, ev.quote)
			return
		}
		m.state.Phase = domain.PhaseQuoteReady
		m.transitioned(prev)

	case evBuilt:
		if ev.err != nil {
			m.state.Phase = domain.PhaseFailed
			m.state.Err = ev.err
			m.transitioned(prev)
			return
		}
		m.state.Draft = ev.draft
		m.state.Phase = domain.PhaseAwaitingSignature
		m.transitioned(prev)

	case evSubmitted:
		m.state.RequestID = ev.requestID
		m.state.Phase = domain.PhaseSubmitted
		m.transitioned(prev)

	case evOutcome:
		m.finishOutcome(ctx, prev, ev.outcome)
	}
}

// finishOutcome applies the signer's terminal result.
func (m *Machine) finishOutcome(ctx context.Context, prev domain.Phase, o *signer.Outcome) {
	switch o.Status {
	case signer.StatusRejected:
		// Nothing reached the ledger; the user simply declined. The
		// request and quote stay editable.
		m.logger.Printf("[lifecycle] seq %d signature rejected, returning to idle", m.state.Seq)
		m.state.Phase = domain.PhaseIdle
		m.state.Draft = nil
		m.state.RequestID = ""
		m.transitioned(prev)

	case signer.StatusSucceeded:
		m.state.Phase = domain.PhaseSucceeded
		m.state.Digest = o.Digest
		m.transitioned(prev)
		m.persistOutcome(ctx, o, "")

	default:
		m.state.Phase = domain.PhaseFailed
		m.state.Digest = o.Digest
		m.state.Err = o.Err
		m.transitioned(prev)
		reason := "submission_failed"
		if o.Err != nil {
			reason = o.Err.Error()
		}
		m.persistOutcome(ctx, o, reason)
	}
}

// persistOutcome writes the terminal record. Best effort only.
func (m *Machine) persistOutcome(ctx context.Context, o *signer.Outcome, failReason string) {
	if m.records == nil {
		return
	}

	req := m.state.Request
	draft := m.state.Draft
	status := domain.SwapRecordSucceeded
	if o.Status != signer.StatusSucceeded {
		status = domain.SwapRecordFailed
	}

	rec := &domain.SwapRecord{
		Owner:       req.Owner,
		FromAsset:   req.FromAsset.String(),
		ToAsset:     req.ToAsset.String(),
		AmountIn:    domain.AmountString(req.AmountIn),
		RequestID:   m.state.RequestID,
		Digest:      o.Digest,
		Status:      status,
		FailReason:  failReason,
		CompletedAt: m.now().UnixMilli(),
	}
	if draft != nil {
		if call := draft.SwapCall(); call != nil {
			rec.MinOut = domain.AmountString(call.MinOut)
		}
	}

	if err := m.records.Insert(ctx, rec); err != nil {
		m.logger.Printf("[lifecycle] failed to persist swap record: %v", err)
	}
}

// supersede cancels the in-flight sequence, if any.
func (m *Machine) supersede() {
	if m.cancelActive != nil {
		m.cancelActive()
		m.cancelActive = nil
	}
}

// spawnQuote fetches a quote for the current sequence.
func (m *Machine) spawnQuote(req *domain.SwapRequest) {
	seq := m.state.Seq
	ctx := m.activeContext()

	go func() {
		q, err := m.quotes.FetchQuote(ctx, req.FromAsset, req.ToAsset, req.AmountIn)
		m.post(event{seq: seq, kind: evQuote, quote: q, err: err})
	}()
}

// spawnBuildAndSubmit runs the commit pipeline for the current
// sequence: list coins, select, build, sign, submit, await outcome.
func (m *Machine) spawnBuildAndSubmit(req *domain.SwapRequest, quote *domain.Quote) {
	seq := m.state.Seq
	ctx := m.activeContext()

	go func() {
		coins, err := m.coins.GetCoins(ctx, req.Owner, req.FromAsset)
		if err != nil {
			m.post(event{seq: seq, kind: evBuilt, err: fmt.Errorf("list coins: %w", err)})
			return
		}

		plan, err := selection.SelectCoins(coins, req.FromAsset, req.AmountIn)
		if err != nil {
			m.post(event{seq: seq, kind: evBuilt, err: err})
			return
		}

		draft, err := txbuild.Build(plan, req, quote)
		if err != nil {
			m.post(event{seq: seq, kind: evBuilt, err: err})
			return
		}
		m.post(event{seq: seq, kind: evBuilt, draft: draft})

		requestID, outcomes, err := m.signer.Submit(ctx, draft)
		if err != nil {
			m.post(event{seq: seq, kind: evOutcome, outcome: &signer.Outcome{
				Status: signer.StatusFailed,
				Err:    err,
			}})
			return
		}

		o, ok := <-outcomes
		if !ok {
			o = signer.Outcome{
				Status: signer.StatusFailed,
				Err:    fmt.Errorf("%w: signer closed without outcome", domain.ErrSubmissionFailed),
			}
		}
		// A rejection never reached the ledger, so the submitted
		// phase is skipped entirely.
		if o.Status != signer.StatusRejected {
			m.post(event{seq: seq, kind: evSubmitted, requestID: requestID})
		}
		m.post(event{seq: seq, kind: evOutcome, outcome: &o})
	}()
}

// activeContext replaces the cancellable context for the current
// sequence. Called on the dispatch goroutine only.
func (m *Machine) activeContext() context.Context {
	if m.cancelActive != nil {
		m.cancelActive()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelActive = cancel
	return ctx
}

// post delivers an event to the dispatch loop.
func (m *Machine) post(ev event) {
	m.events <- ev
}

// transitioned records the phase change and publishes a snapshot.
func (m *Machine) transitioned(from domain.Phase) {
	observability.RecordTransition(string(from), string(m.state.Phase))
	observability.UpdateActiveSequence(m.state.Seq)

	// Drop-oldest so a stalled consumer never blocks dispatch
	for {
		select {
		case m.updates <- m.state:
			return
		default:
			select {
			case <-m.updates:
			default:
			}
		}
	}
}
