package lifecycle

import (
	"context"
	"crypto/ed25519"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/signer"
	"sui-swap-engine/internal/sui/stub"
)

const (
	suiType  = domain.Asset("0x2::sui::SUI")
	usdcType = domain.Asset("0xdba::usdc::USDC")
	owner    = "0xowner"
)

// fakeClock is a manually advanced clock shared by machine and stubs.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixedQuotes answers every fetch immediately with a fixed output.
type fixedQuotes struct {
	out   int64
	err   error
	clock *fakeClock
	calls atomic.Int64
}

func (q *fixedQuotes) FetchQuote(_ context.Context, from, to domain.Asset, amountIn *big.Int) (*domain.Quote, error) {
	q.calls.Add(1)
	if q.err != nil {
		return nil, q.err
	}
	fetchedAt := time.Now()
	if q.clock != nil {
		fetchedAt = q.clock.Now()
	}
	return &domain.Quote{
		FromAsset: from,
		ToAsset:   to,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: big.NewInt(q.out),
		FetchedAt: fetchedAt,
	}, nil
}

// quoteResult releases one scripted fetch.
type quoteResult struct {
	q   *domain.Quote
	err error
}

// scriptedQuotes blocks each fetch until the test releases it,
// preserving call order.
type scriptedQuotes struct {
	mu    sync.Mutex
	calls []chan quoteResult
}

func (s *scriptedQuotes) FetchQuote(ctx context.Context, from, to domain.Asset, amountIn *big.Int) (*domain.Quote, error) {
	ch := make(chan quoteResult, 1)
	s.mu.Lock()
	s.calls = append(s.calls, ch)
	s.mu.Unlock()

	select {
	case r := <-ch:
		return r.q, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptedQuotes) release(t *testing.T, i int, r quoteResult) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.calls)
		s.mu.Unlock()
		if n > i {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("fetch %d never started", i)
		}
		time.Sleep(time.Millisecond)
	}
	s.mu.Lock()
	ch := s.calls[i]
	s.mu.Unlock()
	ch <- r
}

// memRecords collects inserted swap records.
type memRecords struct {
	mu      sync.Mutex
	records []*domain.SwapRecord
}

func (r *memRecords) Insert(_ context.Context, rec *domain.SwapRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecords) all() []*domain.SwapRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.SwapRecord(nil), r.records...)
}

func testRequest() domain.SwapRequest {
	return domain.SwapRequest{
		Owner:       owner,
		FromAsset:   suiType,
		ToAsset:     usdcType,
		AmountIn:    big.NewInt(120),
		SlippageBps: 50,
	}
}

func fundedLedger(t *testing.T) *stub.Ledger {
	t.Helper()
	ledger := stub.NewLedger()
	ledger.AddCoin(domain.Coin{ObjectID: "0xc1", Owner: owner, CoinType: suiType, Balance: big.NewInt(100)})
	ledger.AddCoin(domain.Coin{ObjectID: "0xc2", Owner: owner, CoinType: suiType, Balance: big.NewInt(50)})
	return ledger
}

func localSigner(t *testing.T, ledger *stub.Ledger, opts *signer.LocalOptions) *signer.Local {
	t.Helper()
	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s, err := signer.NewLocal(key, ledger, opts)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return s
}

// startMachine builds a running machine and returns it with a cleanup.
func startMachine(t *testing.T, opts Options) *Machine {
	t.Helper()
	m, err := NewMachine(opts)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m
}

// waitPhase polls until the machine settles in the wanted phase.
func waitPhase(t *testing.T, m *Machine, want domain.Phase) domain.SwapState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := m.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if st.Phase == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("machine never reached %s, stuck in %s (err %v)", want, st.Phase, st.Err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEditProducesQuote(t *testing.T) {
	ledger := fundedLedger(t)
	m := startMachine(t, Options{
		Quotes: &fixedQuotes{out: 1000},
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseQuoteReady)
	if st.Quote == nil || st.Quote.AmountOut.Int64() != 1000 {
		t.Fatalf("expected quote with amount out 1000, got %+v", st.Quote)
	}
	if st.Seq != 1 {
		t.Errorf("expected seq 1, got %d", st.Seq)
	}
}

func TestEditInvalidRequest(t *testing.T) {
	ledger := fundedLedger(t)
	quotes := &fixedQuotes{out: 1000}
	m := startMachine(t, Options{
		Quotes: quotes,
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	req := testRequest()
	req.ToAsset = req.FromAsset
	if err := m.Edit(context.Background(), req); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if quotes.calls.Load() != 0 {
		t.Errorf("invalid edit must not fetch, got %d calls", quotes.calls.Load())
	}

	st, _ := m.Snapshot(context.Background())
	if st.Phase != domain.PhaseIdle {
		t.Errorf("invalid edit must leave machine idle, got %s", st.Phase)
	}
}

func TestSubmitHappyPath(t *testing.T) {
	ledger := fundedLedger(t)
	records := &memRecords{}
	m := startMachine(t, Options{
		Quotes:  &fixedQuotes{out: 1000},
		Coins:   ledger,
		Signer:  localSigner(t, ledger, nil),
		Records: records,
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitPhase(t, m, domain.PhaseQuoteReady)

	if err := m.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseSucceeded)
	if st.Digest == "" {
		t.Error("expected a transaction digest")
	}
	if st.RequestID == "" {
		t.Error("expected a request ID")
	}
	if st.Draft == nil {
		t.Fatal("expected the draft to be retained")
	}
	call := st.Draft.SwapCall()
	if call == nil {
		t.Fatal("expected a swap call in the draft")
	}
	// 1000 quoted minus 50 bps
	if call.MinOut.Int64() != 995 {
		t.Errorf("expected min out 995, got %s", call.MinOut)
	}
	if ledger.Submissions() != 1 {
		t.Errorf("expected exactly one submission, got %d", ledger.Submissions())
	}

	recs := records.all()
	if len(recs) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(recs))
	}
	if recs[0].Status != domain.SwapRecordSucceeded {
		t.Errorf("expected succeeded record, got %s", recs[0].Status)
	}
	if recs[0].Digest != st.Digest {
		t.Errorf("record digest %s does not match state %s", recs[0].Digest, st.Digest)
	}
	if recs[0].MinOut != "995" {
		t.Errorf("expected recorded min out 995, got %s", recs[0].MinOut)
	}
}

func TestSubmitFromIdle(t *testing.T) {
	ledger := fundedLedger(t)
	m := startMachine(t, Options{
		Quotes: &fixedQuotes{out: 1000},
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	if err := m.Submit(context.Background()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput from idle submit, got %v", err)
	}
}

func TestRapidEditsLastWins(t *testing.T) {
	ledger := fundedLedger(t)
	quotes := &scriptedQuotes{}
	m := startMachine(t, Options{
		Quotes: quotes,
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	reqA := testRequest()
	if err := m.Edit(context.Background(), reqA); err != nil {
		t.Fatalf("Edit A: %v", err)
	}

	reqB := testRequest()
	reqB.AmountIn = big.NewInt(300)
	if err := m.Edit(context.Background(), reqB); err != nil {
		t.Fatalf("Edit B: %v", err)
	}

	// The first request's quote arrives late; it belongs to a
	// superseded sequence and must be dropped without failing.
	quotes.release(t, 0, quoteResult{q: &domain.Quote{
		FromAsset: suiType, ToAsset: usdcType,
		AmountIn: big.NewInt(120), AmountOut: big.NewInt(111),
		FetchedAt: time.Now(),
	}})

	quotes.release(t, 1, quoteResult{q: &domain.Quote{
		FromAsset: suiType, ToAsset: usdcType,
		AmountIn: big.NewInt(300), AmountOut: big.NewInt(222),
		FetchedAt: time.Now(),
	}})

	st := waitPhase(t, m, domain.PhaseQuoteReady)
	if st.Quote.AmountOut.Int64() != 222 {
		t.Fatalf("expected the second quote (222), got %s", st.Quote.AmountOut)
	}
	if st.Seq != 2 {
		t.Errorf("expected seq 2, got %d", st.Seq)
	}
	if st.Err != nil {
		t.Errorf("stale quote must not surface an error, got %v", st.Err)
	}
}

func TestQuoteFailure(t *testing.T) {
	ledger := fundedLedger(t)
	m := startMachine(t, Options{
		Quotes: &fixedQuotes{err: domain.ErrQuoteUnavailable},
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseFailed)
	if !errors.Is(st.Err, domain.ErrQuoteUnavailable) {
		t.Errorf("expected ErrQuoteUnavailable, got %v", st.Err)
	}
}

func TestInsufficientBalance(t *testing.T) {
	ledger := stub.NewLedger()
	ledger.AddCoin(domain.Coin{ObjectID: "0xc1", Owner: owner, CoinType: suiType, Balance: big.NewInt(10)})

	m := startMachine(t, Options{
		Quotes: &fixedQuotes{out: 1000},
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitPhase(t, m, domain.PhaseQuoteReady)

	if err := m.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseFailed)
	if !errors.Is(st.Err, domain.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", st.Err)
	}
	if ledger.Submissions() != 0 {
		t.Errorf("nothing may be submitted on selection failure, got %d", ledger.Submissions())
	}
}

func TestRejectionReturnsToIdle(t *testing.T) {
	ledger := fundedLedger(t)
	records := &memRecords{}
	m := startMachine(t, Options{
		Quotes: &fixedQuotes{out: 1000},
		Coins:  ledger,
		Signer: localSigner(t, ledger, &signer.LocalOptions{
			Approve: func(*domain.TransactionDraft) error {
				return errors.New("user declined")
			},
		}),
		Records: records,
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitPhase(t, m, domain.PhaseQuoteReady)

	if err := m.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseIdle)
	if st.Err != nil {
		t.Errorf("rejection is not a failure, got err %v", st.Err)
	}
	if st.Request == nil {
		t.Error("request must survive a rejection for re-editing")
	}
	if st.Draft != nil {
		t.Error("draft must be cleared on rejection")
	}
	if ledger.Submissions() != 0 {
		t.Errorf("rejected draft must not reach the ledger, got %d", ledger.Submissions())
	}
	if len(records.all()) != 0 {
		t.Errorf("rejection must not be persisted, got %d records", len(records.all()))
	}
}

func TestStaleQuoteRefreshedOnSubmit(t *testing.T) {
	clock := newFakeClock()
	ledger := fundedLedger(t)
	quotes := &fixedQuotes{out: 1000, clock: clock}
	m := startMachine(t, Options{
		Quotes:      quotes,
		Coins:       ledger,
		Signer:      localSigner(t, ledger, nil),
		QuoteMaxAge: 10 * time.Second,
		Now:         clock.Now,
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitPhase(t, m, domain.PhaseQuoteReady)

	clock.Advance(30 * time.Second)

	if err := m.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseSucceeded)
	if quotes.calls.Load() != 2 {
		t.Errorf("stale quote must be re-fetched before submit, got %d fetches", quotes.calls.Load())
	}
	if st.Digest == "" {
		t.Error("expected a digest after refreshed submit")
	}
}

func TestFailedExecutionPersisted(t *testing.T) {
	ledger := fundedLedger(t)
	ledger.ExecuteStatus = "failure"
	records := &memRecords{}
	m := startMachine(t, Options{
		Quotes:  &fixedQuotes{out: 1000},
		Coins:   ledger,
		Signer:  localSigner(t, ledger, nil),
		Records: records,
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitPhase(t, m, domain.PhaseQuoteReady)

	if err := m.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseFailed)
	if !errors.Is(st.Err, domain.ErrSubmissionFailed) {
		t.Errorf("expected ErrSubmissionFailed, got %v", st.Err)
	}

	recs := records.all()
	if len(recs) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(recs))
	}
	if recs[0].Status != domain.SwapRecordFailed {
		t.Errorf("expected failed record, got %s", recs[0].Status)
	}
}

func TestReset(t *testing.T) {
	ledger := fundedLedger(t)
	m := startMachine(t, Options{
		Quotes: &fixedQuotes{out: 1000},
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitPhase(t, m, domain.PhaseQuoteReady)

	if err := m.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	st := waitPhase(t, m, domain.PhaseIdle)
	if st.Request != nil || st.Quote != nil {
		t.Error("reset must clear request and quote")
	}
	if st.Seq != 2 {
		t.Errorf("reset must advance the sequence, got %d", st.Seq)
	}
}

func TestUpdatesFeed(t *testing.T) {
	ledger := fundedLedger(t)
	m := startMachine(t, Options{
		Quotes: &fixedQuotes{out: 1000},
		Coins:  ledger,
		Signer: localSigner(t, ledger, nil),
	})

	if err := m.Edit(context.Background(), testRequest()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitPhase(t, m, domain.PhaseQuoteReady)

	seen := make(map[domain.Phase]bool)
	for {
		select {
		case st := <-m.Updates():
			seen[st.Phase] = true
			if st.Phase == domain.PhaseQuoteReady {
				if !seen[domain.PhaseQuoting] {
					t.Error("expected a quoting snapshot before quote_ready")
				}
				return
			}
		case <-time.After(time.Second):
			t.Fatal("updates feed never delivered quote_ready")
		}
	}
}
