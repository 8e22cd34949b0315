// Package server exposes the swap engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/lifecycle"
	"sui-swap-engine/internal/observability"
	"sui-swap-engine/internal/selection"
	"sui-swap-engine/internal/tokens"
	"sui-swap-engine/internal/txbuild"
)

// QuoteFetcher prices a pair for GET /quote.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, from, to domain.Asset, amountIn *big.Int) (*domain.Quote, error)
}

// CoinLister enumerates an owner's coins for POST /swap.
type CoinLister interface {
	GetCoins(ctx context.Context, owner string, coinType domain.Asset) ([]domain.Coin, error)
}

// Options configures the API.
type Options struct {
	Quotes QuoteFetcher
	Coins  CoinLister
	Tokens *tokens.Registry

	// Machine is optional; when set /status reports its snapshot.
	Machine *lifecycle.Machine

	// DefaultOwner is used by POST /swap when the body omits owner.
	DefaultOwner string

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// API holds the HTTP handlers.
type API struct {
	quotes       QuoteFetcher
	coins        CoinLister
	tokens       *tokens.Registry
	machine      *lifecycle.Machine
	defaultOwner string
	logger       *log.Logger
	startedAt    time.Time
}

// New creates the API surface.
func New(opts Options) *API {
	a := &API{
		quotes:       opts.Quotes,
		coins:        opts.Coins,
		tokens:       opts.Tokens,
		machine:      opts.Machine,
		defaultOwner: opts.DefaultOwner,
		logger:       opts.Logger,
		startedAt:    time.Now(),
	}
	if a.logger == nil {
		a.logger = log.Default()
	}
	if a.tokens == nil {
		a.tokens = tokens.NewRegistry(nil)
	}
	return a
}

// Routes returns the route table, instrumented per endpoint.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/quote", a.instrument("/quote", a.handleQuote))
	mux.HandleFunc("/swap", a.instrument("/swap", a.handleSwap))
	mux.HandleFunc("/tokens", a.instrument("/tokens", a.handleTokens))
	mux.HandleFunc("/status", a.handleStatus)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	return mux
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		observability.RecordAPIRequest(endpoint, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
	}
}

// Response envelopes, matching the relay the engine replaces:
// successes wrap the payload in data, failures in error.

func writeData(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// statusFor maps an error to the HTTP status of the response.
// Validation problems are the caller's fault; everything else is an
// upstream failure.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// quoteDTO is the GET /quote payload. Amounts are strings to stay
// exact past JSON number precision.
type quoteDTO struct {
	FromAsset string `json:"from_asset"`
	ToAsset   string `json:"to_asset"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	FetchedAt string `json:"fetched_at"`
}

// handleQuote serves GET /quote?from=&to=&amount=.
func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	fromParam, toParam, amountParam := q.Get("from"), q.Get("to"), q.Get("amount")
	if fromParam == "" || toParam == "" || amountParam == "" {
		writeError(w, http.StatusBadRequest, "from, to and amount are required")
		return
	}

	from, err := a.tokens.Resolve(r.Context(), fromParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := a.tokens.Resolve(r.Context(), toParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := domain.ParseAmount(amountParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount %q", amountParam))
		return
	}

	quote, err := a.quotes.FetchQuote(r.Context(), from, to, amount)
	if err != nil {
		a.logger.Printf("[api] quote %s->%s failed: %v", from, to, err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeData(w, http.StatusOK, quoteDTO{
		FromAsset: quote.FromAsset.String(),
		ToAsset:   quote.ToAsset.String(),
		AmountIn:  domain.AmountString(quote.AmountIn),
		AmountOut: domain.AmountString(quote.AmountOut),
		FetchedAt: quote.FetchedAt.UTC().Format(time.RFC3339),
	})
}

// swapRequestBody is the POST /swap request.
type swapRequestBody struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	MinOut string `json:"min_out"`
	Owner  string `json:"owner,omitempty"`
}

// instructionDTO renders one draft instruction. Exactly the fields of
// the matching kind are populated.
type instructionDTO struct {
	Kind      string   `json:"kind"`
	Into      string   `json:"into,omitempty"`
	From      []string `json:"from,omitempty"`
	Source    string   `json:"source,omitempty"`
	Input     string   `json:"input,omitempty"`
	FromAsset string   `json:"from_asset,omitempty"`
	ToAsset   string   `json:"to_asset,omitempty"`
	Amount    string   `json:"amount,omitempty"`
	AmountIn  string   `json:"amount_in,omitempty"`
	MinOut    string   `json:"min_out,omitempty"`
}

// draftDTO is the POST /swap payload.
type draftDTO struct {
	Sender       string           `json:"sender"`
	Instructions []instructionDTO `json:"instructions"`
}

// handleSwap serves POST /swap: select coins and assemble an unsigned
// draft for the given explicit minimum output.
func (a *API) handleSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body swapRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.From == "" || body.To == "" || body.Amount == "" || body.MinOut == "" {
		writeError(w, http.StatusBadRequest, "from, to, amount and min_out are required")
		return
	}

	owner := body.Owner
	if owner == "" {
		owner = a.defaultOwner
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	from, err := a.tokens.Resolve(r.Context(), body.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := a.tokens.Resolve(r.Context(), body.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := domain.ParseAmount(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount %q", body.Amount))
		return
	}
	minOut, err := domain.ParseAmount(body.MinOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid min_out %q", body.MinOut))
		return
	}

	coins, err := a.coins.GetCoins(r.Context(), owner, from)
	if err != nil {
		a.logger.Printf("[api] list coins for %s failed: %v", owner, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan, err := selection.SelectCoins(coins, from, amount)
	if err != nil {
		a.logger.Printf("[api] selection for %s failed: %v", owner, err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	draft, err := txbuild.BuildWithMinOut(plan, owner, from, to, amount, minOut)
	if err != nil {
		a.logger.Printf("[api] build for %s failed: %v", owner, err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeData(w, http.StatusOK, draftToDTO(draft))
}

func draftToDTO(draft *domain.TransactionDraft) draftDTO {
	out := draftDTO{Sender: draft.Sender}
	for _, ins := range draft.Instructions {
		dto := instructionDTO{Kind: string(ins.Kind)}
		switch ins.Kind {
		case domain.InstructionMerge:
			dto.Into = ins.Merge.Into
			dto.From = ins.Merge.From
		case domain.InstructionSplit:
			dto.Source = ins.Split.From
			dto.Amount = domain.AmountString(ins.Split.Amount)
		case domain.InstructionSwapCall:
			dto.Input = ins.Swap.Input
			dto.FromAsset = ins.Swap.FromAsset.String()
			dto.ToAsset = ins.Swap.ToAsset.String()
			dto.AmountIn = domain.AmountString(ins.Swap.AmountIn)
			dto.MinOut = domain.AmountString(ins.Swap.MinOut)
		}
		out.Instructions = append(out.Instructions, dto)
	}
	return out
}

// handleTokens serves the cached coin list.
func (a *API) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeData(w, http.StatusOK, a.tokens.List(r.Context()))
}

// statusResponse is the /status payload.
type statusResponse struct {
	Status    string `json:"status"`
	UptimeSec int64  `json:"uptime_seconds"`
	Phase     string `json:"phase,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

// handleStatus reports process uptime and, when a lifecycle machine is
// attached, its current phase.
func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:    "running",
		UptimeSec: int64(time.Since(a.startedAt).Seconds()),
	}

	if a.machine != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if st, err := a.machine.Snapshot(ctx); err == nil {
			resp.Phase = string(st.Phase)
			resp.Seq = st.Seq
			resp.Digest = st.Digest
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
