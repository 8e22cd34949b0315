// Package main is a one-shot swap CLI: fetch a quote, select coins,
// build the transaction draft, and optionally sign and submit it.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/quote"
	"sui-swap-engine/internal/router"
	"sui-swap-engine/internal/selection"
	"sui-swap-engine/internal/signer"
	"sui-swap-engine/internal/slippage"
	"sui-swap-engine/internal/sui"
	"sui-swap-engine/internal/tokens"
	"sui-swap-engine/internal/txbuild"
)

func main() {
	godotenv.Load()

	routerURL := flag.String("router-url", os.Getenv("ROUTER_URL"), "Routing backend base URL")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SUI_RPC_ENDPOINT"), "Sui RPC HTTP endpoint")
	owner := flag.String("owner", os.Getenv("SWAP_OWNER"), "Owner address (defaults to the signer address with --submit)")
	from := flag.String("from", "", "Input token symbol or coin type")
	to := flag.String("to", "", "Output token symbol or coin type")
	amount := flag.String("amount", "", "Input amount in base units")
	slippageBps := flag.Int("slippage-bps", 50, "Slippage tolerance in basis points")
	submit := flag.Bool("submit", false, "Sign and submit the draft instead of printing it")
	signerSeed := flag.String("signer-seed", os.Getenv("SIGNER_SEED"), "Hex-encoded ed25519 seed, required with --submit")
	timeout := flag.Duration("timeout", 90*time.Second, "Overall timeout")

	flag.Parse()

	logger := log.New(os.Stderr, "[swap] ", log.LstdFlags)

	if *routerURL == "" {
		logger.Fatal("--router-url is required")
	}
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *from == "" || *to == "" || *amount == "" {
		logger.Fatal("--from, --to and --amount are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ledger := sui.NewHTTPClient(*rpcEndpoint)
	registry := tokens.NewRegistry(tokens.NewHTTPSource(*routerURL, nil))
	quotes := quote.NewService(router.NewClient(*routerURL))

	var localSigner *signer.Local
	if *submit {
		if *signerSeed == "" {
			logger.Fatal("--signer-seed is required with --submit")
		}
		seed, err := hex.DecodeString(strings.TrimPrefix(*signerSeed, "0x"))
		if err != nil || len(seed) != ed25519.SeedSize {
			logger.Fatalf("signer seed must be %d hex-encoded bytes", ed25519.SeedSize)
		}
		localSigner, err = signer.NewLocal(ed25519.NewKeyFromSeed(seed), ledger, &signer.LocalOptions{Logger: logger})
		if err != nil {
			logger.Fatalf("Failed to create signer: %v", err)
		}
		if *owner == "" {
			*owner = localSigner.Address()
		}
	}
	if *owner == "" {
		logger.Fatal("--owner is required without --submit")
	}

	fromAsset, err := registry.Resolve(ctx, *from)
	if err != nil {
		logger.Fatalf("Resolve %q: %v", *from, err)
	}
	toAsset, err := registry.Resolve(ctx, *to)
	if err != nil {
		logger.Fatalf("Resolve %q: %v", *to, err)
	}
	amountIn, err := domain.ParseAmount(*amount)
	if err != nil {
		logger.Fatalf("Invalid amount %q", *amount)
	}

	req := domain.SwapRequest{
		Owner:       *owner,
		FromAsset:   fromAsset,
		ToAsset:     toAsset,
		AmountIn:    amountIn,
		SlippageBps: *slippageBps,
	}
	if err := req.Validate(); err != nil {
		logger.Fatalf("Invalid request: %v", err)
	}

	q, err := quotes.FetchQuote(ctx, fromAsset, toAsset, amountIn)
	if err != nil {
		logger.Fatalf("Quote failed: %v", err)
	}
	minOut, err := slippage.MinOut(q.AmountOut, *slippageBps)
	if err != nil {
		logger.Fatalf("Slippage: %v", err)
	}
	logger.Printf("Quoted %s -> %s out (min %s at %d bps)",
		domain.AmountString(amountIn), domain.AmountString(q.AmountOut),
		domain.AmountString(minOut), *slippageBps)

	coins, err := ledger.GetCoins(ctx, *owner, fromAsset)
	if err != nil {
		logger.Fatalf("List coins: %v", err)
	}
	plan, err := selection.SelectCoins(coins, fromAsset, amountIn)
	if err != nil {
		logger.Fatalf("Select coins: %v", err)
	}
	logger.Printf("Selected %d coin(s), change %s",
		len(plan.Selected), domain.AmountString(plan.ChangeAmount))

	draft, err := txbuild.Build(plan, &req, q)
	if err != nil {
		logger.Fatalf("Build draft: %v", err)
	}

	if !*submit {
		printDraft(draft)
		return
	}

	requestID, outcomes, err := localSigner.Submit(ctx, draft)
	if err != nil {
		logger.Fatalf("Submit: %v", err)
	}
	logger.Printf("Submitted request %s, awaiting outcome...", requestID)

	select {
	case o := <-outcomes:
		switch o.Status {
		case signer.StatusSucceeded:
			fmt.Printf("succeeded digest=%s\n", o.Digest)
		default:
			logger.Fatalf("Swap %s: %v", o.Status, o.Err)
		}
	case <-ctx.Done():
		logger.Fatalf("Timed out awaiting outcome: %v", ctx.Err())
	}
}

// printDraft renders the unsigned draft as JSON on stdout.
func printDraft(draft *domain.TransactionDraft) {
	type instruction struct {
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

	out := struct {
		Sender       string        `json:"sender"`
		Instructions []instruction `json:"instructions"`
	}{Sender: draft.Sender}

	for _, ins := range draft.Instructions {
		dto := instruction{Kind: string(ins.Kind)}
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

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
