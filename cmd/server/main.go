// Package main runs the swap engine HTTP service: quote proxying,
// draft building, and the full quote → build → sign → submit lifecycle
// against a Sui fullnode.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sui-swap-engine/internal/lifecycle"
	"sui-swap-engine/internal/quote"
	"sui-swap-engine/internal/router"
	"sui-swap-engine/internal/server"
	"sui-swap-engine/internal/signer"
	"sui-swap-engine/internal/storage"
	"sui-swap-engine/internal/storage/memory"
	"sui-swap-engine/internal/storage/migrations"
	pgstore "sui-swap-engine/internal/storage/postgres"
	"sui-swap-engine/internal/sui"
	"sui-swap-engine/internal/sui/stub"
	"sui-swap-engine/internal/tokens"
)

// ledgerClient is the fullnode surface the service needs, satisfied by
// both the HTTP client and the stub ledger.
type ledgerClient interface {
	lifecycle.CoinLister
	signer.Ledger
}

func main() {
	// Load .env if present; real environment wins.
	godotenv.Load()

	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	routerURL := flag.String("router-url", os.Getenv("ROUTER_URL"), "Routing backend base URL")
	routerAPIKey := flag.String("router-api-key", os.Getenv("ROUTER_API_KEY"), "Routing backend API key")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SUI_RPC_ENDPOINT"), "Sui RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SUI_WS_ENDPOINT"), "Sui WebSocket endpoint for effects notifications (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for swap records")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	offline := flag.Bool("offline", false, "Use the in-memory stub ledger instead of a fullnode")
	signerSeed := flag.String("signer-seed", os.Getenv("SIGNER_SEED"), "Hex-encoded ed25519 seed for the local signer")
	quoteMaxAge := flag.Duration("quote-max-age", 10*time.Second, "Maximum quote age at submit before re-fetching")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *routerURL == "" {
		logger.Fatal("--router-url is required")
	}
	if !*offline && *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required (use --offline for the stub ledger)")
	}
	if *signerSeed == "" {
		logger.Fatal("--signer-seed is required")
	}

	seed, err := hex.DecodeString(strings.TrimPrefix(*signerSeed, "0x"))
	if err != nil || len(seed) != ed25519.SeedSize {
		logger.Fatalf("signer seed must be %d hex-encoded bytes", ed25519.SeedSize)
	}
	key := ed25519.NewKeyFromSeed(seed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ledger ledgerClient
	if *offline {
		logger.Println("Running against the in-memory stub ledger")
		ledger = stub.NewLedger()
	} else {
		ledger = sui.NewHTTPClient(*rpcEndpoint)
	}

	var records storage.SwapRecordStore
	closeStore := func() {}
	if *useMemory || *postgresDSN == "" {
		logger.Println("Using in-memory swap record store")
		records = memory.NewSwapRecordStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		records = pgstore.NewSwapRecordStore(pool)
		closeStore = pool.Close
	}
	defer closeStore()

	var routerOpts []router.ClientOption
	if *routerAPIKey != "" {
		routerOpts = append(routerOpts, router.WithAPIKey(*routerAPIKey))
	}
	routerClient := router.NewClient(*routerURL, routerOpts...)
	quotes := quote.NewService(routerClient)
	registry := tokens.NewRegistry(tokens.NewHTTPSource(*routerURL, nil))

	localSigner, err := signer.NewLocal(key, ledger, &signer.LocalOptions{Logger: logger})
	if err != nil {
		logger.Fatalf("Failed to create signer: %v", err)
	}
	logger.Printf("Signing as %s", localSigner.Address())

	// Optional effects stream for the signer address. Confirmation is
	// driven by polling; the stream gives earlier visibility in logs.
	if *wsEndpoint != "" && !*offline {
		wsClient, err := sui.NewWSClient(ctx, *wsEndpoint, nil)
		if err != nil {
			logger.Fatalf("Failed to connect websocket: %v", err)
		}
		defer wsClient.Close()

		effects, err := wsClient.SubscribeTransactionEffects(ctx, sui.EffectsFilter{
			FromAddress: localSigner.Address(),
		})
		if err != nil {
			logger.Fatalf("Failed to subscribe to effects: %v", err)
		}
		go func() {
			for n := range effects {
				if n.Error != "" {
					logger.Printf("Effects: digest=%s status=%s error=%s", n.Digest, n.Status, n.Error)
					continue
				}
				logger.Printf("Effects: digest=%s status=%s", n.Digest, n.Status)
			}
		}()
	}

	machine, err := lifecycle.NewMachine(lifecycle.Options{
		Quotes:      quotes,
		Coins:       ledger,
		Signer:      localSigner,
		Records:     records,
		QuoteMaxAge: *quoteMaxAge,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create lifecycle machine: %v", err)
	}
	go machine.Run(ctx)

	api := server.New(server.Options{
		Quotes:       quotes,
		Coins:        ledger,
		Tokens:       registry,
		Machine:      machine,
		DefaultOwner: localSigner.Address(),
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: api.Routes(),
	}

	go func() {
		logger.Printf("Starting HTTP server on %s", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}
	cancel()
	logger.Println("Shutdown complete")
}

// envOr returns the environment value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
