// Package quote turns routing backend answers into validated quotes.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/observability"
	"sui-swap-engine/internal/router"
)

// RouteSource prices an asset pair for a given input amount.
// *router.Client is the production implementation.
type RouteSource interface {
	GetRoute(ctx context.Context, from, to domain.Asset, amountIn *big.Int) (*router.Route, error)
}

// Service fetches expected-output quotes. Constraint violations are
// rejected before any network call; exactly one outbound request is
// issued per successful validation.
type Service struct {
	source RouteSource
	now    func() time.Time
}

// NewService creates a quote service backed by source.
func NewService(source RouteSource) *Service {
	return &Service{
		source: source,
		now:    time.Now,
	}
}

// FetchQuote requests the expected output for swapping amountIn of from
// into to. The returned quote is valid only for the instant it was
// fetched; callers needing freshness must re-fetch.
func (s *Service) FetchQuote(ctx context.Context, from, to domain.Asset, amountIn *big.Int) (*domain.Quote, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: both assets are required", domain.ErrInvalidInput)
	}
	if from == to {
		return nil, fmt.Errorf("%w: cannot quote %s against itself", domain.ErrInvalidInput, from)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", domain.ErrInvalidInput)
	}

	observability.RecordQuoteRequest()
	start := s.now()

	route, err := s.source.GetRoute(ctx, from, to, amountIn)
	observability.RecordQuoteLatency(s.now().Sub(start).Seconds())
	if err != nil {
		observability.RecordQuoteError(errorKind(err))
		return nil, err
	}

	return &domain.Quote{
		FromAsset: from,
		ToAsset:   to,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: route.AmountOut,
		Route:     route.Raw,
		FetchedAt: s.now(),
	}, nil
}

// errorKind maps a quote failure to a metrics label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuoteUnavailable):
		return "quote_unavailable"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "other"
	}
}
