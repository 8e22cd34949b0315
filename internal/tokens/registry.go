// Package tokens resolves user-facing symbols to fully qualified coin
// types via a cached token registry.
package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"sui-swap-engine/internal/domain"
)

// DefaultCacheTTL is how long a fetched token list stays fresh.
const DefaultCacheTTL = 5 * time.Minute

// CoinInfo describes one listed token.
type CoinInfo struct {
	Name     string       `json:"name"`
	Symbol   string       `json:"symbol"`
	CoinType domain.Asset `json:"coin_type"`
	Decimals int          `json:"decimals"`
	IconURL  string       `json:"icon_url,omitempty"`
}

// Source fetches the current token list.
type Source interface {
	FetchTokens(ctx context.Context) ([]CoinInfo, error)
}

// HTTPSource fetches the token list from the routing backend.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a token list source for baseURL.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSource{baseURL: baseURL, client: client}
}

type tokensResponse struct {
	Data []CoinInfo `json:"data"`
}

// FetchTokens retrieves GET {base}/tokens.
func (s *HTTPSource) FetchTokens(ctx context.Context) ([]CoinInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/tokens", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token list status %d", domain.ErrNetwork, resp.StatusCode)
	}

	var parsed tokensResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed token list: %w", err)
	}
	return parsed.Data, nil
}

// Registry caches the token list and resolves symbols to coin types.
// A raw coin type passes through unresolved, so callers can accept
// either form.
type Registry struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	list      []CoinInfo
	bySymbol  map[string]CoinInfo
	fetchedAt time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCacheTTL sets the token list freshness window.
func WithCacheTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.ttl = d
	}
}

// NewRegistry creates a registry over source. A nil source serves only
// the built-in defaults.
func NewRegistry(source Source, opts ...RegistryOption) *Registry {
	r := &Registry{
		source: source,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.install(defaultTokens())
	r.fetchedAt = time.Time{} // defaults are always considered stale
	return r
}

// defaultTokens are served before the first successful fetch and when
// no source is configured.
func defaultTokens() []CoinInfo {
	return []CoinInfo{
		{Name: "Sui", Symbol: "SUI", CoinType: "0x2::sui::SUI", Decimals: 9},
		{
			Name:     "USD Coin",
			Symbol:   "USDC",
			CoinType: "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC",
			Decimals: 6,
		},
	}
}

// install replaces the cached list. Caller holds no lock.
func (r *Registry) install(list []CoinInfo) {
	bySymbol := make(map[string]CoinInfo, len(list))
	for _, t := range list {
		bySymbol[strings.ToUpper(t.Symbol)] = t
	}

	r.mu.Lock()
	r.list = list
	r.bySymbol = bySymbol
	r.fetchedAt = r.now()
	r.mu.Unlock()
}

// refresh re-fetches the list if stale. Fetch failures keep the
// previous list; symbol resolution degrades rather than breaks.
func (r *Registry) refresh(ctx context.Context) {
	if r.source == nil {
		return
	}

	r.mu.Lock()
	fresh := !r.fetchedAt.IsZero() && r.now().Sub(r.fetchedAt) < r.ttl
	r.mu.Unlock()
	if fresh {
		return
	}

	list, err := r.source.FetchTokens(ctx)
	if err != nil || len(list) == 0 {
		return
	}
	r.install(list)
}

// List returns the current token list.
func (r *Registry) List(ctx context.Context) []CoinInfo {
	r.refresh(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CoinInfo(nil), r.list...)
}

// Resolve maps a symbol or raw coin type to a coin type. Symbols are
// case-insensitive; anything containing "::" is treated as an already
// qualified coin type.
func (r *Registry) Resolve(ctx context.Context, s string) (domain.Asset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty asset", domain.ErrInvalidInput)
	}

	if asset := domain.Asset(s); asset.IsCoinType() {
		return asset, nil
	}

	r.refresh(ctx)

	r.mu.Lock()
	info, ok := r.bySymbol[strings.ToUpper(s)]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: unknown token symbol %q", domain.ErrInvalidInput, s)
	}
	return info.CoinType, nil
}
