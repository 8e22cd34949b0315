// Package sui provides clients for the Sui fullnode JSON-RPC and
// WebSocket APIs.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"sui-swap-engine/internal/domain"
	"sui-swap-engine/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// DefaultCoinPageLimit is the page size for suix_getCoins.
	DefaultCoinPageLimit = 50
)

// HTTPClient talks to a Sui fullnode over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Sui fullnode client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	err := c.callRetries(ctx, method, params, result, c.maxRetries)
	observability.RecordRPCLatency(method, time.Since(start).Seconds())
	return err
}

// callOnce performs a JSON-RPC call without retries. Used for
// submissions, where a blind retry could execute the transaction twice.
func (c *HTTPClient) callOnce(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	err := c.callRetries(ctx, method, params, result, 0)
	observability.RecordRPCLatency(method, time.Since(start).Seconds())
	return err
}

func (c *HTTPClient) callRetries(ctx context.Context, method string, params []interface{}, result interface{}, maxRetries int) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", domain.ErrNetwork, ctx.Err())
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrNetwork, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w: rate limited (429)", domain.ErrNetwork)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: unexpected status %d: %s", domain.ErrNetwork, resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("%w: unmarshal response: %v", domain.ErrNetwork, err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// getCoinsPage is the raw RPC response for suix_getCoins.
type getCoinsPage struct {
	Data        []getCoinsItem `json:"data"`
	NextCursor  *string        `json:"nextCursor"`
	HasNextPage bool           `json:"hasNextPage"`
}

type getCoinsItem struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

// GetCoins retrieves all coin objects of coinType held by owner,
// following pagination cursors. The ledger's enumeration order is
// preserved across pages.
func (c *HTTPClient) GetCoins(ctx context.Context, owner string, coinType domain.Asset) ([]domain.Coin, error) {
	var coins []domain.Coin
	var cursor *string

	for {
		params := []interface{}{owner, coinType.String(), cursor, DefaultCoinPageLimit}

		var page getCoinsPage
		if err := c.call(ctx, "suix_getCoins", params, &page); err != nil {
			return nil, fmt.Errorf("get coins for %s: %w", owner, err)
		}

		for _, item := range page.Data {
			balance, err := domain.ParseAmount(item.Balance)
			if err != nil {
				return nil, fmt.Errorf("coin %s: malformed balance %q", item.CoinObjectID, item.Balance)
			}
			coins = append(coins, domain.Coin{
				ObjectID: item.CoinObjectID,
				Owner:    owner,
				CoinType: domain.Asset(item.CoinType),
				Balance:  balance,
			})
		}

		if !page.HasNextPage || page.NextCursor == nil {
			return coins, nil
		}
		cursor = page.NextCursor
	}
}

// executeResult is the raw RPC response for sui_executeTransactionBlock.
type executeResult struct {
	Digest  string          `json:"digest"`
	Effects *effectsPayload `json:"effects"`
}

type effectsPayload struct {
	Status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"status"`
}

// ExecuteTransactionBlock submits a signed transaction. Never retried:
// after a transport failure the transaction may already be executing,
// so the caller must resolve the outcome through GetTransactionBlock.
func (c *HTTPClient) ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*ExecuteResult, error) {
	params := []interface{}{
		txBytes,
		signatures,
		map[string]interface{}{"showEffects": true},
		"WaitForEffectsCert",
	}

	var result executeResult
	if err := c.callOnce(ctx, "sui_executeTransactionBlock", params, &result); err != nil {
		return nil, err
	}
	if result.Digest == "" {
		return nil, fmt.Errorf("%w: submission returned no digest", domain.ErrSubmissionFailed)
	}

	out := &ExecuteResult{Digest: result.Digest}
	if result.Effects != nil {
		out.Status = result.Effects.Status.Status
		out.Error = result.Effects.Status.Error
	}
	return out, nil
}

// getTransactionBlockResult is the raw RPC response for
// sui_getTransactionBlock.
type getTransactionBlockResult struct {
	Digest     string          `json:"digest"`
	Effects    *effectsPayload `json:"effects"`
	Checkpoint string          `json:"checkpoint"`
}

// GetTransactionBlock retrieves the execution status of a transaction.
// A transaction the node has not yet certified comes back pending, not
// as an error.
func (c *HTTPClient) GetTransactionBlock(ctx context.Context, digest string) (*TransactionStatus, error) {
	params := []interface{}{
		digest,
		map[string]interface{}{"showEffects": true},
	}

	var result getTransactionBlockResult
	if err := c.call(ctx, "sui_getTransactionBlock", params, &result); err != nil {
		return nil, err
	}

	status := &TransactionStatus{Digest: digest}
	if result.Effects != nil {
		status.Status = result.Effects.Status.Status
		status.Error = result.Effects.Status.Error
	}
	if result.Checkpoint != "" {
		fmt.Sscanf(result.Checkpoint, "%d", &status.Checkpoint)
	}
	return status, nil
}

// GetLatestCheckpoint retrieves the highest known checkpoint sequence
// number. Used as a liveness probe.
func (c *HTTPClient) GetLatestCheckpoint(ctx context.Context) (int64, error) {
	var result string
	if err := c.call(ctx, "sui_getLatestCheckpointSequenceNumber", nil, &result); err != nil {
		return 0, err
	}
	var seq int64
	if _, err := fmt.Sscanf(result, "%d", &seq); err != nil {
		return 0, fmt.Errorf("malformed checkpoint %q", result)
	}
	return seq, nil
}
