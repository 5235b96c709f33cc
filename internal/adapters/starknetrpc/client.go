// Package starknetrpc implements the narrow Starknet JSON-RPC capability
// internal/triggers.OsRunTrigger needs (the chain's latest block number),
// grounded on the teacher's httpprover.Client functional-options HTTP
// client pattern, adapted to JSON-RPC request/response framing instead of
// REST.
package starknetrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/madara-alliance/orchestrator-go/internal/common"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10
)

// Client calls a Starknet full node's JSON-RPC endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond) }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient constructs a Client against url, the node's JSON-RPC endpoint.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// LatestBlockNumber calls starknet_blockNumber.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "starknet_blockNumber", Params: []any{}, ID: 1})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("starknet rpc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("starknet rpc request: status %d: %s", resp.StatusCode, string(data))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, fmt.Errorf("decode starknet rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return 0, fmt.Errorf("starknet rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var blockNumber uint64
	if err := json.Unmarshal(rpcResp.Result, &blockNumber); err != nil {
		return 0, fmt.Errorf("decode starknet_blockNumber result: %w", err)
	}
	return blockNumber, nil
}
