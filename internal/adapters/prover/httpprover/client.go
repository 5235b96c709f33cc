// Package httpprover implements adapters.ProverClient against a REST-style
// external prover service, grounded on the teacher's eodhd.Client
// functional-options HTTP client pattern.
package httpprover

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
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client is a REST client for an external proving service.
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient constructs a Client for baseURL/apiKey.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitRequest struct {
	CairoPieURL string `json:"cairo_pie_url"`
	CrossVerify bool   `json:"cross_verify"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

// SubmitProof submits cairoPieKey to the prover and returns its task id.
func (c *Client) SubmitProof(ctx context.Context, cairoPieKey string, crossVerify bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(submitRequest{CairoPieURL: cairoPieKey, CrossVerify: crossVerify})
	if err != nil {
		return "", orcherrors.ProvingError(err)
	}

	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks", body, &resp); err != nil {
		return "", orcherrors.ProvingError(err)
	}
	return resp.TaskID, nil
}

type statusResponse struct {
	Status   string `json:"status"` // "processing" | "succeeded" | "failed"
	ProofURL string `json:"proof_url,omitempty"`
}

// ProofStatus polls the prover for externalID's status.
func (c *Client) ProofStatus(ctx context.Context, externalID string) (bool, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, "", err
	}

	var resp statusResponse
	path := fmt.Sprintf("/v1/tasks/%s", externalID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, "", orcherrors.ProvingError(err)
	}

	switch resp.Status {
	case "succeeded":
		return true, resp.ProofURL, nil
	case "failed":
		return true, "", nil
	default:
		return false, "", nil
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prover request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("prover request %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
