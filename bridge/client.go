package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultRequestTimeout bounds a single provider API call.
	defaultRequestTimeout = 15 * time.Second
)

// Client is the HTTP client for the third-party bridge provider's
// route-quoting and execution API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ types.BridgeClient = (*Client)(nil)

// NewClient creates a new bridge provider client.
//
// Parameters:
// - baseURL: the provider API base URL.
// - apiKey: the provider API key, empty for anonymous access.
// - logger: the logger for logging events.
//
// Returns:
// - *Client: a new bridge provider client instance.
func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		logger: logger,
	}
}

// quoteRequest is the wire form of a route request.
type quoteRequest struct {
	FromChain   string `json:"fromChain"`
	ToChain     string `json:"toChain"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	FromAmount  string `json:"fromAmount"`
	FromToken   string `json:"fromToken"`
}

// quoteResponse is the wire form of the provider's quote answer.
type quoteResponse struct {
	Tool                 string  `json:"tool"`
	RouteID              string  `json:"routeId"`
	FeeCosts             string  `json:"feeCosts"`
	ExecutionDurationSec int     `json:"executionDuration"`
	Confidence           float64 `json:"confidence"`
}

// executeResponse is the wire form of an execution start.
type executeResponse struct {
	ExecutionID string `json:"executionId"`
}

// statusResponse is the wire form of an execution status check.
type statusResponse struct {
	Status    string `json:"status"`
	SubStatus string `json:"substatus"`
	TxHash    string `json:"txHash"`
}

// QuoteRoute asks the provider for an optimal route for the transfer.
//
// Parameters:
// - ctx: the context for managing the request.
// - req: the transfer the route is quoted for.
//
// Returns:
// - *types.RouteQuote: the quoted route.
// - error: an error if the provider is unreachable or rejects the request.
func (c *Client) QuoteRoute(ctx context.Context, req *types.RouteRequest) (*types.RouteQuote, error) {
	payload := quoteRequest{
		FromChain:   req.SourceNetwork.String(),
		ToChain:     req.TargetNetwork.String(),
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		FromAmount:  req.Amount,
		FromToken:   req.TokenAddress,
	}

	var resp quoteResponse
	if err := c.post(ctx, "/v1/quote", payload, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to quote route")
	}

	c.logger.WithFields(logrus.Fields{
		"provider":   resp.Tool,
		"from":       req.SourceNetwork,
		"to":         req.TargetNetwork,
		"confidence": resp.Confidence,
	}).Debug("Route quoted")

	return &types.RouteQuote{
		Provider:      resp.Tool,
		Fees:          resp.FeeCosts,
		EstimatedTime: time.Duration(resp.ExecutionDurationSec) * time.Second,
		Confidence:    resp.Confidence,
		RouteID:       resp.RouteID,
	}, nil
}

// Execute starts the quoted route and returns the provider's execution id.
func (c *Client) Execute(ctx context.Context, quote *types.RouteQuote) (string, error) {
	if quote == nil || quote.RouteID == "" {
		return "", errors.New("quote with route id is required")
	}

	var resp executeResponse
	if err := c.post(ctx, "/v1/routes/"+quote.RouteID+"/execute", struct{}{}, &resp); err != nil {
		return "", errors.Wrap(err, "failed to execute route")
	}

	if resp.ExecutionID == "" {
		return "", errors.New("provider returned empty execution id")
	}

	return resp.ExecutionID, nil
}

// GetStatus returns the current state of a running execution.
func (c *Client) GetStatus(ctx context.Context, executionID string) (*types.ExecutionState, error) {
	if executionID == "" {
		return nil, errors.New("execution id is required")
	}

	var resp statusResponse
	if err := c.get(ctx, "/v1/executions/"+executionID+"/status", &resp); err != nil {
		return nil, errors.Wrap(err, "failed to get execution status")
	}

	return &types.ExecutionState{
		Status:    types.ExecutionStatus(resp.Status),
		SubStatus: types.SubStatus(resp.SubStatus),
		TxHash:    resp.TxHash,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "provider request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read provider response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "failed to decode provider response")
	}

	return nil
}
