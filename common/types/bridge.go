package types

import (
	"context"
	"time"
)

// RouteQuote is the provider's answer to a route request.
//
// Fields:
// - Provider: the bridge or relayer the provider picked for the route.
// - Fees: the total provider fee, in the token's smallest unit.
// - EstimatedTime: the provider's settlement time estimate.
// - Confidence: the provider's confidence in the quote, 0..1.
// - RouteID: the provider handle used to execute the quoted route.
type RouteQuote struct {
	Provider      string
	Fees          string
	EstimatedTime time.Duration
	Confidence    float64
	RouteID       string
}

// RouteRequest describes the transfer a route is quoted for.
type RouteRequest struct {
	SourceNetwork Network
	TargetNetwork Network
	FromAddress   string
	ToAddress     string
	Amount        string
	TokenAddress  string
}

// ExecutionState is the provider's current view of a running execution.
type ExecutionState struct {
	Status    ExecutionStatus
	SubStatus SubStatus
	TxHash    string
}

// BridgeClient wraps the third-party route-quoting and execution API.
// Implementations are leaf dependencies and swappable; callers treat
// provider downtime as an expected operational failure.
type BridgeClient interface {
	// QuoteRoute asks the provider for an optimal route for the transfer.
	QuoteRoute(ctx context.Context, req *RouteRequest) (*RouteQuote, error)

	// Execute starts the quoted route and returns the provider's execution id.
	Execute(ctx context.Context, quote *RouteQuote) (string, error)

	// GetStatus returns the current state of a running execution.
	GetStatus(ctx context.Context, executionID string) (*ExecutionState, error)
}
