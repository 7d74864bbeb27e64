// Package orchestrator coordinates cross-chain escrow fund movements as
// multi-step transactions: it prepares deterministic step plans, executes
// steps strictly in order, and reports structured results so scheduled jobs
// can drive many transactions without exception-style control flow.
package orchestrator

import (
	"math/big"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/escrowcontract"
	"github.com/sirupsen/logrus"
)

// defaultGasFeeWei is the flat per-leg gas projection used for fee estimates.
// Quotes do not include destination gas, so this is always added on top.
const defaultGasFeeWei = "210000000000000"

// Orchestrator prepares and drives cross-chain transactions. It owns the
// transaction records; deals hold only a weak reference back.
type Orchestrator struct {
	deals        types.DealStore
	transactions types.TransactionStore
	registry     types.GatewayRegistry
	bridge       types.BridgeClient
	contract     escrowcontract.Adapter
	logger       *logrus.Logger
}

// New creates a new cross-chain transaction orchestrator.
//
// Parameters:
// - deals: the deal persistence layer.
// - transactions: the transaction persistence layer.
// - registry: the gateway registry for direct transfers.
// - bridge: the bridge provider client.
// - contract: the smart-contract bridge adapter for receipt confirmation.
// - logger: the logger for logging events.
//
// Returns:
// - *Orchestrator: a new orchestrator instance.
func New(deals types.DealStore, transactions types.TransactionStore, registry types.GatewayRegistry,
	bridge types.BridgeClient, contract escrowcontract.Adapter, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		deals:        deals,
		transactions: transactions,
		registry:     registry,
		bridge:       bridge,
		contract:     contract,
		logger:       logger,
	}
}

// PrepareRequest carries everything needed to prepare a transaction for a
// deal. Amount is a base-10 integer string in the token's smallest unit; an
// empty TokenAddress means the native asset.
type PrepareRequest struct {
	DealID        string
	SourceNetwork string
	TargetNetwork string
	FromAddress   string
	ToAddress     string
	Amount        string
	TokenAddress  string
	UserID        string
}

// validate checks the request fields that do not require store access.
func (r *PrepareRequest) validate() error {
	if r.DealID == "" {
		return commonerrors.NewValidationError("dealId", "must not be empty")
	}
	if r.FromAddress == "" {
		return commonerrors.NewValidationError("fromAddress", "must not be empty")
	}
	if r.ToAddress == "" {
		return commonerrors.NewValidationError("toAddress", "must not be empty")
	}

	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return commonerrors.NewValidationError("amount", "must be a positive base-10 integer")
	}

	return nil
}
