package escrowcontract

import (
	"context"
	"math/big"
	"strings"
	"time"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// bridgePollInterval is how often the provider is polled while waiting
	// for an execution to settle.
	bridgePollInterval = 10 * time.Second

	// mockContractPrefix marks database-only deployments that have no real
	// on-chain contract behind them.
	mockContractPrefix = "mock"
)

// DepositResult is the outcome of acknowledging an incoming deposit. The
// database-only path produces the same shape with Simulated true so callers
// stay network-agnostic.
type DepositResult struct {
	Success          bool
	TransactionHash  string
	BlockNumber      uint64
	GasUsed          uint64
	NewContractState *types.ContractState
	Simulated        bool
}

// ReleaseResult is the outcome of initiating a release: the contract
// receipt plus the bridge execution handle for the released funds.
type ReleaseResult struct {
	Success         bool
	TransactionHash string
	BlockNumber     uint64
	GasUsed         uint64
	ExecutionID     string
	BridgeProvider  string
	Simulated       bool
}

// ConfirmResult is the outcome of monitoring a bridge execution to a
// terminal state and confirming the release on-chain.
type ConfirmResult struct {
	Success         bool
	TransactionHash string
	BridgeTxHash    string
	Simulated       bool
}

// Adapter binds orchestrator release and deposit steps to on-chain escrow
// contract calls plus bridge execution.
type Adapter interface {
	// HandleIncomingDeposit acknowledges bridged funds on the escrow contract.
	HandleIncomingDeposit(ctx context.Context, contractAddress string, network types.Network,
		bridgeTransactionID string, sourceChain types.Network, sender string, amount string, tokenAddress string) (*DepositResult, error)

	// InitiateRelease calls the contract's release entry point, then requests
	// a bridge execution for the released funds.
	InitiateRelease(ctx context.Context, contractAddress string, network types.Network,
		targetChain types.Network, targetAddress string) (*ReleaseResult, error)

	// MonitorAndConfirm polls the bridge provider until the execution settles
	// or the wait budget is exhausted, then confirms the release on-chain.
	MonitorAndConfirm(ctx context.Context, contractAddress string, network types.Network,
		bridgeTransactionID string, executionID string, maxWaitTime time.Duration) (*ConfirmResult, error)

	// CancelAfterDeadline calls the contract's post-deadline cancellation
	// entry point.
	CancelAfterDeadline(ctx context.Context, contractAddress string, network types.Network) (*ReleaseResult, error)
}

type adapter struct {
	registry types.GatewayRegistry
	bridge   types.BridgeClient
	logger   *logrus.Logger
}

var _ Adapter = (*adapter)(nil)

// NewAdapter creates a new smart-contract bridge adapter.
//
// Parameters:
// - registry: the gateway registry for per-network contract calls.
// - bridge: the bridge provider client.
// - logger: the logger for logging events.
//
// Returns:
// - Adapter: a new adapter instance.
func NewAdapter(registry types.GatewayRegistry, bridge types.BridgeClient, logger *logrus.Logger) Adapter {
	return &adapter{
		registry: registry,
		bridge:   bridge,
		logger:   logger,
	}
}

// isMockContract reports whether the address names a database-only
// deployment with no real contract behind it.
func isMockContract(contractAddress string) bool {
	return contractAddress == "" || strings.HasPrefix(strings.ToLower(contractAddress), mockContractPrefix)
}

// HandleIncomingDeposit calls the escrow contract's deposit-acknowledgement
// entry point. Database-only deals skip the chain entirely and return a
// simulated result of the same shape.
func (a *adapter) HandleIncomingDeposit(ctx context.Context, contractAddress string, network types.Network,
	bridgeTransactionID string, sourceChain types.Network, sender string, amount string, tokenAddress string) (*DepositResult, error) {

	if isMockContract(contractAddress) {
		a.logger.WithFields(logrus.Fields{
			"contract": contractAddress,
			"bridgeTx": bridgeTransactionID,
		}).Info("Database-only deal, simulating deposit acknowledgement")

		return &DepositResult{
			Success:          true,
			NewContractState: &types.ContractState{State: "AWAITING_FULFILLMENT", Balance: amount},
			Simulated:        true,
		}, nil
	}

	amountWei, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, commonerrors.NewValidationError("amount", "must be a base-10 integer")
	}

	gw := a.registry.Get(network)
	if gw == nil {
		return nil, commonerrors.ErrGatewayNotFound
	}

	token := tokenAddress
	if token == "" {
		token = "0x0000000000000000000000000000000000000000"
	}

	result, err := gw.Call(ctx, contractAddress, "acknowledgeDeposit",
		bridgeTransactionID,
		sourceChain.String(),
		common.HexToAddress(sender),
		amountWei,
		common.HexToAddress(token),
	)
	if err != nil {
		return nil, err
	}

	state, err := gw.ReadState(ctx, contractAddress)
	if err != nil {
		a.logger.WithError(err).WithField("contract", contractAddress).Warn("Failed to read contract state after deposit")
		state = nil
	}

	return &DepositResult{
		Success:          true,
		TransactionHash:  result.TxHash,
		BlockNumber:      result.BlockNumber,
		GasUsed:          result.GasUsed,
		NewContractState: state,
	}, nil
}

// InitiateRelease calls the contract's release-initiation entry point, then
// immediately requests a bridge route and execution for the released funds.
func (a *adapter) InitiateRelease(ctx context.Context, contractAddress string, network types.Network,
	targetChain types.Network, targetAddress string) (*ReleaseResult, error) {

	if isMockContract(contractAddress) {
		a.logger.WithField("contract", contractAddress).Info("Database-only deal, simulating release initiation")
		return &ReleaseResult{Success: true, Simulated: true}, nil
	}

	gw := a.registry.Get(network)
	if gw == nil {
		return nil, commonerrors.ErrGatewayNotFound
	}

	result, err := gw.Call(ctx, contractAddress, "initiateRelease",
		targetChain.String(),
		common.HexToAddress(targetAddress),
	)
	if err != nil {
		return nil, err
	}

	state, err := gw.ReadState(ctx, contractAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read contract state after release initiation")
	}

	quote, err := a.bridge.QuoteRoute(ctx, &types.RouteRequest{
		SourceNetwork: network,
		TargetNetwork: targetChain,
		FromAddress:   contractAddress,
		ToAddress:     targetAddress,
		Amount:        state.Balance,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to quote bridge route for released funds")
	}

	executionID, err := a.bridge.Execute(ctx, quote)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start bridge execution")
	}

	a.logger.WithFields(logrus.Fields{
		"contract":    contractAddress,
		"txHash":      result.TxHash,
		"executionId": executionID,
		"provider":    quote.Provider,
	}).Info("Release initiated and bridge execution started")

	return &ReleaseResult{
		Success:         true,
		TransactionHash: result.TxHash,
		BlockNumber:     result.BlockNumber,
		GasUsed:         result.GasUsed,
		ExecutionID:     executionID,
		BridgeProvider:  quote.Provider,
	}, nil
}

// MonitorAndConfirm polls the bridge provider until the execution reaches a
// terminal state or maxWaitTime elapses, then calls the contract's
// confirm-release entry point on success.
func (a *adapter) MonitorAndConfirm(ctx context.Context, contractAddress string, network types.Network,
	bridgeTransactionID string, executionID string, maxWaitTime time.Duration) (*ConfirmResult, error) {

	deadline := time.Now().Add(maxWaitTime)
	ticker := time.NewTicker(bridgePollInterval)
	defer ticker.Stop()

	for {
		state, err := a.bridge.GetStatus(ctx, executionID)
		if err != nil {
			a.logger.WithError(err).WithField("executionId", executionID).Warn("Bridge status check failed, will retry")
		} else {
			switch state.Status {
			case types.ExecutionDone:
				return a.confirmRelease(ctx, contractAddress, network, bridgeTransactionID, state.TxHash)
			case types.ExecutionFailed:
				return nil, commonerrors.NewBridgeFailedError(executionID, string(state.SubStatus))
			}
		}

		if time.Now().After(deadline) {
			return nil, commonerrors.NewTimeoutError("bridge monitoring", maxWaitTime.String())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CancelAfterDeadline calls the contract's post-deadline cancellation entry
// point, returning escrowed funds to the buyer.
func (a *adapter) CancelAfterDeadline(ctx context.Context, contractAddress string, network types.Network) (*ReleaseResult, error) {
	if isMockContract(contractAddress) {
		a.logger.WithField("contract", contractAddress).Info("Database-only deal, simulating cancellation")
		return &ReleaseResult{Success: true, Simulated: true}, nil
	}

	gw := a.registry.Get(network)
	if gw == nil {
		return nil, commonerrors.ErrGatewayNotFound
	}

	result, err := gw.Call(ctx, contractAddress, "cancelAfterDisputeDeadline")
	if err != nil {
		return nil, err
	}

	return &ReleaseResult{
		Success:         true,
		TransactionHash: result.TxHash,
		BlockNumber:     result.BlockNumber,
		GasUsed:         result.GasUsed,
	}, nil
}

func (a *adapter) confirmRelease(ctx context.Context, contractAddress string, network types.Network,
	bridgeTransactionID string, bridgeTxHash string) (*ConfirmResult, error) {

	if isMockContract(contractAddress) {
		return &ConfirmResult{Success: true, BridgeTxHash: bridgeTxHash, Simulated: true}, nil
	}

	gw := a.registry.Get(network)
	if gw == nil {
		return nil, commonerrors.ErrGatewayNotFound
	}

	result, err := gw.Call(ctx, contractAddress, "confirmRelease", bridgeTransactionID)
	if err != nil {
		return nil, err
	}

	return &ConfirmResult{
		Success:         true,
		TransactionHash: result.TxHash,
		BridgeTxHash:    bridgeTxHash,
	}, nil
}
