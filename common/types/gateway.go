package types

import (
	"context"
	"math/big"
)

// GatewayConfig holds the configuration for a specific network gateway.
//
// Fields:
// - Network: the canonical network name.
// - ChainType: the virtual-machine family of the network.
// - ChainID: the numeric chain id (zero for non-EVM networks).
// - RpcUrl: the URL for the network's RPC endpoint.
// - TxType: the transaction type supported by the network (legacy or EIP-1559).
// - WaitNBlocks: the number of blocks to wait for transaction confirmation.
// - PrivateKey: the signing key for the per-network escrow wallet.
type GatewayConfig struct {
	Network     Network
	ChainType   ChainType
	ChainID     uint64
	RpcUrl      string
	TxType      uint64
	WaitNBlocks uint64
	PrivateKey  string
}

// CallResult is the receipt of a state-changing contract call.
type CallResult struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// ContractState is the escrow contract state snapshot read off-chain.
type ContractState struct {
	State   string
	Balance string
}

// TransferIntent describes a direct (non-bridged) value transfer issued by
// the orchestrator on a single network.
type TransferIntent struct {
	ToAddress    string
	Amount       *big.Int
	TokenAddress string
	Reference    string
}

// Transfer is the record of a submitted direct transfer.
type Transfer struct {
	Hash      string
	From      string
	To        string
	Amount    string
	Token     string
	Nonce     uint64
	Network   Network
	Reference string
}

// TransferStatus is the terminal outcome of waiting for a transfer.
type TransferStatus int

const (
	// TransferDone means the transfer was mined and confirmed.
	TransferDone TransferStatus = iota
	// TransferFailed means the transfer reverted or was cancelled.
	TransferFailed
	// TransferNeedsRetry means the outcome is unknown and the caller may retry.
	TransferNeedsRetry
)

// ContractCaller executes state-changing calls against an escrow contract.
type ContractCaller interface {
	// Call invokes a contract method and waits for the receipt.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - contractAddress: the escrow contract address.
	// - method: the contract method name.
	// - args: the ABI arguments for the method.
	//
	// Returns:
	// - *CallResult: the transaction receipt summary.
	// - error: an error if the call reverts or the RPC fails.
	Call(ctx context.Context, contractAddress string, method string, args ...interface{}) (*CallResult, error)
}

// StateReader reads escrow contract state without mutating it.
type StateReader interface {
	// ReadState returns the current contract state snapshot.
	ReadState(ctx context.Context, contractAddress string) (*ContractState, error)
}

// AssetSender performs direct value transfers on a single network.
type AssetSender interface {
	// SendAsset sends a native or token amount per the transfer intent.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - intent: the transfer intent with recipient, amount and token.
	//
	// Returns:
	// - *Transfer: the submitted transfer record.
	// - error: an error if signing or submission fails.
	SendAsset(ctx context.Context, intent *TransferIntent) (*Transfer, error)
}

// TransferWatcher waits for transfer confirmation.
type TransferWatcher interface {
	// WaitTransferConfirmation blocks until the transfer confirms, fails, or
	// the context is done.
	WaitTransferConfirmation(ctx context.Context, transfer *Transfer) (TransferStatus, error)
}

// Gateway combines all per-network chain functionality the core needs.
type Gateway interface {
	ContractCaller
	StateReader
	AssetSender
	TransferWatcher
}

// GatewayRegistry manages gateways for multiple networks.
type GatewayRegistry interface {
	// Add creates and registers a gateway for the configured network.
	Add(ctx context.Context, config *GatewayConfig) error

	// Get retrieves the gateway for a network, nil if not registered.
	Get(network Network) Gateway

	// Remove removes the gateway for a network.
	Remove(network Network)
}
