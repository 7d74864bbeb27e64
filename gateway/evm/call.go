package evm

import (
	"context"
	"math/big"
	"strings"
	"time"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/gateway/evm/generated"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// escrowStateNames maps the contract's uint8 state enum to readable names.
var escrowStateNames = []string{
	"AWAITING_DEPOSIT",
	"AWAITING_FULFILLMENT",
	"IN_FINAL_APPROVAL",
	"IN_DISPUTE",
	"FUNDS_RELEASED",
	"CANCELLED",
}

// Call invokes an escrow contract method, waits for the receipt, and
// returns the receipt summary.
//
// Parameters:
// - ctx: the context for managing the request.
// - contractAddress: the escrow contract address.
// - method: the contract method name.
// - args: the ABI arguments for the method.
//
// Returns:
// - *types.CallResult: the transaction receipt summary.
// - error: a ChainCallError if the call reverts or the RPC fails.
func (e *evm) Call(ctx context.Context, contractAddress string, method string, args ...interface{}) (*types.CallResult, error) {
	client := e.getClient()
	if client == nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), method, errors.New("client not initialized"))
	}

	escrowAbi, err := abi.JSON(strings.NewReader(generated.EscrowABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse escrow ABI")
	}

	data, err := escrowAbi.Pack(method, args...)
	if err != nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), method,
			errors.Wrap(err, "failed to pack call data"))
	}

	nonce, err := client.PendingNonceAt(ctx, e.getSigner().Address())
	if err != nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), method,
			errors.Wrap(err, "failed to get nonce"))
	}

	tx, err := e.prepareTransaction(ctx, nonce, contractAddress, big.NewInt(0), data)
	if err != nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), method, err)
	}

	signedTx, err := e.signAndSendTransaction(ctx, tx)
	if err != nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), method, err)
	}

	receipt, err := e.waitReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), method, err)
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), method,
			errors.Errorf("transaction %s reverted", signedTx.Hash().Hex()))
	}

	e.logger.WithFields(logrus.Fields{
		"network":  e.config.Network,
		"contract": contractAddress,
		"method":   method,
		"txHash":   signedTx.Hash().Hex(),
	}).Info("Contract call confirmed")

	return &types.CallResult{
		TxHash:      signedTx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// ReadState returns the escrow contract's current state snapshot without
// mutating it.
func (e *evm) ReadState(ctx context.Context, contractAddress string) (*types.ContractState, error) {
	client := e.getClient()
	if client == nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), "state", errors.New("client not initialized"))
	}

	escrowAbi, err := abi.JSON(strings.NewReader(generated.EscrowABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse escrow ABI")
	}

	data, err := escrowAbi.Pack("state")
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack state call")
	}

	contract := common.HexToAddress(contractAddress)
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), "state", err)
	}

	outputs, err := escrowAbi.Unpack("state", raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack state result")
	}

	stateIndex, ok := outputs[0].(uint8)
	if !ok {
		return nil, errors.New("unexpected state output type")
	}

	stateName := "UNKNOWN"
	if int(stateIndex) < len(escrowStateNames) {
		stateName = escrowStateNames[stateIndex]
	}

	balance, err := client.BalanceAt(ctx, contract, nil)
	if err != nil {
		return nil, commonerrors.NewChainCallError(e.config.Network.String(), "balance", err)
	}

	return &types.ContractState{
		State:   stateName,
		Balance: balance.String(),
	}, nil
}

// waitReceipt polls for the transaction receipt until it lands with the
// configured number of confirmations or the context is done.
func (e *evm) waitReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	client := e.getClient()
	if client == nil {
		return nil, errors.New("client not initialized")
	}

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			currentBlock, err := client.BlockNumber(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "failed to get current block number")
			}
			if currentBlock >= receipt.BlockNumber.Uint64()+e.config.WaitNBlocks {
				return receipt, nil
			}
		} else if !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrap(err, "failed to get transaction receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(receiptPollInterval):
		}
	}
}
