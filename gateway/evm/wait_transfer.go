package evm

import (
	"context"
	"time"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// WaitTransferConfirmation waits for the confirmation of a direct transfer
// by polling the transaction receipt until it has the configured number of
// confirmations.
//
// Parameters:
// - ctx: the context for managing the request.
// - transfer: the transfer to wait for confirmation.
//
// Returns:
// - types.TransferStatus: the terminal outcome of the transfer.
// - error: an error if the client is not initialized or polling fails.
func (e *evm) WaitTransferConfirmation(ctx context.Context, transfer *types.Transfer) (types.TransferStatus, error) {
	client := e.getClient()
	if client == nil {
		return types.TransferNeedsRetry, errors.New("client not initialized")
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	txHash := common.HexToHash(transfer.Hash)

	for {
		select {
		case <-ctx.Done():
			e.logger.WithField("txHash", transfer.Hash).Error("WaitTransferConfirmation: context done")
			return types.TransferNeedsRetry, ctx.Err()

		case <-ticker.C:
			receipt, err := client.TransactionReceipt(ctx, txHash)
			if err != nil {
				if errors.Is(err, ethereum.NotFound) {
					continue
				}
				return types.TransferNeedsRetry, errors.Wrap(err, "failed to get transaction receipt")
			}

			currentBlock, err := client.BlockNumber(ctx)
			if err != nil {
				return types.TransferNeedsRetry, errors.Wrap(err, "failed to get current block number")
			}

			// Wait for required block confirmations.
			if currentBlock < receipt.BlockNumber.Uint64()+e.config.WaitNBlocks {
				continue
			}

			if receipt.Status == ethtypes.ReceiptStatusSuccessful {
				return types.TransferDone, nil
			}
			return types.TransferFailed, nil
		}
	}
}
