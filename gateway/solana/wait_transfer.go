package solana

import (
	"context"
	"time"

	"github.com/TrustRails/escrow-lib/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// statusPollInterval is how often signature statuses are polled.
const statusPollInterval = 2 * time.Second

// WaitTransferConfirmation waits for a transfer's signature to finalize by
// polling signature statuses until the commitment is reached or the context
// is done.
func (s *solana) WaitTransferConfirmation(ctx context.Context, transfer *types.Transfer) (types.TransferStatus, error) {
	client := s.getClient()
	if client == nil {
		return types.TransferNeedsRetry, errors.New("client not initialized")
	}

	sig, err := sol.SignatureFromBase58(transfer.Hash)
	if err != nil {
		return types.TransferFailed, errors.Wrap(err, "failed to parse signature")
	}

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.WithField("signature", transfer.Hash).Error("WaitTransferConfirmation: context done")
			return types.TransferNeedsRetry, ctx.Err()

		case <-ticker.C:
			result, err := client.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				return types.TransferNeedsRetry, errors.Wrap(err, "failed to get signature status")
			}

			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}

			status := result.Value[0]
			if status.Err != nil {
				return types.TransferFailed, nil
			}

			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return types.TransferDone, nil
			}
		}
	}
}
