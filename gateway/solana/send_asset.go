package solana

import (
	"context"

	"github.com/TrustRails/escrow-lib/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SendAsset sends native SOL to a recipient address. Token legs are routed
// through the bridge provider, so only native transfers are issued here.
//
// Parameters:
// - ctx: the context for managing the request.
// - intent: the transfer intent containing recipient and amount in lamports.
//
// Returns:
// - *types.Transfer: the submitted transfer record.
// - error: an error if signing or submission fails.
func (s *solana) SendAsset(ctx context.Context, intent *types.TransferIntent) (*types.Transfer, error) {
	if intent.TokenAddress != "" {
		return nil, errors.New("token transfers are routed through the bridge provider")
	}

	client := s.getClient()
	if client == nil {
		return nil, errors.New("client not initialized")
	}

	recipient, err := sol.PublicKeyFromBase58(intent.ToAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse recipient address")
	}

	walletKey := s.getSigner()
	walletPubKey := walletKey.PublicKey()

	latestBlockhashResult, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest blockhash")
	}
	latestBlockhash := latestBlockhashResult.Value.Blockhash

	transferIx := system.NewTransferInstruction(
		intent.Amount.Uint64(),
		walletPubKey,
		recipient,
	).Build()

	tx, err := sol.NewTransaction(
		[]sol.Instruction{transferIx},
		latestBlockhash,
		sol.TransactionPayer(walletPubKey),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transaction")
	}

	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if walletPubKey.Equals(key) {
			return &walletKey
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	s.logger.WithFields(logrus.Fields{
		"network":   s.config.Network,
		"signature": sig.String(),
		"lamports":  intent.Amount.String(),
	}).Info("Transfer submitted")

	return &types.Transfer{
		Hash:      sig.String(),
		From:      walletPubKey.String(),
		To:        recipient.String(),
		Amount:    intent.Amount.String(),
		Network:   s.config.Network,
		Reference: intent.Reference,
	}, nil
}
