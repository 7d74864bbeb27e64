package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/gateway/evm/generated"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// ZeroAddress marks a native-asset transfer (no token contract involved).
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// SendAsset sends a native or token amount per the transfer intent.
//
// Parameters:
// - ctx: the context for managing the request.
// - intent: the transfer intent containing recipient, amount and token.
//
// Returns:
// - *types.Transfer: the submitted transfer record.
// - error: an error if the client is not initialized or the transfer fails.
func (e *evm) SendAsset(ctx context.Context, intent *types.TransferIntent) (*types.Transfer, error) {
	client := e.getClient()
	if client == nil {
		return nil, errors.New("client not initialized")
	}

	nonce, err := client.PendingNonceAt(ctx, e.getSigner().Address())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	var tx *ethtypes.Transaction
	if intent.TokenAddress == "" || intent.TokenAddress == ZeroAddress {
		tx, err = e.sendNativeAsset(ctx, intent, nonce)
	} else {
		tx, err = e.sendToken(ctx, intent, nonce)
	}
	if err != nil {
		return nil, err
	}

	return &types.Transfer{
		Hash:      tx.Hash().Hex(),
		From:      e.getSigner().Address().Hex(),
		To:        intent.ToAddress,
		Amount:    intent.Amount.String(),
		Token:     intent.TokenAddress,
		Nonce:     nonce,
		Network:   e.config.Network,
		Reference: intent.Reference,
	}, nil
}

// sendNativeAsset sends the native asset directly to the recipient.
func (e *evm) sendNativeAsset(ctx context.Context, intent *types.TransferIntent, nonce uint64) (*ethtypes.Transaction, error) {
	tx, err := e.prepareTransaction(ctx, nonce, intent.ToAddress, intent.Amount, nil)
	if err != nil {
		return nil, err
	}

	return e.signAndSendTransaction(ctx, tx)
}

// sendToken sends an ERC-20 token amount via the token's transfer method.
func (e *evm) sendToken(ctx context.Context, intent *types.TransferIntent, nonce uint64) (*ethtypes.Transaction, error) {
	tokenAbi, err := abi.JSON(strings.NewReader(generated.ERC20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token ABI")
	}

	data, err := tokenAbi.Pack("transfer", common.HexToAddress(intent.ToAddress), intent.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack transfer data")
	}

	tx, err := e.prepareTransaction(ctx, nonce, intent.TokenAddress, big.NewInt(0), data)
	if err != nil {
		return nil, err
	}

	return e.signAndSendTransaction(ctx, tx)
}

// prepareTransaction prepares a transaction with the given parameters.
//
// Parameters:
// - ctx: the context for managing the request.
// - nonce: the nonce for the transaction.
// - toAddress: the recipient address of the transaction.
// - value: the native amount to send with the transaction.
// - data: the input data for the transaction.
//
// Returns:
// - *ethtypes.Transaction: the prepared transaction.
// - error: an error if gas estimation or gas price retrieval fails.
func (e *evm) prepareTransaction(ctx context.Context, nonce uint64, toAddress string, value *big.Int, data []byte) (*ethtypes.Transaction, error) {
	estimatedGas, err := e.EstimateGas(ctx, toAddress, value, data)
	if err != nil {
		e.logger.WithField("network", e.config.Network).WithError(err).Warn("Failed to estimate gas")
		return nil, errors.Wrap(err, "failed to estimate gas")
	}

	gasLimit := uint64(float64(estimatedGas) * 1.1)

	to := common.HexToAddress(toAddress)

	client := e.getClient()
	if client == nil {
		return nil, errors.New("client not initialized")
	}

	if e.config.TxType == TxTypeEIP1559 {
		gasPriceData, err := e.getEIP1559GasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get EIP-1559 gas price")
		}

		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:    big.NewInt(0).SetUint64(e.config.ChainID),
			Nonce:      nonce,
			GasFeeCap:  gasPriceData.MaxFeePerGas,
			GasTipCap:  gasPriceData.MaxPriorityFeePerGas,
			Gas:        gasLimit,
			To:         &to,
			Value:      value,
			Data:       data,
			AccessList: nil,
		}), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(150))
	gasPrice = new(big.Int).Div(gasPrice, big.NewInt(100))

	return ethtypes.NewTransaction(
		nonce,
		to,
		value,
		gasLimit,
		gasPrice,
		data,
	), nil
}

// signAndSendTransaction signs and sends the prepared transaction.
func (e *evm) signAndSendTransaction(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	client := e.getClient()
	walletSigner := e.getSigner()

	if client == nil || walletSigner == nil {
		return nil, errors.New("client or signer not initialized")
	}

	chainID := big.NewInt(0).SetUint64(e.config.ChainID)

	signedTx, err := walletSigner.SignTx(tx, chainID)
	if err != nil {
		e.logger.WithError(err).Error("Failed to sign transaction")
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err = client.SendTransaction(ctx, signedTx); err != nil {
		e.logger.WithError(err).Error("Failed to send transaction")
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	return signedTx, nil
}
