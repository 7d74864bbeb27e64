package orchestrator

import (
	"context"
	"math/big"
	"time"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	ethcommon "github.com/ethereum/go-ethereum/common"
	sol "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// fallbackConfidence is the degraded confidence recorded when the bridge
	// provider cannot be reached at preparation time.
	fallbackConfidence = 0.5

	// fallbackBridgeFeeBps is the synthetic bridge fee, in basis points of the
	// transfer amount, used when no quote is available.
	fallbackBridgeFeeBps = 50

	// fallbackEstimatedTime is the settlement estimate recorded without a quote.
	fallbackEstimatedTime = 30 * time.Minute
)

// PrepareTransaction validates the request, quotes the bridge route when the
// networks differ, builds the deterministic step plan and persists the new
// transaction record linked to its deal.
//
// A same-network transfer produces a single direct-transfer step. A
// cross-network transfer always produces the three bridge steps, regardless
// of VM compatibility. Provider downtime does not fail preparation: the
// transaction is created with degraded bridge info and a fallback fee
// estimate marked as such.
//
// Parameters:
// - ctx: the context for managing the request.
// - req: the prepare request.
//
// Returns:
// - *types.CrossChainTransaction: the persisted transaction record.
// - error: a ValidationError, UnsupportedNetworkError or NotFoundError on
//   bad input, a PersistenceError if the record cannot be written.
func (o *Orchestrator) PrepareTransaction(ctx context.Context, req *PrepareRequest) (*types.CrossChainTransaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	source, ok := types.ParseNetwork(req.SourceNetwork)
	if !ok {
		return nil, commonerrors.NewUnsupportedNetworkError(req.SourceNetwork)
	}

	target, ok := types.ParseNetwork(req.TargetNetwork)
	if !ok {
		return nil, commonerrors.NewUnsupportedNetworkError(req.TargetNetwork)
	}

	if err := validateAddress("fromAddress", req.FromAddress, source); err != nil {
		return nil, err
	}
	if err := validateAddress("toAddress", req.ToAddress, target); err != nil {
		return nil, err
	}

	deal, err := o.deals.GetDeal(ctx, req.DealID)
	if err != nil {
		return nil, err
	}

	needsBridge := source != target

	var bridgeInfo *types.BridgeInfo
	var feeEstimate *types.FeeEstimate

	if needsBridge {
		quote, quoteErr := o.bridge.QuoteRoute(ctx, &types.RouteRequest{
			SourceNetwork: source,
			TargetNetwork: target,
			FromAddress:   req.FromAddress,
			ToAddress:     req.ToAddress,
			Amount:        req.Amount,
			TokenAddress:  req.TokenAddress,
		})
		if quoteErr != nil {
			o.logger.WithError(quoteErr).WithFields(logrus.Fields{
				"dealId": req.DealID,
				"source": source,
				"target": target,
			}).Warn("Bridge provider unreachable, preparing with fallback estimates")

			bridgeInfo = &types.BridgeInfo{
				Available:     false,
				EstimatedTime: fallbackEstimatedTime,
				Confidence:    fallbackConfidence,
				Note:          "provider unreachable at preparation time",
			}
			feeEstimate = fallbackFeeEstimate(req.Amount)
		} else {
			bridgeInfo = &types.BridgeInfo{
				Provider:      quote.Provider,
				Available:     true,
				EstimatedTime: quote.EstimatedTime,
				Confidence:    quote.Confidence,
			}
			feeEstimate = &types.FeeEstimate{
				BridgeFee:         quote.Fees,
				GasFee:            defaultGasFeeWei,
				TotalEstimatedFee: sumFees(quote.Fees, defaultGasFeeWei),
				Currency:          "wei",
			}
		}
	} else {
		feeEstimate = &types.FeeEstimate{
			BridgeFee:         "0",
			GasFee:            defaultGasFeeWei,
			TotalEstimatedFee: defaultGasFeeWei,
			Currency:          "wei",
		}
	}

	now := time.Now().UTC()
	tx := &types.CrossChainTransaction{
		ID:            uuid.New().String(),
		DealID:        deal.ID,
		Status:        types.TxStatusPrepared,
		SourceNetwork: source,
		TargetNetwork: target,
		FromAddress:   req.FromAddress,
		ToAddress:     req.ToAddress,
		Amount:        req.Amount,
		TokenAddress:  req.TokenAddress,
		NeedsBridge:   needsBridge,
		Steps:         buildStepPlan(needsBridge, deal),
		BridgeInfo:    bridgeInfo,
		FeeEstimate:   feeEstimate,
		UserID:        req.UserID,
		LastUpdated:   now,
		CreatedAt:     now,
	}

	if err := o.transactions.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	if err := o.deals.LinkTransaction(ctx, deal.ID, tx.ID); err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"transactionId": tx.ID,
		"dealId":        deal.ID,
		"needsBridge":   needsBridge,
		"steps":         len(tx.Steps),
	}).Info("Transaction prepared")

	return tx, nil
}

// buildStepPlan returns the deterministic step list for a transfer: one
// direct-transfer step on a single network, three bridge steps otherwise.
// The final step carries the deal's first unfulfilled cross-chain condition
// so its completion fulfills the condition automatically.
func buildStepPlan(needsBridge bool, deal *types.Deal) []types.Step {
	conditionID := firstPendingCrossChainCondition(deal)

	if !needsBridge {
		return []types.Step{
			{Index: 1, Action: types.ActionDirectTransfer, Status: types.StepPending, ConditionMapping: conditionID},
		}
	}

	return []types.Step{
		{Index: 1, Action: types.ActionInitiateBridge, Status: types.StepPending},
		{Index: 2, Action: types.ActionMonitorBridge, Status: types.StepPending},
		{Index: 3, Action: types.ActionConfirmReceipt, Status: types.StepPending, ConditionMapping: conditionID},
	}
}

// validateAddress checks the address shape against the network's chain
// family: 20-byte hex for EVM networks, a base58 public key for Solana.
func validateAddress(field, address string, network types.Network) error {
	switch network.Type() {
	case types.EVM:
		if !ethcommon.IsHexAddress(address) {
			return commonerrors.NewValidationError(field, "must be a 0x-prefixed 20-byte hex address")
		}
	case types.SOLANA:
		if _, err := sol.PublicKeyFromBase58(address); err != nil {
			return commonerrors.NewValidationError(field, "must be a base58-encoded public key")
		}
	}
	return nil
}

func firstPendingCrossChainCondition(deal *types.Deal) string {
	for _, c := range deal.Conditions {
		if c.Type == types.ConditionCrossChain && c.Status == types.ConditionPendingBuyerAction {
			return c.ID
		}
	}
	return ""
}

// fallbackFeeEstimate builds a synthetic estimate when no quote is
// available: a flat basis-point bridge fee plus the default gas projection,
// marked FallbackMode so consumers can surface the uncertainty.
func fallbackFeeEstimate(amount string) *types.FeeEstimate {
	amountInt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		amountInt = big.NewInt(0)
	}

	bridgeFee := new(big.Int).Div(new(big.Int).Mul(amountInt, big.NewInt(fallbackBridgeFeeBps)), big.NewInt(10000))

	return &types.FeeEstimate{
		BridgeFee:         bridgeFee.String(),
		GasFee:            defaultGasFeeWei,
		TotalEstimatedFee: sumFees(bridgeFee.String(), defaultGasFeeWei),
		Currency:          "wei",
		FallbackMode:      true,
	}
}

func sumFees(a, b string) string {
	x, okA := new(big.Int).SetString(a, 10)
	y, okB := new(big.Int).SetString(b, 10)
	if !okA || !okB {
		return "0"
	}
	return new(big.Int).Add(x, y).String()
}
