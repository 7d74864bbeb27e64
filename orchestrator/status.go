package orchestrator

import (
	"context"
	"fmt"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
)

// GetStatus returns the aggregate progress of a transaction: its status, the
// percentage of completed steps and the next action to run.
//
// Parameters:
// - ctx: the context for managing the request.
// - transactionID: the transaction to inspect.
//
// Returns:
// - *types.TransactionProgress: the aggregate progress view.
// - error: a NotFoundError if the transaction does not exist.
func (o *Orchestrator) GetStatus(ctx context.Context, transactionID string) (*types.TransactionProgress, error) {
	tx, err := o.transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, commonerrors.NewNotFoundError("transaction", transactionID)
	}

	progress := 0
	if len(tx.Steps) > 0 {
		progress = tx.CompletedSteps() * 100 / len(tx.Steps)
	}

	nextAction := ""
	for _, s := range tx.Steps {
		if s.Status != types.StepCompleted {
			nextAction = string(s.Action)
			break
		}
	}

	return &types.TransactionProgress{
		TransactionID:      tx.ID,
		Status:             tx.Status,
		ProgressPercentage: progress,
		NextAction:         nextAction,
	}, nil
}

// IsDealReady is the pre-release gate: it reports whether a deal's funds may
// be released. A cross-chain deal is ready only when its linked transaction
// completed every step and every cross-chain condition is fulfilled. A
// regular deal is gated on conditions alone.
//
// The result always carries the blocking reason when not ready.
func (o *Orchestrator) IsDealReady(ctx context.Context, dealID string) (*types.Readiness, error) {
	deal, err := o.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if !deal.CrossChainConditionsFulfilled() {
		return &types.Readiness{Ready: false, Reason: "cross-chain conditions not fulfilled"}, nil
	}

	if !deal.IsCrossChain {
		return &types.Readiness{Ready: true}, nil
	}

	if deal.CrossChainTransactionID == nil || *deal.CrossChainTransactionID == "" {
		return &types.Readiness{Ready: false, Reason: "no transaction linked to deal"}, nil
	}

	tx, err := o.transactions.GetTransaction(ctx, *deal.CrossChainTransactionID)
	if err != nil {
		if commonerrors.IsNotFound(err) {
			return &types.Readiness{Ready: false, Reason: "linked transaction not found"}, nil
		}
		return nil, err
	}
	if tx == nil {
		return &types.Readiness{Ready: false, Reason: "linked transaction not found"}, nil
	}

	if tx.Status != types.TxStatusCompleted {
		return &types.Readiness{
			Ready:  false,
			Reason: fmt.Sprintf("transaction %s is %s, %d of %d steps completed", tx.ID, tx.Status, tx.CompletedSteps(), len(tx.Steps)),
		}, nil
	}

	return &types.Readiness{Ready: true}, nil
}
