package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/sirupsen/logrus"
)

// ExecuteStep runs one step of a transaction. Steps execute strictly in
// index order; attempting a step before all lower-indexed steps completed is
// an InvalidStateError. Executing an already-completed step is an idempotent
// no-op reporting success.
//
// Expected operational failures (provider downtime, reverted transfers,
// executions still pending) are reported inside the StepResult with Success
// false, never as an error, so batch callers can branch without unwinding.
//
// Parameters:
// - ctx: the context for managing the request.
// - transactionID: the transaction the step belongs to.
// - stepIndex: the 1-based index of the step to execute.
// - onChainTxHash: optional hash of a transaction the caller already
//   broadcast for this step; empty when the step submits its own.
//
// Returns:
// - *types.StepResult: the structured outcome of the attempt.
// - error: a NotFoundError or InvalidStateError on caller mistakes, a
//   PersistenceError if the result cannot be written.
func (o *Orchestrator) ExecuteStep(ctx context.Context, transactionID string, stepIndex int, onChainTxHash string) (*types.StepResult, error) {
	tx, err := o.transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, commonerrors.NewNotFoundError("transaction", transactionID)
	}

	step := tx.FindStep(stepIndex)
	if step == nil {
		return nil, commonerrors.NewNotFoundError("step", fmt.Sprintf("%s/%d", transactionID, stepIndex))
	}

	if step.Status == types.StepCompleted {
		return &types.StepResult{
			Success:  true,
			Status:   types.StepCompleted,
			TxStatus: tx.Status,
			TxHash:   step.TxHash,
		}, nil
	}

	if !tx.PriorStepsCompleted(stepIndex) {
		return nil, commonerrors.NewInvalidStateError("step", string(step.Status),
			fmt.Sprintf("execute step %d before earlier steps completed", stepIndex))
	}

	return o.runStep(ctx, tx, step, onChainTxHash)
}

// RetryStep re-runs a failed step. A completed step is an idempotent no-op
// reporting success; pending or in-progress steps cannot be retried.
func (o *Orchestrator) RetryStep(ctx context.Context, transactionID string, stepIndex int) (*types.StepResult, error) {
	tx, err := o.transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, commonerrors.NewNotFoundError("transaction", transactionID)
	}

	step := tx.FindStep(stepIndex)
	if step == nil {
		return nil, commonerrors.NewNotFoundError("step", fmt.Sprintf("%s/%d", transactionID, stepIndex))
	}

	switch step.Status {
	case types.StepCompleted:
		return &types.StepResult{
			Success:  true,
			Status:   types.StepCompleted,
			TxStatus: tx.Status,
			TxHash:   step.TxHash,
		}, nil
	case types.StepFailed:
		step.Error = ""
		return o.runStep(ctx, tx, step, "")
	default:
		return nil, commonerrors.NewInvalidStateError("step", string(step.Status), "retry")
	}
}

// AutoCompleteSteps executes the remaining steps of a deal's linked
// transaction in order. Pending bridge executions are not failures; they
// simply end the sweep until the next run.
//
// Parameters:
// - ctx: the context for managing the request.
// - dealID: the deal whose linked transaction is advanced.
//
// Returns:
// - *types.AutoCompleteOutcome: completed and failed step counts.
// - error: a NotFoundError if the deal has no linked transaction.
func (o *Orchestrator) AutoCompleteSteps(ctx context.Context, dealID string) (*types.AutoCompleteOutcome, error) {
	tx, err := o.transactions.GetTransactionByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, commonerrors.NewNotFoundError("transaction for deal", dealID)
	}

	return o.autoCompleteTransaction(ctx, tx)
}

// AutoCompleteTransaction is the transaction-keyed variant of
// AutoCompleteSteps used by monitoring sweeps that already hold the record.
func (o *Orchestrator) AutoCompleteTransaction(ctx context.Context, transactionID string) (*types.AutoCompleteOutcome, error) {
	tx, err := o.transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, commonerrors.NewNotFoundError("transaction", transactionID)
	}

	return o.autoCompleteTransaction(ctx, tx)
}

// autoCompleteTransaction advances steps strictly in order. A step that does
// not complete ends the pass: the in-order invariant forbids starting any
// later step while an earlier one is failed or pending, so at most one
// failure can be recorded per pass.
func (o *Orchestrator) autoCompleteTransaction(ctx context.Context, tx *types.CrossChainTransaction) (*types.AutoCompleteOutcome, error) {
	outcome := &types.AutoCompleteOutcome{}

	for i := range tx.Steps {
		step := &tx.Steps[i]
		if step.Status == types.StepCompleted {
			continue
		}

		result, err := o.runStep(ctx, tx, step, "")
		if err != nil {
			return outcome, err
		}

		if !result.Success {
			if result.Status == types.StepFailed {
				outcome.FailedSteps++
			}
			break
		}

		outcome.CompletedSteps++
	}

	return outcome, nil
}

// runStep dispatches to the action handler and persists the step outcome
// together with the refreshed aggregate transaction status.
func (o *Orchestrator) runStep(ctx context.Context, tx *types.CrossChainTransaction, step *types.Step, onChainTxHash string) (*types.StepResult, error) {
	log := o.logger.WithFields(logrus.Fields{
		"transactionId": tx.ID,
		"stepIndex":     step.Index,
		"action":        step.Action,
	})
	log.Info("Executing step")

	step.Status = types.StepInProgress

	var stepErr error
	switch step.Action {
	case types.ActionDirectTransfer:
		stepErr = o.runDirectTransfer(ctx, tx, step, onChainTxHash)
	case types.ActionInitiateBridge:
		stepErr = o.runInitiateBridge(ctx, tx, step)
	case types.ActionMonitorBridge:
		stepErr = o.runMonitorBridge(ctx, tx, step)
	case types.ActionConfirmReceipt:
		stepErr = o.runConfirmReceipt(ctx, tx, step)
	default:
		return nil, commonerrors.NewInvalidStateError("step", string(step.Action), "execute unknown action")
	}

	if stepErr != nil {
		if pending, ok := stepErr.(*executionPendingError); ok {
			// Still settling; leave the step in progress for the next sweep.
			if err := o.persistStep(ctx, tx, step); err != nil {
				return nil, err
			}
			return &types.StepResult{
				Success:     false,
				Status:      step.Status,
				TxStatus:    tx.Status,
				ExecutionID: step.ExecutionID,
				Error:       pending.Error(),
			}, nil
		}

		step.Status = types.StepFailed
		step.Error = stepErr.Error()
		log.WithError(stepErr).Error("Step failed")

		// Only definitive outcomes fail the transaction. Transient faults
		// keep it in progress so monitoring sweeps pick it up and retry.
		if isTerminalStepError(stepErr) {
			tx.Status = types.TxStatusFailed
		} else {
			tx.Status = types.TxStatusInProgress
		}
		if err := o.transactions.UpdateStep(ctx, tx.ID, step, tx.Status); err != nil {
			return nil, err
		}
		return &types.StepResult{
			Success:     false,
			Status:      types.StepFailed,
			TxStatus:    tx.Status,
			ExecutionID: step.ExecutionID,
			Error:       step.Error,
		}, nil
	}

	now := time.Now().UTC()
	step.Status = types.StepCompleted
	step.CompletedAt = &now

	if err := o.persistStep(ctx, tx, step); err != nil {
		return nil, err
	}

	if step.ConditionMapping != "" {
		if err := o.deals.FulfillCondition(ctx, tx.DealID, step.ConditionMapping); err != nil {
			log.WithError(err).Warn("Failed to fulfill mapped condition")
		}
	}

	log.WithField("txHash", step.TxHash).Info("Step completed")

	return &types.StepResult{
		Success:     true,
		Status:      types.StepCompleted,
		TxStatus:    tx.Status,
		TxHash:      step.TxHash,
		ExecutionID: step.ExecutionID,
	}, nil
}

// persistStep writes the step and the aggregate status derived from the
// in-memory step states in one store call.
func (o *Orchestrator) persistStep(ctx context.Context, tx *types.CrossChainTransaction, step *types.Step) error {
	tx.Status = aggregateStatus(tx)
	return o.transactions.UpdateStep(ctx, tx.ID, step, tx.Status)
}

func aggregateStatus(tx *types.CrossChainTransaction) types.TransactionStatus {
	completed := 0
	started := false

	for _, s := range tx.Steps {
		switch s.Status {
		case types.StepCompleted:
			completed++
			started = true
		case types.StepFailed, types.StepInProgress:
			started = true
		}
	}

	switch {
	case completed == len(tx.Steps):
		return types.TxStatusCompleted
	case started:
		return types.TxStatusInProgress
	default:
		return types.TxStatusPrepared
	}
}

// isTerminalStepError reports whether a step failure can never be cured by a
// retry: the bridge gave up, the chain reverted the call, or the inputs are
// invalid. Everything else is treated as a transient provider fault.
func isTerminalStepError(err error) bool {
	var bridgeErr *commonerrors.BridgeFailedError
	var chainErr *commonerrors.ChainCallError
	var validationErr *commonerrors.ValidationError
	return errors.As(err, &bridgeErr) || errors.As(err, &chainErr) || errors.As(err, &validationErr)
}

// executionPendingError marks a bridge execution that has not settled yet.
// It is an internal signal, never returned to callers.
type executionPendingError struct {
	executionID string
	subStatus   types.SubStatus
}

func (e *executionPendingError) Error() string {
	return fmt.Sprintf("bridge execution %s still pending: %s", e.executionID, e.subStatus)
}

func (o *Orchestrator) runDirectTransfer(ctx context.Context, tx *types.CrossChainTransaction, step *types.Step, onChainTxHash string) error {
	gw := o.registry.Get(tx.SourceNetwork)
	if gw == nil {
		return commonerrors.ErrGatewayNotFound
	}

	// A caller-supplied hash means the transfer was already broadcast; only
	// its confirmation is tracked here.
	transfer := &types.Transfer{Hash: onChainTxHash}
	if onChainTxHash == "" {
		amount, ok := new(big.Int).SetString(tx.Amount, 10)
		if !ok {
			return commonerrors.NewValidationError("amount", "must be a base-10 integer")
		}

		var err error
		transfer, err = gw.SendAsset(ctx, &types.TransferIntent{
			ToAddress:    tx.ToAddress,
			Amount:       amount,
			TokenAddress: tx.TokenAddress,
			Reference:    tx.ID,
		})
		if err != nil {
			return err
		}
	}

	step.TxHash = transfer.Hash

	status, err := gw.WaitTransferConfirmation(ctx, transfer)
	if err != nil {
		return err
	}

	switch status {
	case types.TransferDone:
		return nil
	case types.TransferFailed:
		return commonerrors.NewChainCallError(tx.SourceNetwork.String(), "transfer", fmt.Errorf("transfer %s reverted", transfer.Hash))
	default:
		return commonerrors.NewTimeoutError("transfer confirmation", "unknown outcome, retry")
	}
}

func (o *Orchestrator) runInitiateBridge(ctx context.Context, tx *types.CrossChainTransaction, step *types.Step) error {
	quote, err := o.bridge.QuoteRoute(ctx, &types.RouteRequest{
		SourceNetwork: tx.SourceNetwork,
		TargetNetwork: tx.TargetNetwork,
		FromAddress:   tx.FromAddress,
		ToAddress:     tx.ToAddress,
		Amount:        tx.Amount,
		TokenAddress:  tx.TokenAddress,
	})
	if err != nil {
		return err
	}

	executionID, err := o.bridge.Execute(ctx, quote)
	if err != nil {
		return err
	}

	step.ExecutionID = executionID
	return nil
}

func (o *Orchestrator) runMonitorBridge(ctx context.Context, tx *types.CrossChainTransaction, step *types.Step) error {
	executionID := bridgeExecutionID(tx)
	if executionID == "" {
		return commonerrors.NewInvalidStateError("transaction", string(tx.Status), "monitor bridge without an execution id")
	}
	step.ExecutionID = executionID

	state, err := o.bridge.GetStatus(ctx, executionID)
	if err != nil {
		return err
	}

	switch state.Status {
	case types.ExecutionDone:
		step.TxHash = state.TxHash
		return nil
	case types.ExecutionFailed:
		return commonerrors.NewBridgeFailedError(executionID, string(state.SubStatus))
	default:
		return &executionPendingError{executionID: executionID, subStatus: state.SubStatus}
	}
}

func (o *Orchestrator) runConfirmReceipt(ctx context.Context, tx *types.CrossChainTransaction, step *types.Step) error {
	deal, err := o.deals.GetDeal(ctx, tx.DealID)
	if err != nil {
		return err
	}

	result, err := o.contract.HandleIncomingDeposit(ctx, deal.ContractAddress(), tx.TargetNetwork,
		bridgeExecutionID(tx), tx.SourceNetwork, tx.FromAddress, tx.Amount, tx.TokenAddress)
	if err != nil {
		return err
	}

	step.TxHash = result.TransactionHash
	return nil
}

// bridgeExecutionID returns the execution id recorded by the
// initiate-bridge step, empty if bridging never started.
func bridgeExecutionID(tx *types.CrossChainTransaction) string {
	for _, s := range tx.Steps {
		if s.ExecutionID != "" {
			return s.ExecutionID
		}
	}
	return ""
}
