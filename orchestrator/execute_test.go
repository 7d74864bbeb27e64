package orchestrator

import (
	"context"
	"testing"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prepareCrossChain prepares a bridged transaction over the fakes and
// returns the orchestrator plus everything the tests poke at.
func prepareCrossChain(t *testing.T) (*Orchestrator, *types.CrossChainTransaction, *fakeDealStore, *fakeBridge, *fakeAdapter) {
	t.Helper()

	deals := newFakeDealStore(testDeal("deal-1"))
	txs := newFakeTransactionStore()
	bridge := &fakeBridge{
		quote:     goodQuote(),
		execution: "exec-1",
		state:     &types.ExecutionState{Status: types.ExecutionDone, TxHash: "0xbridged"},
	}
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(deals, txs, newFakeRegistry(), bridge, adapter)

	tx, err := o.PrepareTransaction(context.Background(), prepareRequest("deal-1"))
	require.NoError(t, err)

	return o, tx, deals, bridge, adapter
}

func TestExecuteStepOutOfOrder(t *testing.T) {
	o, tx, _, _, _ := prepareCrossChain(t)

	_, err := o.ExecuteStep(context.Background(), tx.ID, 2, "")
	assert.True(t, commonerrors.IsInvalidState(err))

	_, err = o.ExecuteStep(context.Background(), tx.ID, 3, "")
	assert.True(t, commonerrors.IsInvalidState(err))
}

func TestExecuteStepUnknownTransaction(t *testing.T) {
	o, _, _, _, _ := prepareCrossChain(t)

	_, err := o.ExecuteStep(context.Background(), "nope", 1, "")
	assert.True(t, commonerrors.IsNotFound(err))
}

func TestExecuteStepUnknownIndex(t *testing.T) {
	o, tx, _, _, _ := prepareCrossChain(t)

	_, err := o.ExecuteStep(context.Background(), tx.ID, 9, "")
	assert.True(t, commonerrors.IsNotFound(err))
}

func TestExecuteStepsInOrder(t *testing.T) {
	o, tx, deals, _, adapter := prepareCrossChain(t)
	ctx := context.Background()

	result, err := o.ExecuteStep(ctx, tx.ID, 1, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "exec-1", result.ExecutionID)
	assert.Equal(t, types.TxStatusInProgress, result.TxStatus)

	result, err = o.ExecuteStep(ctx, tx.ID, 2, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0xbridged", result.TxHash)

	result, err = o.ExecuteStep(ctx, tx.ID, 3, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, types.TxStatusCompleted, result.TxStatus)
	assert.Equal(t, 1, adapter.depositCalls)

	// Final step completion fulfills the mapped condition.
	assert.Contains(t, deals.fulfilled, "cond-1")

	progress, err := o.GetStatus(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, progress.ProgressPercentage)
	assert.Equal(t, types.TxStatusCompleted, progress.Status)
	assert.Equal(t, "", progress.NextAction)
}

func TestExecuteStepCompletedIsIdempotent(t *testing.T) {
	o, tx, _, bridge, _ := prepareCrossChain(t)
	ctx := context.Background()

	_, err := o.ExecuteStep(ctx, tx.ID, 1, "")
	require.NoError(t, err)
	quoteCallsAfterFirst := bridge.quoteCalls

	result, err := o.ExecuteStep(ctx, tx.ID, 1, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, types.StepCompleted, result.Status)

	// No second provider round trip.
	assert.Equal(t, quoteCallsAfterFirst, bridge.quoteCalls)
}

func TestExecuteStepBridgeStillPending(t *testing.T) {
	o, tx, _, bridge, _ := prepareCrossChain(t)
	ctx := context.Background()

	_, err := o.ExecuteStep(ctx, tx.ID, 1, "")
	require.NoError(t, err)

	bridge.state = &types.ExecutionState{Status: types.ExecutionPending, SubStatus: types.WaitDestinationTransaction}

	result, err := o.ExecuteStep(ctx, tx.ID, 2, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.StepInProgress, result.Status)
	assert.NotEmpty(t, result.Error)

	// A pending execution is not a failure and stays retryable by execution.
	bridge.state = &types.ExecutionState{Status: types.ExecutionDone, TxHash: "0xbridged"}
	result, err = o.ExecuteStep(ctx, tx.ID, 2, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExecuteStepBridgeFailure(t *testing.T) {
	o, tx, _, bridge, _ := prepareCrossChain(t)
	ctx := context.Background()

	_, err := o.ExecuteStep(ctx, tx.ID, 1, "")
	require.NoError(t, err)

	bridge.state = &types.ExecutionState{Status: types.ExecutionFailed, SubStatus: types.SlippageExceeded}

	result, err := o.ExecuteStep(ctx, tx.ID, 2, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.StepFailed, result.Status)
	assert.Equal(t, types.TxStatusFailed, result.TxStatus)
	assert.Contains(t, result.Error, "SLIPPAGE_EXCEEDED")
}

func TestExecuteStepTransientFailureStaysRetryable(t *testing.T) {
	deals := newFakeDealStore(testDeal("deal-1"))
	txs := newFakeTransactionStore()
	bridge := &fakeBridge{quote: goodQuote(), execution: "exec-1"}
	o := newTestOrchestrator(deals, txs, newFakeRegistry(), bridge, &fakeAdapter{})
	ctx := context.Background()

	tx, err := o.PrepareTransaction(ctx, prepareRequest("deal-1"))
	require.NoError(t, err)

	_, err = o.ExecuteStep(ctx, tx.ID, 1, "")
	require.NoError(t, err)

	// A provider outage fails the step but not the transaction.
	bridge.statusErr = errors.New("provider down")
	result, err := o.ExecuteStep(ctx, tx.ID, 2, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.StepFailed, result.Status)
	assert.Equal(t, types.TxStatusInProgress, result.TxStatus)

	stored, err := txs.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TxStatusInProgress, stored.Status)

	// The transaction stays visible to the monitoring sweep and the next
	// pass finishes the transfer once the provider recovers.
	pending, err := txs.GetTransactionsPendingCheck(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	bridge.statusErr = nil
	bridge.state = &types.ExecutionState{Status: types.ExecutionDone, TxHash: "0xbridged"}
	outcome, err := o.AutoCompleteSteps(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.CompletedSteps)
}

func TestRetryStep(t *testing.T) {
	o, tx, _, bridge, _ := prepareCrossChain(t)
	ctx := context.Background()

	// Pending steps cannot be retried.
	_, err := o.RetryStep(ctx, tx.ID, 1)
	assert.True(t, commonerrors.IsInvalidState(err))

	// Fail step 2, then retry it after the provider recovers.
	_, err = o.ExecuteStep(ctx, tx.ID, 1, "")
	require.NoError(t, err)

	bridge.statusErr = errors.New("provider down")
	result, err := o.ExecuteStep(ctx, tx.ID, 2, "")
	require.NoError(t, err)
	assert.False(t, result.Success)

	bridge.statusErr = nil
	result, err = o.RetryStep(ctx, tx.ID, 2)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0xbridged", result.TxHash)

	// Retrying a completed step is a no-op reporting success.
	result, err = o.RetryStep(ctx, tx.ID, 2)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, types.StepCompleted, result.Status)
}

func TestAutoCompleteSteps(t *testing.T) {
	o, tx, _, _, _ := prepareCrossChain(t)

	outcome, err := o.AutoCompleteSteps(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.CompletedSteps)
	assert.Equal(t, 0, outcome.FailedSteps)

	progress, err := o.GetStatus(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TxStatusCompleted, progress.Status)
}

func TestAutoCompleteStepsUnlinkedDeal(t *testing.T) {
	o, _, _, _, _ := prepareCrossChain(t)

	_, err := o.AutoCompleteSteps(context.Background(), "deal-without-transaction")
	assert.True(t, commonerrors.IsNotFound(err))
}

func TestAutoCompleteStepsStopsOnPending(t *testing.T) {
	o, _, _, bridge, _ := prepareCrossChain(t)
	bridge.state = &types.ExecutionState{Status: types.ExecutionPending, SubStatus: types.WaitSourceConfirmations}

	outcome, err := o.AutoCompleteSteps(context.Background(), "deal-1")
	require.NoError(t, err)

	// Step 1 completed, step 2 is still settling, step 3 never ran.
	assert.Equal(t, 1, outcome.CompletedSteps)
	assert.Equal(t, 0, outcome.FailedSteps)
}

func TestAutoCompleteStepsRecordsFailure(t *testing.T) {
	o, _, _, bridge, _ := prepareCrossChain(t)
	bridge.state = &types.ExecutionState{Status: types.ExecutionFailed, SubStatus: types.Refunded}

	outcome, err := o.AutoCompleteSteps(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.CompletedSteps)
	assert.Equal(t, 1, outcome.FailedSteps)
}

func TestAutoCompleteTransaction(t *testing.T) {
	o, tx, _, _, _ := prepareCrossChain(t)

	outcome, err := o.AutoCompleteTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.CompletedSteps)
}

func TestDirectTransferStep(t *testing.T) {
	deal := testDeal("deal-1")
	deal.Conditions = nil
	deals := newFakeDealStore(deal)
	txs := newFakeTransactionStore()
	registry := newFakeRegistry()
	gw := &fakeGateway{transferStatus: types.TransferDone}
	registry.gateways[types.NetworkEthereum] = gw

	o := newTestOrchestrator(deals, txs, registry, &fakeBridge{}, &fakeAdapter{})

	req := prepareRequest("deal-1")
	req.TargetNetwork = "ethereum"

	tx, err := o.PrepareTransaction(context.Background(), req)
	require.NoError(t, err)

	result, err := o.ExecuteStep(context.Background(), tx.ID, 1, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0xtransfer", result.TxHash)
	assert.Equal(t, types.TxStatusCompleted, result.TxStatus)

	require.Len(t, gw.sentIntents, 1)
	assert.Equal(t, sellerAddress, gw.sentIntents[0].ToAddress)
	assert.Equal(t, oneEther, gw.sentIntents[0].Amount.String())
}

func TestDirectTransferWithExternalHash(t *testing.T) {
	deal := testDeal("deal-1")
	deal.Conditions = nil
	deals := newFakeDealStore(deal)
	registry := newFakeRegistry()
	gw := &fakeGateway{transferStatus: types.TransferDone}
	registry.gateways[types.NetworkEthereum] = gw

	o := newTestOrchestrator(deals, newFakeTransactionStore(), registry, &fakeBridge{}, &fakeAdapter{})

	req := prepareRequest("deal-1")
	req.TargetNetwork = "ethereum"

	tx, err := o.PrepareTransaction(context.Background(), req)
	require.NoError(t, err)

	// The caller already broadcast the transfer; the step only tracks its
	// confirmation and never submits a second one.
	result, err := o.ExecuteStep(context.Background(), tx.ID, 1, "0xalreadysent")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0xalreadysent", result.TxHash)
	assert.Empty(t, gw.sentIntents)
}

func TestDirectTransferReverted(t *testing.T) {
	deals := newFakeDealStore(testDeal("deal-1"))
	registry := newFakeRegistry()
	registry.gateways[types.NetworkEthereum] = &fakeGateway{transferStatus: types.TransferFailed}

	o := newTestOrchestrator(deals, newFakeTransactionStore(), registry, &fakeBridge{}, &fakeAdapter{})

	req := prepareRequest("deal-1")
	req.TargetNetwork = "ethereum"

	tx, err := o.PrepareTransaction(context.Background(), req)
	require.NoError(t, err)

	result, err := o.ExecuteStep(context.Background(), tx.ID, 1, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.StepFailed, result.Status)
	assert.Equal(t, types.TxStatusFailed, result.TxStatus)
	assert.Contains(t, result.Error, "reverted")
}
