package types

// DealStatus is the closed set of escrow deal states. Transitions driven by
// the automation core are validated against the dealTransitions table;
// unknown transitions are rejected instead of being written to the store.
type DealStatus string

const (
	// StatusAwaitingFulfillment is the state of a deal whose conditions are not yet fulfilled.
	StatusAwaitingFulfillment DealStatus = "AWAITING_FULFILLMENT"
	// StatusInFinalApproval is the final buyer-approval window for a regular deal.
	StatusInFinalApproval DealStatus = "IN_FINAL_APPROVAL"
	// StatusCrossChainFinalApproval is the final buyer-approval window for a cross-chain deal.
	StatusCrossChainFinalApproval DealStatus = "CROSS_CHAIN_IN_FINAL_APPROVAL"
	// StatusInDispute is the dispute-resolution window for a regular deal.
	StatusInDispute DealStatus = "IN_DISPUTE"
	// StatusCrossChainInDispute is the dispute-resolution window for a cross-chain deal.
	StatusCrossChainInDispute DealStatus = "CROSS_CHAIN_IN_DISPUTE"
	// StatusFundsReleased is the terminal success state for a regular deal.
	StatusFundsReleased DealStatus = "FUNDS_RELEASED"
	// StatusCrossChainFundsReleased is the terminal success state for a cross-chain deal.
	StatusCrossChainFundsReleased DealStatus = "CROSS_CHAIN_FUNDS_RELEASED"
	// StatusCancelledAfterDisputeDeadline is the terminal failure state for a regular deal.
	StatusCancelledAfterDisputeDeadline DealStatus = "CANCELLED_AFTER_DISPUTE_DEADLINE"
	// StatusCrossChainCancelledAfterDisputeDeadline is the terminal failure state for a cross-chain deal.
	StatusCrossChainCancelledAfterDisputeDeadline DealStatus = "CROSS_CHAIN_CANCELLED_AFTER_DISPUTE_DEADLINE"
	// StatusAutoReleaseFailed flags a regular deal whose automatic release failed and needs manual intervention.
	StatusAutoReleaseFailed DealStatus = "AUTO_RELEASE_FAILED"
	// StatusAutoCancellationFailed flags a regular deal whose automatic cancellation failed.
	StatusAutoCancellationFailed DealStatus = "AUTO_CANCELLATION_FAILED"
	// StatusCrossChainAutoCancellationFailed flags a cross-chain deal whose automatic cancellation failed.
	StatusCrossChainAutoCancellationFailed DealStatus = "CROSS_CHAIN_AUTO_CANCELLATION_FAILED"
	// StatusCrossChainReleaseRequiresIntervention flags a cross-chain deal whose automatic release failed.
	StatusCrossChainReleaseRequiresIntervention DealStatus = "CROSS_CHAIN_RELEASE_REQUIRES_INTERVENTION"
	// StatusCrossChainStuck flags a cross-chain deal with no progress past the stuck threshold.
	StatusCrossChainStuck DealStatus = "CROSS_CHAIN_STUCK"
)

// dealTransitions is the allowed transition table for the automation core.
// User-driven transitions live outside this library and are not listed.
var dealTransitions = map[DealStatus][]DealStatus{
	StatusAwaitingFulfillment: {
		StatusInFinalApproval,
		StatusCrossChainFinalApproval,
		StatusCrossChainStuck,
	},
	StatusInFinalApproval: {
		StatusFundsReleased,
		StatusAutoReleaseFailed,
		StatusInDispute,
	},
	StatusCrossChainFinalApproval: {
		StatusCrossChainFundsReleased,
		StatusCrossChainReleaseRequiresIntervention,
		StatusCrossChainInDispute,
		StatusCrossChainStuck,
	},
	StatusInDispute: {
		StatusCancelledAfterDisputeDeadline,
		StatusAutoCancellationFailed,
		StatusFundsReleased,
	},
	StatusCrossChainInDispute: {
		StatusCrossChainCancelledAfterDisputeDeadline,
		StatusCrossChainAutoCancellationFailed,
		StatusCrossChainFundsReleased,
		StatusCrossChainStuck,
	},
	// Manual-intervention states stay eligible for the next scheduled sweep.
	StatusAutoReleaseFailed: {
		StatusFundsReleased,
		StatusAutoReleaseFailed,
	},
	StatusAutoCancellationFailed: {
		StatusCancelledAfterDisputeDeadline,
		StatusAutoCancellationFailed,
	},
	// Failed cancellations may only be re-attempted as cancellations; a
	// release from this state is never allowed.
	StatusCrossChainAutoCancellationFailed: {
		StatusCrossChainCancelledAfterDisputeDeadline,
		StatusCrossChainAutoCancellationFailed,
		StatusCrossChainStuck,
	},
	StatusCrossChainReleaseRequiresIntervention: {
		StatusCrossChainFundsReleased,
		StatusCrossChainCancelledAfterDisputeDeadline,
		StatusCrossChainReleaseRequiresIntervention,
		StatusCrossChainStuck,
	},
	StatusCrossChainStuck: {
		StatusCrossChainFundsReleased,
		StatusCrossChainCancelledAfterDisputeDeadline,
	},
}

// CanTransitionTo reports whether the automation core may move a deal from
// the current status to the target status.
func (s DealStatus) CanTransitionTo(target DealStatus) bool {
	for _, allowed := range dealTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionSources returns every status the automation core may move to
// the target from. Used by the store to make transition checks part of the
// atomic update predicate.
func TransitionSources(target DealStatus) []DealStatus {
	var sources []DealStatus
	for from, targets := range dealTransitions {
		for _, t := range targets {
			if t == target {
				sources = append(sources, from)
				break
			}
		}
	}
	return sources
}

// IsTerminal reports whether the status ends automated processing for good.
func (s DealStatus) IsTerminal() bool {
	switch s {
	case StatusFundsReleased,
		StatusCrossChainFundsReleased,
		StatusCancelledAfterDisputeDeadline,
		StatusCrossChainCancelledAfterDisputeDeadline:
		return true
	}
	return false
}

// IsCrossChain reports whether the status belongs to the cross-chain subset.
func (s DealStatus) IsCrossChain() bool {
	switch s {
	case StatusCrossChainFinalApproval,
		StatusCrossChainInDispute,
		StatusCrossChainFundsReleased,
		StatusCrossChainCancelledAfterDisputeDeadline,
		StatusCrossChainReleaseRequiresIntervention,
		StatusCrossChainAutoCancellationFailed,
		StatusCrossChainStuck:
		return true
	}
	return false
}

// TransactionStatus is the state of a cross-chain transaction record.
type TransactionStatus string

const (
	// TxStatusPrepared is the status of a transaction after preparation, before any step ran.
	TxStatusPrepared TransactionStatus = "prepared"
	// TxStatusInProgress is the status of a transaction with at least one step started.
	TxStatusInProgress TransactionStatus = "in_progress"
	// TxStatusCompleted is the status of a transaction whose steps all completed.
	TxStatusCompleted TransactionStatus = "completed"
	// TxStatusFailed is the status of a transaction that can make no further progress.
	TxStatusFailed TransactionStatus = "failed"
)

// StepStatus is the state of a single step inside a cross-chain transaction.
type StepStatus string

const (
	// StepPending is the status of a step that has not started yet.
	StepPending StepStatus = "pending"
	// StepInProgress is the status of a step currently executing.
	StepInProgress StepStatus = "in_progress"
	// StepCompleted is the status of a successfully finished step.
	StepCompleted StepStatus = "completed"
	// StepFailed is the status of a step that errored and may be retried.
	StepFailed StepStatus = "failed"
)

// ConditionType classifies deal conditions; only CROSS_CHAIN conditions gate
// automated fund release.
type ConditionType string

const (
	// ConditionCrossChain marks a condition fulfilled by cross-chain settlement.
	ConditionCrossChain ConditionType = "CROSS_CHAIN"
	// ConditionStandard marks a buyer-attested off-chain condition.
	ConditionStandard ConditionType = "STANDARD"
)

// ConditionStatus is the fulfillment state of a deal condition.
type ConditionStatus string

const (
	// ConditionPendingBuyerAction is the initial state of a condition.
	ConditionPendingBuyerAction ConditionStatus = "PENDING_BUYER_ACTION"
	// ConditionFulfilledByBuyer marks a condition attested as fulfilled.
	ConditionFulfilledByBuyer ConditionStatus = "FULFILLED_BY_BUYER"
)

// ExecutionStatus is the bridge provider's view of one execution.
type ExecutionStatus string

const (
	// ExecutionNotFound indicates the provider does not know the execution id yet.
	ExecutionNotFound ExecutionStatus = "NOT_FOUND"
	// ExecutionPending indicates the transfer is still moving between chains.
	ExecutionPending ExecutionStatus = "PENDING"
	// ExecutionDone indicates the transfer settled on the destination chain.
	ExecutionDone ExecutionStatus = "DONE"
	// ExecutionFailed indicates the provider gave up on the transfer.
	ExecutionFailed ExecutionStatus = "FAILED"
)

// IsTerminal reports whether the execution status is final for the provider.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionDone || s == ExecutionFailed
}

// SubStatus refines a PENDING or FAILED execution status.
type SubStatus string

const (
	// WaitSourceConfirmations indicates the bridge is waiting for additional confirmations.
	WaitSourceConfirmations SubStatus = "WAIT_SOURCE_CONFIRMATIONS"

	// WaitDestinationTransaction indicates the destination transaction has not been mined yet.
	WaitDestinationTransaction SubStatus = "WAIT_DESTINATION_TRANSACTION"

	// BridgeNotAvailable indicates the bridge API is temporarily unavailable.
	BridgeNotAvailable SubStatus = "BRIDGE_NOT_AVAILABLE"

	// ChainNotAvailable indicates the RPC for the source or destination chain is temporarily unavailable.
	ChainNotAvailable SubStatus = "CHAIN_NOT_AVAILABLE"

	// RefundInProgress indicates the refund has been requested and is being processed.
	RefundInProgress SubStatus = "REFUND_IN_PROGRESS"

	// UnknownError indicates the status of the transfer cannot be determined.
	UnknownError SubStatus = "UNKNOWN_ERROR"

	// Completed indicates the transfer was successful.
	Completed SubStatus = "COMPLETED"

	// Refunded indicates the transfer was not successful and tokens were refunded.
	Refunded SubStatus = "REFUNDED"

	// SlippageExceeded indicates the return amount is below the slippage limit.
	SlippageExceeded SubStatus = "SLIPPAGE_EXCEEDED"

	// InsufficientBalance indicates the transfer amount exceeds the available balance.
	InsufficientBalance SubStatus = "INSUFFICIENT_BALANCE"

	// Expired indicates the transaction expired before processing.
	Expired SubStatus = "EXPIRED"
)
