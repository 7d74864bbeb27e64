package types

import "context"

// DealStatusUpdate is the payload of an atomic deal status transition.
// TimelineEventMessage is required; updates never silently drop the audit
// trail entry.
type DealStatusUpdate struct {
	Status               DealStatus
	TimelineEventMessage string
	TxHash               string
}

// CrossChainStatusUpdate is the cross-chain variant of a deal status
// transition, carrying the networks and bridge used for the audit entry.
type CrossChainStatusUpdate struct {
	Status               DealStatus
	TimelineEventMessage string
	CrossChainTxHash     string
	SourceNetwork        Network
	TargetNetwork        Network
	BridgeUsed           string
}

// DealStore is the persistence query contract for escrow deals. All updates
// are atomic read-modify-write operations against the backing store and
// append their timeline entry in the same statement.
type DealStore interface {
	// GetDeal returns the deal with the given id.
	GetDeal(ctx context.Context, dealID string) (*Deal, error)

	// GetDealsPastFinalApprovalDeadline returns deals still in a
	// final-approval state whose final-approval deadline has passed.
	GetDealsPastFinalApprovalDeadline(ctx context.Context) ([]Deal, error)

	// GetDealsPastDisputeDeadline returns deals still in dispute whose
	// dispute-resolution deadline has passed.
	GetDealsPastDisputeDeadline(ctx context.Context) ([]Deal, error)

	// GetCrossChainDealsPendingMonitoring returns cross-chain deals with a
	// linked transaction awaiting a status check.
	GetCrossChainDealsPendingMonitoring(ctx context.Context) ([]Deal, error)

	// GetStuckCrossChainDeals returns cross-chain deals in a non-terminal
	// state with no activity past the stuck threshold.
	GetStuckCrossChainDeals(ctx context.Context) ([]Deal, error)

	// UpdateDealStatus transitions a regular deal and appends the timeline
	// entry atomically.
	UpdateDealStatus(ctx context.Context, dealID string, update *DealStatusUpdate) error

	// UpdateCrossChainDealStatus transitions a cross-chain deal and appends
	// the timeline entry atomically.
	UpdateCrossChainDealStatus(ctx context.Context, dealID string, update *CrossChainStatusUpdate) error

	// FulfillCondition marks a deal condition as fulfilled by the buyer and
	// appends the matching timeline entry.
	FulfillCondition(ctx context.Context, dealID string, conditionID string) error

	// LinkTransaction records the weak reference from a deal to its
	// cross-chain transaction.
	LinkTransaction(ctx context.Context, dealID string, transactionID string) error
}

// TransactionStore is the persistence query contract for cross-chain
// transaction records, owned exclusively by the orchestrator.
type TransactionStore interface {
	// InsertTransaction persists a freshly prepared transaction.
	InsertTransaction(ctx context.Context, tx *CrossChainTransaction) error

	// GetTransaction returns the transaction with the given id.
	GetTransaction(ctx context.Context, transactionID string) (*CrossChainTransaction, error)

	// GetTransactionByDeal returns the transaction linked to a deal.
	GetTransactionByDeal(ctx context.Context, dealID string) (*CrossChainTransaction, error)

	// GetTransactionsPendingCheck returns pending or in-progress transactions
	// whose last status check is older than the polling threshold.
	GetTransactionsPendingCheck(ctx context.Context) ([]CrossChainTransaction, error)

	// UpdateStep writes one step's state and refreshes the transaction's
	// aggregate status and lastUpdated timestamp in a single statement.
	UpdateStep(ctx context.Context, transactionID string, step *Step, txStatus TransactionStatus) error

	// UpdateTransactionStatus sets the aggregate status of a transaction.
	UpdateTransactionStatus(ctx context.Context, transactionID string, status TransactionStatus) error

	// MarkStatusChecked records that a monitoring sweep polled the provider
	// for this transaction, resetting the polling threshold.
	MarkStatusChecked(ctx context.Context, transactionID string) error
}
