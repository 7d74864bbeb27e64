package scheduler

import (
	"context"
	"time"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/escrowcontract"
	"github.com/TrustRails/escrow-lib/orchestrator"
	"github.com/sirupsen/logrus"
)

// fakeDealStore feeds the job queries from fixed lists and records every
// status update, counting queries so guard tests can assert zero work.
type fakeDealStore struct {
	pastFinalApproval []types.Deal
	pastDispute       []types.Deal
	pendingMonitoring []types.Deal
	stuck             []types.Deal

	deals             map[string]*types.Deal
	updates           map[string]types.DealStatus
	crossChainUpdates map[string]types.DealStatus
	queryCount        int
}

func newFakeDealStore() *fakeDealStore {
	return &fakeDealStore{
		deals:             make(map[string]*types.Deal),
		updates:           make(map[string]types.DealStatus),
		crossChainUpdates: make(map[string]types.DealStatus),
	}
}

func (s *fakeDealStore) GetDeal(ctx context.Context, dealID string) (*types.Deal, error) {
	deal, ok := s.deals[dealID]
	if !ok {
		return nil, commonerrors.NewNotFoundError("deal", dealID)
	}
	return deal, nil
}

func (s *fakeDealStore) GetDealsPastFinalApprovalDeadline(ctx context.Context) ([]types.Deal, error) {
	s.queryCount++
	return s.pastFinalApproval, nil
}

func (s *fakeDealStore) GetDealsPastDisputeDeadline(ctx context.Context) ([]types.Deal, error) {
	s.queryCount++
	return s.pastDispute, nil
}

func (s *fakeDealStore) GetCrossChainDealsPendingMonitoring(ctx context.Context) ([]types.Deal, error) {
	s.queryCount++
	return s.pendingMonitoring, nil
}

func (s *fakeDealStore) GetStuckCrossChainDeals(ctx context.Context) ([]types.Deal, error) {
	s.queryCount++
	return s.stuck, nil
}

func (s *fakeDealStore) UpdateDealStatus(ctx context.Context, dealID string, update *types.DealStatusUpdate) error {
	s.updates[dealID] = update.Status
	return nil
}

func (s *fakeDealStore) UpdateCrossChainDealStatus(ctx context.Context, dealID string, update *types.CrossChainStatusUpdate) error {
	s.crossChainUpdates[dealID] = update.Status
	return nil
}

func (s *fakeDealStore) FulfillCondition(ctx context.Context, dealID string, conditionID string) error {
	return nil
}

func (s *fakeDealStore) LinkTransaction(ctx context.Context, dealID string, transactionID string) error {
	return nil
}

// fakeTransactionStore feeds the monitoring sweep and records status checks.
type fakeTransactionStore struct {
	transactions map[string]*types.CrossChainTransaction
	pendingCheck []types.CrossChainTransaction
	checked      []string
	queryCount   int
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{transactions: make(map[string]*types.CrossChainTransaction)}
}

func (s *fakeTransactionStore) InsertTransaction(ctx context.Context, tx *types.CrossChainTransaction) error {
	s.transactions[tx.ID] = tx
	return nil
}

func (s *fakeTransactionStore) GetTransaction(ctx context.Context, transactionID string) (*types.CrossChainTransaction, error) {
	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, commonerrors.NewNotFoundError("transaction", transactionID)
	}
	return tx, nil
}

func (s *fakeTransactionStore) GetTransactionByDeal(ctx context.Context, dealID string) (*types.CrossChainTransaction, error) {
	for _, tx := range s.transactions {
		if tx.DealID == dealID {
			return tx, nil
		}
	}
	return nil, commonerrors.NewNotFoundError("transaction for deal", dealID)
}

func (s *fakeTransactionStore) GetTransactionsPendingCheck(ctx context.Context) ([]types.CrossChainTransaction, error) {
	s.queryCount++
	return s.pendingCheck, nil
}

func (s *fakeTransactionStore) UpdateStep(ctx context.Context, transactionID string, step *types.Step, txStatus types.TransactionStatus) error {
	tx, ok := s.transactions[transactionID]
	if !ok {
		return commonerrors.NewNotFoundError("transaction", transactionID)
	}
	for i := range tx.Steps {
		if tx.Steps[i].Index == step.Index {
			tx.Steps[i] = *step
		}
	}
	tx.Status = txStatus
	return nil
}

func (s *fakeTransactionStore) UpdateTransactionStatus(ctx context.Context, transactionID string, status types.TransactionStatus) error {
	if tx, ok := s.transactions[transactionID]; ok {
		tx.Status = status
	}
	return nil
}

func (s *fakeTransactionStore) MarkStatusChecked(ctx context.Context, transactionID string) error {
	s.checked = append(s.checked, transactionID)
	return nil
}

// fakeGateway counts contract calls and optionally fails them.
type fakeGateway struct {
	callErr   error
	callCount int
}

func (g *fakeGateway) Call(ctx context.Context, contractAddress string, method string, args ...interface{}) (*types.CallResult, error) {
	g.callCount++
	if g.callErr != nil {
		return nil, g.callErr
	}
	return &types.CallResult{TxHash: "0xrelease"}, nil
}

func (g *fakeGateway) ReadState(ctx context.Context, contractAddress string) (*types.ContractState, error) {
	return &types.ContractState{State: "FUNDED", Balance: "1000"}, nil
}

func (g *fakeGateway) SendAsset(ctx context.Context, intent *types.TransferIntent) (*types.Transfer, error) {
	return &types.Transfer{Hash: "0xtransfer"}, nil
}

func (g *fakeGateway) WaitTransferConfirmation(ctx context.Context, transfer *types.Transfer) (types.TransferStatus, error) {
	return types.TransferDone, nil
}

type fakeRegistry struct {
	gateways map[types.Network]types.Gateway
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{gateways: make(map[types.Network]types.Gateway)}
}

func (r *fakeRegistry) Add(ctx context.Context, config *types.GatewayConfig) error { return nil }

func (r *fakeRegistry) Get(network types.Network) types.Gateway { return r.gateways[network] }

func (r *fakeRegistry) Remove(network types.Network) { delete(r.gateways, network) }

// fakeAdapter records adapter traffic and can fail any call.
type fakeAdapter struct {
	releaseErr   error
	cancelErr    error
	releaseCalls int
	cancelCalls  int
}

func (a *fakeAdapter) HandleIncomingDeposit(ctx context.Context, contractAddress string, network types.Network,
	bridgeTransactionID string, sourceChain types.Network, sender string, amount string, tokenAddress string) (*escrowcontract.DepositResult, error) {
	return &escrowcontract.DepositResult{Success: true}, nil
}

func (a *fakeAdapter) InitiateRelease(ctx context.Context, contractAddress string, network types.Network,
	targetChain types.Network, targetAddress string) (*escrowcontract.ReleaseResult, error) {
	a.releaseCalls++
	if a.releaseErr != nil {
		return nil, a.releaseErr
	}
	return &escrowcontract.ReleaseResult{Success: true, TransactionHash: "0xrelease", ExecutionID: "exec-1", Simulated: true}, nil
}

func (a *fakeAdapter) MonitorAndConfirm(ctx context.Context, contractAddress string, network types.Network,
	bridgeTransactionID string, executionID string, maxWaitTime time.Duration) (*escrowcontract.ConfirmResult, error) {
	return &escrowcontract.ConfirmResult{Success: true, BridgeTxHash: "0xbridged"}, nil
}

func (a *fakeAdapter) CancelAfterDeadline(ctx context.Context, contractAddress string, network types.Network) (*escrowcontract.ReleaseResult, error) {
	a.cancelCalls++
	if a.cancelErr != nil {
		return nil, a.cancelErr
	}
	return &escrowcontract.ReleaseResult{Success: true, TransactionHash: "0xcancel"}, nil
}

// fakeBridge satisfies the orchestrator dependency; the jobs themselves
// never quote routes directly.
type fakeBridge struct{}

func (b *fakeBridge) QuoteRoute(ctx context.Context, req *types.RouteRequest) (*types.RouteQuote, error) {
	return &types.RouteQuote{Provider: "across", RouteID: "route-1"}, nil
}

func (b *fakeBridge) Execute(ctx context.Context, quote *types.RouteQuote) (string, error) {
	return "exec-1", nil
}

func (b *fakeBridge) GetStatus(ctx context.Context, executionID string) (*types.ExecutionState, error) {
	return &types.ExecutionState{Status: types.ExecutionDone, TxHash: "0xbridged"}, nil
}

// testHarness bundles a scheduler over fakes plus the fakes themselves.
type testHarness struct {
	scheduler    *Scheduler
	deals        *fakeDealStore
	transactions *fakeTransactionStore
	registry     *fakeRegistry
	adapter      *fakeAdapter
}

func newTestHarness() *testHarness {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	deals := newFakeDealStore()
	transactions := newFakeTransactionStore()
	registry := newFakeRegistry()
	adapter := &fakeAdapter{}
	orch := orchestrator.New(deals, transactions, registry, &fakeBridge{}, adapter, logger)

	config := &Config{
		DeadlineSpec:      defaultDeadlineSpec,
		MonitoringSpec:    defaultMonitoringSpec,
		ReleaseWaitBudget: time.Minute,
		Enabled:           true,
	}

	return &testHarness{
		scheduler:    New(config, deals, transactions, registry, adapter, orch, logger),
		deals:        deals,
		transactions: transactions,
		registry:     registry,
		adapter:      adapter,
	}
}

func contractDeal(id string, crossChain bool, status types.DealStatus) types.Deal {
	contract := "0x00000000000000000000000000000000000000aa"
	return types.Deal{
		ID:                   id,
		Status:               status,
		IsCrossChain:         crossChain,
		BuyerNetwork:         types.NetworkEthereum,
		SellerNetwork:        types.NetworkPolygon,
		BuyerWalletAddress:   "0xbuyer",
		SellerWalletAddress:  "0xseller",
		SmartContractAddress: &contract,
	}
}
