package orchestrator

import (
	"context"
	"math/big"
	"time"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/escrowcontract"
	"github.com/sirupsen/logrus"
)

// fakeDealStore is an in-memory DealStore recording condition fulfillments
// and transaction links.
type fakeDealStore struct {
	deals     map[string]*types.Deal
	fulfilled []string
	linked    map[string]string
}

func newFakeDealStore(deals ...*types.Deal) *fakeDealStore {
	store := &fakeDealStore{
		deals:  make(map[string]*types.Deal),
		linked: make(map[string]string),
	}
	for _, d := range deals {
		store.deals[d.ID] = d
	}
	return store
}

func (s *fakeDealStore) GetDeal(ctx context.Context, dealID string) (*types.Deal, error) {
	deal, ok := s.deals[dealID]
	if !ok {
		return nil, commonerrors.NewNotFoundError("deal", dealID)
	}
	return deal, nil
}

func (s *fakeDealStore) GetDealsPastFinalApprovalDeadline(ctx context.Context) ([]types.Deal, error) {
	return nil, nil
}

func (s *fakeDealStore) GetDealsPastDisputeDeadline(ctx context.Context) ([]types.Deal, error) {
	return nil, nil
}

func (s *fakeDealStore) GetCrossChainDealsPendingMonitoring(ctx context.Context) ([]types.Deal, error) {
	return nil, nil
}

func (s *fakeDealStore) GetStuckCrossChainDeals(ctx context.Context) ([]types.Deal, error) {
	return nil, nil
}

func (s *fakeDealStore) UpdateDealStatus(ctx context.Context, dealID string, update *types.DealStatusUpdate) error {
	return nil
}

func (s *fakeDealStore) UpdateCrossChainDealStatus(ctx context.Context, dealID string, update *types.CrossChainStatusUpdate) error {
	return nil
}

func (s *fakeDealStore) FulfillCondition(ctx context.Context, dealID string, conditionID string) error {
	s.fulfilled = append(s.fulfilled, conditionID)
	return nil
}

func (s *fakeDealStore) LinkTransaction(ctx context.Context, dealID string, transactionID string) error {
	s.linked[dealID] = transactionID
	if deal, ok := s.deals[dealID]; ok {
		deal.CrossChainTransactionID = &transactionID
	}
	return nil
}

// fakeTransactionStore is an in-memory TransactionStore.
type fakeTransactionStore struct {
	transactions map[string]*types.CrossChainTransaction
	checked      []string
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
	var pending []types.CrossChainTransaction
	for _, tx := range s.transactions {
		if tx.Status == types.TxStatusPrepared || tx.Status == types.TxStatusInProgress {
			pending = append(pending, *tx)
		}
	}
	return pending, nil
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
	tx.LastUpdated = time.Now().UTC()
	return nil
}

func (s *fakeTransactionStore) UpdateTransactionStatus(ctx context.Context, transactionID string, status types.TransactionStatus) error {
	tx, ok := s.transactions[transactionID]
	if !ok {
		return commonerrors.NewNotFoundError("transaction", transactionID)
	}
	tx.Status = status
	return nil
}

func (s *fakeTransactionStore) MarkStatusChecked(ctx context.Context, transactionID string) error {
	s.checked = append(s.checked, transactionID)
	return nil
}

// fakeBridge is a scriptable BridgeClient.
type fakeBridge struct {
	quoteErr   error
	executeErr error
	statusErr  error
	quote      *types.RouteQuote
	execution  string
	state      *types.ExecutionState
	quoteCalls int
}

func (b *fakeBridge) QuoteRoute(ctx context.Context, req *types.RouteRequest) (*types.RouteQuote, error) {
	b.quoteCalls++
	if b.quoteErr != nil {
		return nil, b.quoteErr
	}
	return b.quote, nil
}

func (b *fakeBridge) Execute(ctx context.Context, quote *types.RouteQuote) (string, error) {
	if b.executeErr != nil {
		return "", b.executeErr
	}
	return b.execution, nil
}

func (b *fakeBridge) GetStatus(ctx context.Context, executionID string) (*types.ExecutionState, error) {
	if b.statusErr != nil {
		return nil, b.statusErr
	}
	return b.state, nil
}

// fakeGateway is a scriptable Gateway for direct transfers.
type fakeGateway struct {
	transferStatus types.TransferStatus
	sendErr        error
	sentIntents    []*types.TransferIntent
	callCount      int
}

func (g *fakeGateway) Call(ctx context.Context, contractAddress string, method string, args ...interface{}) (*types.CallResult, error) {
	g.callCount++
	return &types.CallResult{TxHash: "0xcall"}, nil
}

func (g *fakeGateway) ReadState(ctx context.Context, contractAddress string) (*types.ContractState, error) {
	return &types.ContractState{State: "FUNDED", Balance: "1000"}, nil
}

func (g *fakeGateway) SendAsset(ctx context.Context, intent *types.TransferIntent) (*types.Transfer, error) {
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.sentIntents = append(g.sentIntents, intent)
	return &types.Transfer{Hash: "0xtransfer", To: intent.ToAddress, Amount: intent.Amount.String()}, nil
}

func (g *fakeGateway) WaitTransferConfirmation(ctx context.Context, transfer *types.Transfer) (types.TransferStatus, error) {
	return g.transferStatus, nil
}

// fakeRegistry maps networks to gateways without factory indirection.
type fakeRegistry struct {
	gateways map[types.Network]types.Gateway
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{gateways: make(map[types.Network]types.Gateway)}
}

func (r *fakeRegistry) Add(ctx context.Context, config *types.GatewayConfig) error { return nil }

func (r *fakeRegistry) Get(network types.Network) types.Gateway { return r.gateways[network] }

func (r *fakeRegistry) Remove(network types.Network) { delete(r.gateways, network) }

// fakeAdapter is a scriptable smart-contract bridge adapter.
type fakeAdapter struct {
	depositErr   error
	depositCalls int
}

func (a *fakeAdapter) HandleIncomingDeposit(ctx context.Context, contractAddress string, network types.Network,
	bridgeTransactionID string, sourceChain types.Network, sender string, amount string, tokenAddress string) (*escrowcontract.DepositResult, error) {
	a.depositCalls++
	if a.depositErr != nil {
		return nil, a.depositErr
	}
	return &escrowcontract.DepositResult{Success: true, TransactionHash: "0xdeposit"}, nil
}

func (a *fakeAdapter) InitiateRelease(ctx context.Context, contractAddress string, network types.Network,
	targetChain types.Network, targetAddress string) (*escrowcontract.ReleaseResult, error) {
	return &escrowcontract.ReleaseResult{Success: true}, nil
}

func (a *fakeAdapter) MonitorAndConfirm(ctx context.Context, contractAddress string, network types.Network,
	bridgeTransactionID string, executionID string, maxWaitTime time.Duration) (*escrowcontract.ConfirmResult, error) {
	return &escrowcontract.ConfirmResult{Success: true}, nil
}

func (a *fakeAdapter) CancelAfterDeadline(ctx context.Context, contractAddress string, network types.Network) (*escrowcontract.ReleaseResult, error) {
	return &escrowcontract.ReleaseResult{Success: true}, nil
}

const (
	buyerAddress  = "0x1111111111111111111111111111111111111111"
	sellerAddress = "0x2222222222222222222222222222222222222222"
)

// testDeal returns a cross-chain deal with one pending cross-chain condition
// and a real contract address.
func testDeal(id string) *types.Deal {
	contract := "0x00000000000000000000000000000000000000aa"
	return &types.Deal{
		ID:                   id,
		Status:               types.StatusAwaitingFulfillment,
		IsCrossChain:         true,
		BuyerWalletAddress:   buyerAddress,
		SellerWalletAddress:  sellerAddress,
		BuyerNetwork:         types.NetworkEthereum,
		SellerNetwork:        types.NetworkPolygon,
		SmartContractAddress: &contract,
		Conditions: []types.Condition{
			{ID: "cond-1", Type: types.ConditionCrossChain, Status: types.ConditionPendingBuyerAction},
		},
	}
}

// newTestOrchestrator wires an orchestrator over the fakes.
func newTestOrchestrator(deals *fakeDealStore, txs *fakeTransactionStore, registry *fakeRegistry,
	bridge *fakeBridge, adapter *fakeAdapter) *Orchestrator {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(deals, txs, registry, bridge, adapter, logger)
}

func goodQuote() *types.RouteQuote {
	return &types.RouteQuote{
		Provider:      "across",
		Fees:          "5000",
		EstimatedTime: 5 * time.Minute,
		Confidence:    0.95,
		RouteID:       "route-1",
	}
}

var oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil).String()
