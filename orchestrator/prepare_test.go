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

func prepareRequest(dealID string) *PrepareRequest {
	return &PrepareRequest{
		DealID:        dealID,
		SourceNetwork: "ethereum",
		TargetNetwork: "polygon",
		FromAddress:   buyerAddress,
		ToAddress:     sellerAddress,
		Amount:        oneEther,
		UserID:        "user-1",
	}
}

func TestPrepareTransactionCrossNetwork(t *testing.T) {
	deals := newFakeDealStore(testDeal("deal-1"))
	txs := newFakeTransactionStore()
	bridge := &fakeBridge{quote: goodQuote(), execution: "exec-1"}
	o := newTestOrchestrator(deals, txs, newFakeRegistry(), bridge, &fakeAdapter{})

	tx, err := o.PrepareTransaction(context.Background(), prepareRequest("deal-1"))
	require.NoError(t, err)

	assert.True(t, tx.NeedsBridge)
	require.Len(t, tx.Steps, 3)
	assert.Equal(t, types.ActionInitiateBridge, tx.Steps[0].Action)
	assert.Equal(t, types.ActionMonitorBridge, tx.Steps[1].Action)
	assert.Equal(t, types.ActionConfirmReceipt, tx.Steps[2].Action)
	assert.Equal(t, "cond-1", tx.Steps[2].ConditionMapping)
	assert.Equal(t, types.TxStatusPrepared, tx.Status)

	require.NotNil(t, tx.BridgeInfo)
	assert.True(t, tx.BridgeInfo.Available)
	assert.Equal(t, "across", tx.BridgeInfo.Provider)

	require.NotNil(t, tx.FeeEstimate)
	assert.False(t, tx.FeeEstimate.FallbackMode)
	assert.Equal(t, "5000", tx.FeeEstimate.BridgeFee)

	// The deal now holds the weak reference back.
	assert.Equal(t, tx.ID, deals.linked["deal-1"])
}

func TestPrepareTransactionSameNetwork(t *testing.T) {
	deals := newFakeDealStore(testDeal("deal-1"))
	txs := newFakeTransactionStore()
	bridge := &fakeBridge{}
	o := newTestOrchestrator(deals, txs, newFakeRegistry(), bridge, &fakeAdapter{})

	req := prepareRequest("deal-1")
	req.TargetNetwork = "ethereum"

	tx, err := o.PrepareTransaction(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, tx.NeedsBridge)
	require.Len(t, tx.Steps, 1)
	assert.Equal(t, types.ActionDirectTransfer, tx.Steps[0].Action)
	assert.Nil(t, tx.BridgeInfo)
	assert.Equal(t, "0", tx.FeeEstimate.BridgeFee)

	// No quote for a same-network transfer.
	assert.Equal(t, 0, bridge.quoteCalls)
}

func TestPrepareTransactionProviderDown(t *testing.T) {
	deals := newFakeDealStore(testDeal("deal-1"))
	txs := newFakeTransactionStore()
	bridge := &fakeBridge{quoteErr: errors.New("connection refused")}
	o := newTestOrchestrator(deals, txs, newFakeRegistry(), bridge, &fakeAdapter{})

	tx, err := o.PrepareTransaction(context.Background(), prepareRequest("deal-1"))
	require.NoError(t, err)

	require.NotNil(t, tx.BridgeInfo)
	assert.False(t, tx.BridgeInfo.Available)
	assert.Equal(t, 0.5, tx.BridgeInfo.Confidence)

	require.NotNil(t, tx.FeeEstimate)
	assert.True(t, tx.FeeEstimate.FallbackMode)
	assert.NotEqual(t, "0", tx.FeeEstimate.BridgeFee)
}

func TestPrepareTransactionValidation(t *testing.T) {
	deals := newFakeDealStore(testDeal("deal-1"))
	o := newTestOrchestrator(deals, newFakeTransactionStore(), newFakeRegistry(), &fakeBridge{}, &fakeAdapter{})

	tests := []struct {
		name   string
		mutate func(*PrepareRequest)
		target interface{}
	}{
		{"unsupported source network", func(r *PrepareRequest) { r.SourceNetwork = "dogechain" }, &commonerrors.UnsupportedNetworkError{}},
		{"unsupported target network", func(r *PrepareRequest) { r.TargetNetwork = "dogechain" }, &commonerrors.UnsupportedNetworkError{}},
		{"zero amount", func(r *PrepareRequest) { r.Amount = "0" }, &commonerrors.ValidationError{}},
		{"negative amount", func(r *PrepareRequest) { r.Amount = "-5" }, &commonerrors.ValidationError{}},
		{"non-numeric amount", func(r *PrepareRequest) { r.Amount = "1.5e18" }, &commonerrors.ValidationError{}},
		{"missing recipient", func(r *PrepareRequest) { r.ToAddress = "" }, &commonerrors.ValidationError{}},
		{"malformed evm sender", func(r *PrepareRequest) { r.FromAddress = "0xbuyer" }, &commonerrors.ValidationError{}},
		{"malformed evm recipient", func(r *PrepareRequest) { r.ToAddress = "not-an-address" }, &commonerrors.ValidationError{}},
		{"truncated evm recipient", func(r *PrepareRequest) { r.ToAddress = "0x1234" }, &commonerrors.ValidationError{}},
		{"malformed solana recipient", func(r *PrepareRequest) {
			r.TargetNetwork = "solana"
			r.ToAddress = "0x2222222222222222222222222222222222222222"
		}, &commonerrors.ValidationError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := prepareRequest("deal-1")
			tt.mutate(req)

			_, err := o.PrepareTransaction(context.Background(), req)
			require.Error(t, err)

			switch target := tt.target.(type) {
			case *commonerrors.UnsupportedNetworkError:
				assert.True(t, errors.As(err, &target))
			case *commonerrors.ValidationError:
				assert.True(t, errors.As(err, &target))
			}
		})
	}
}

func TestPrepareTransactionSolanaRecipient(t *testing.T) {
	deals := newFakeDealStore(testDeal("deal-1"))
	bridge := &fakeBridge{quote: goodQuote()}
	o := newTestOrchestrator(deals, newFakeTransactionStore(), newFakeRegistry(), bridge, &fakeAdapter{})

	req := prepareRequest("deal-1")
	req.TargetNetwork = "solana"
	req.ToAddress = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"

	tx, err := o.PrepareTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, tx.NeedsBridge)
	assert.Equal(t, types.NetworkSolana, tx.TargetNetwork)
}

func TestPrepareTransactionDealNotFound(t *testing.T) {
	o := newTestOrchestrator(newFakeDealStore(), newFakeTransactionStore(), newFakeRegistry(), &fakeBridge{}, &fakeAdapter{})

	_, err := o.PrepareTransaction(context.Background(), prepareRequest("missing"))
	assert.True(t, commonerrors.IsNotFound(err))
}
