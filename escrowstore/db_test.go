package escrowstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreDefaults(t *testing.T) {
	store, err := NewStore("postgres://localhost/escrow")
	require.NoError(t, err)

	assert.Equal(t, defaultPollingThreshold, store.pollingThreshold)
	assert.Equal(t, defaultStuckThreshold, store.stuckThreshold)
	assert.Equal(t, 0, store.deadlineRetryCeiling)
}

func TestNewStoreOptions(t *testing.T) {
	store, err := NewStore("postgres://localhost/escrow",
		WithPollingThreshold(5*time.Minute),
		WithStuckThreshold(48*time.Hour),
		WithDeadlineRetryCeiling(3),
	)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, store.pollingThreshold)
	assert.Equal(t, 48*time.Hour, store.stuckThreshold)
	assert.Equal(t, 3, store.deadlineRetryCeiling)
}

func TestMarshalTimelineEvent(t *testing.T) {
	raw, err := marshalTimelineEvent("Funds automatically released", "0xabc")
	require.NoError(t, err)

	var event types.TimelineEvent
	require.NoError(t, json.Unmarshal(raw, &event))

	assert.Equal(t, "Funds automatically released", event.Event)
	assert.Equal(t, "0xabc", event.TransactionHash)
	assert.True(t, event.SystemTriggered)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
}

func TestTransitionSourceStrings(t *testing.T) {
	sources := transitionSourceStrings(types.StatusCrossChainStuck)

	assert.Contains(t, sources, string(types.StatusAwaitingFulfillment))
	assert.Contains(t, sources, string(types.StatusCrossChainFinalApproval))
	assert.NotContains(t, sources, string(types.StatusFundsReleased))
}
