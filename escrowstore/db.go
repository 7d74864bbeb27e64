package escrowstore

import (
	"time"

	"github.com/TrustRails/escrow-lib/common/types"
	_ "github.com/lib/pq"
)

const (
	// defaultPollingThreshold is how stale a transaction's last status check
	// must be before the monitoring job polls the provider again.
	defaultPollingThreshold = 15 * time.Minute
	// defaultStuckThreshold is how long a cross-chain deal may sit without
	// activity before it counts as stuck.
	defaultStuckThreshold = 24 * time.Hour
)

// Store is the Postgres-backed persistence query layer for deals and
// cross-chain transactions. It is constructed once at bootstrap and injected
// into the orchestrator and scheduler.
type Store struct {
	dbConnStr        string
	pollingThreshold time.Duration
	stuckThreshold   time.Duration

	// deadlineRetryCeiling caps how often a manual-intervention deal is
	// retried by the deadline job; zero means retry indefinitely.
	deadlineRetryCeiling int
}

var (
	_ types.DealStore        = (*Store)(nil)
	_ types.TransactionStore = (*Store)(nil)
)

// Option customizes a Store.
type Option func(*Store)

// WithPollingThreshold overrides the monitoring poll staleness threshold.
func WithPollingThreshold(d time.Duration) Option {
	return func(s *Store) { s.pollingThreshold = d }
}

// WithStuckThreshold overrides the stuck-deal inactivity threshold.
func WithStuckThreshold(d time.Duration) Option {
	return func(s *Store) { s.stuckThreshold = d }
}

// WithDeadlineRetryCeiling caps deadline-job retries of deals already in a
// manual-intervention state; zero retries them indefinitely.
func WithDeadlineRetryCeiling(n int) Option {
	return func(s *Store) { s.deadlineRetryCeiling = n }
}

// NewStore creates a new Store instance with the provided connection string.
//
// Parameters:
// - connStr: the database connection string.
// - opts: optional threshold overrides.
//
// Returns:
// - *Store: a pointer to the newly created Store instance.
// - error: an error if the creation of the Store instance fails.
func NewStore(connStr string, opts ...Option) (*Store, error) {
	store := &Store{
		dbConnStr:        connStr,
		pollingThreshold: defaultPollingThreshold,
		stuckThreshold:   defaultStuckThreshold,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}
