// Package scheduler runs the two periodic jobs of the escrow automation
// core: deadline enforcement and cross-chain monitoring. The jobs are
// independent; each carries its own overlap guard so a slow run is skipped
// rather than stacked.
package scheduler

import (
	"sync"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/escrowcontract"
	"github.com/TrustRails/escrow-lib/orchestrator"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// jobGuard prevents overlapping runs of a single job. TryStart returns
// false while a run is in flight; the caller skips without touching the
// store.
type jobGuard struct {
	mutex   sync.Mutex
	running bool
}

func (g *jobGuard) TryStart() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.running {
		return false
	}
	g.running = true
	return true
}

func (g *jobGuard) Finish() {
	g.mutex.Lock()
	g.running = false
	g.mutex.Unlock()
}

// Scheduler owns the cron runner and the job dependencies.
type Scheduler struct {
	config       *Config
	deals        types.DealStore
	transactions types.TransactionStore
	registry     types.GatewayRegistry
	contract     escrowcontract.Adapter
	orchestrator *orchestrator.Orchestrator
	logger       *logrus.Logger

	cron          *cron.Cron
	deadlineGuard jobGuard
	monitorGuard  jobGuard
}

// New creates a new scheduler.
//
// Parameters:
// - config: the resolved jobs configuration.
// - deals: the deal persistence layer.
// - transactions: the transaction persistence layer.
// - registry: the gateway registry for direct contract calls.
// - contract: the smart-contract bridge adapter.
// - orch: the cross-chain transaction orchestrator.
// - logger: the logger for logging events.
//
// Returns:
// - *Scheduler: a new scheduler instance.
func New(config *Config, deals types.DealStore, transactions types.TransactionStore,
	registry types.GatewayRegistry, contract escrowcontract.Adapter,
	orch *orchestrator.Orchestrator, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		config:       config,
		deals:        deals,
		transactions: transactions,
		registry:     registry,
		contract:     contract,
		orchestrator: orch,
		logger:       logger,
	}
}

// Start registers and starts the scheduled jobs. With jobs disabled by
// configuration it logs and returns without registering anything. An
// invalid cron expression skips only the job it belongs to.
func (s *Scheduler) Start() {
	if !s.config.Enabled {
		s.logger.Warn("Scheduled jobs disabled, nothing to start")
		return
	}

	s.cron = cron.New()

	if _, err := s.cron.AddFunc(s.config.DeadlineSpec, s.runDeadlineEnforcement); err != nil {
		s.logger.WithError(err).WithField("spec", s.config.DeadlineSpec).
			Error("Invalid deadline job schedule, job not registered")
	} else {
		s.logger.WithField("spec", s.config.DeadlineSpec).Info("Deadline enforcement job registered")
	}

	if _, err := s.cron.AddFunc(s.config.MonitoringSpec, s.runCrossChainMonitoring); err != nil {
		s.logger.WithError(err).WithField("spec", s.config.MonitoringSpec).
			Error("Invalid monitoring job schedule, job not registered")
	} else {
		s.logger.WithField("spec", s.config.MonitoringSpec).Info("Cross-chain monitoring job registered")
	}

	s.cron.Start()
}

// Stop stops the cron runner and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
