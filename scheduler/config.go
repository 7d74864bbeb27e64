package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/sirupsen/logrus"
)

const (
	// defaultDeadlineSpec runs the deadline enforcement job every 30 minutes.
	defaultDeadlineSpec = "*/30 * * * *"

	// defaultMonitoringSpec runs the cross-chain monitoring job every 15 minutes.
	defaultMonitoringSpec = "*/15 * * * *"

	// defaultReleaseWaitBudget bounds how long a single job run waits for a
	// bridge execution to settle before handing off to manual intervention.
	defaultReleaseWaitBudget = 10 * time.Minute
)

// Config holds the scheduled-jobs configuration. Enabled false means the
// signing credentials were absent and no jobs will be registered.
type Config struct {
	DeadlineSpec       string
	MonitoringSpec     string
	ReleaseWaitBudget  time.Duration
	DeadlineMaxRetries int
	Enabled            bool
}

// ConfigFromEnv builds the jobs configuration from environment variables.
//
// ESCROW_DEADLINE_CRON and ESCROW_MONITORING_CRON override the job
// schedules. ESCROW_RELEASE_WAIT_BUDGET bounds bridge settlement waits.
// ESCROW_DEADLINE_MAX_RETRIES caps how many sweeps re-attempt a deal stuck
// in a manual-intervention state, zero meaning unlimited. The jobs are
// disabled entirely with a warning when ESCROW_WALLET_PRIVATE_KEY is missing
// or when no ESCROW_RPC_* endpoint is configured, so a deployment that
// cannot sign or cannot reach any chain never schedules work.
//
// Parameters:
// - logger: the logger for logging configuration warnings.
//
// Returns:
// - *Config: the resolved configuration.
func ConfigFromEnv(logger *logrus.Logger) *Config {
	cfg := &Config{
		DeadlineSpec:      defaultDeadlineSpec,
		MonitoringSpec:    defaultMonitoringSpec,
		ReleaseWaitBudget: defaultReleaseWaitBudget,
		Enabled:           true,
	}

	if spec := os.Getenv("ESCROW_DEADLINE_CRON"); spec != "" {
		cfg.DeadlineSpec = spec
	}
	if spec := os.Getenv("ESCROW_MONITORING_CRON"); spec != "" {
		cfg.MonitoringSpec = spec
	}

	if raw := os.Getenv("ESCROW_RELEASE_WAIT_BUDGET"); raw != "" {
		budget, err := time.ParseDuration(raw)
		if err != nil {
			logger.WithError(err).WithField("value", raw).Warn("Invalid ESCROW_RELEASE_WAIT_BUDGET, using default")
		} else {
			cfg.ReleaseWaitBudget = budget
		}
	}

	if raw := os.Getenv("ESCROW_DEADLINE_MAX_RETRIES"); raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil || retries < 0 {
			logger.WithField("value", raw).Warn("Invalid ESCROW_DEADLINE_MAX_RETRIES, using unlimited")
		} else {
			cfg.DeadlineMaxRetries = retries
		}
	}

	if os.Getenv("ESCROW_WALLET_PRIVATE_KEY") == "" {
		logger.Warn("ESCROW_WALLET_PRIVATE_KEY not set, scheduled jobs disabled")
		cfg.Enabled = false
	}

	if !anyRPCEndpointConfigured() {
		logger.Warn("No ESCROW_RPC_* endpoint set, scheduled jobs disabled")
		cfg.Enabled = false
	}

	return cfg
}

// anyRPCEndpointConfigured reports whether at least one supported network has
// an RPC endpoint configured. Jobs that cannot reach any chain only burn
// retry budgets, so they are not scheduled at all.
func anyRPCEndpointConfigured() bool {
	for _, network := range types.SupportedNetworks() {
		if os.Getenv("ESCROW_RPC_"+strings.ToUpper(network.String())) != "" {
			return true
		}
	}
	return false
}
