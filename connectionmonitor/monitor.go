package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// healthCheckInterval defines interval between connection health checks
	healthCheckInterval = 30 * time.Second
	// reconnectInitialInterval defines the first reconnect backoff interval
	reconnectInitialInterval = 5 * time.Second
	// maxReconnectElapsed bounds the total time spent reconnecting per check
	maxReconnectElapsed = 2 * time.Minute
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring
	Stop()
}

// NodeClient represents a blockchain node client whose connection is
// monitored and re-established when it drops.
type NodeClient interface {
	// CheckConnection checks if connection is alive
	CheckConnection(ctx context.Context) error
	// Reconnect attempts to reconnect to blockchain node
	Reconnect(ctx context.Context) error
}

type connectionMonitor struct {
	client       NodeClient
	logger       *logrus.Logger
	network      string
	stopChan     chan struct{}
	isMonitoring bool
	monitorMutex sync.RWMutex
}

// NewConnectionMonitor creates a new connection monitor instance.
//
// Parameters:
// - client: the node client to monitor.
// - logger: the logger for logging purposes.
// - network: the name of the monitored network.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(
	client NodeClient,
	logger *logrus.Logger,
	network string,
) ConnectionMonitor {
	return &connectionMonitor{
		client:       client,
		logger:       logger,
		network:      network,
		stopChan:     make(chan struct{}),
		isMonitoring: false,
	}
}

// Start starts connection monitoring.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	if m.isMonitoring {
		m.monitorMutex.Unlock()
		return errors.Errorf("connection monitor is already running for network %s", m.network)
	}
	m.isMonitoring = true
	m.monitorMutex.Unlock()

	go m.monitorConnection(ctx)
	return nil
}

// Stop stops connection monitoring.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()

	if !m.isMonitoring {
		return
	}

	close(m.stopChan)
	m.isMonitoring = false
}

// monitorConnection monitors the connection state and attempts to reconnect
// when the health check fails.
func (m *connectionMonitor) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("network", m.network).Info("Connection monitoring stopped due to context cancellation")
			return

		case <-m.stopChan:
			m.logger.WithField("network", m.network).Info("Connection monitoring stopped")
			return

		case <-ticker.C:
			if err := m.checkAndReconnect(ctx); err != nil {
				m.logger.WithFields(logrus.Fields{
					"network": m.network,
					"error":   err,
				}).Error("Failed to check or reconnect")
			}
		}
	}
}

// checkAndReconnect checks the connection state and reconnects with
// exponential backoff if the check fails.
func (m *connectionMonitor) checkAndReconnect(ctx context.Context) error {
	if err := m.client.CheckConnection(ctx); err == nil {
		m.logger.WithField("network", m.network).Debug("Ping successful")
		return nil
	} else {
		m.logger.WithFields(logrus.Fields{
			"network": m.network,
			"error":   err,
		}).Warn("Connection check failed, attempting to reconnect")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitialInterval
	policy.MaxElapsedTime = maxReconnectElapsed

	attempt := 0
	operation := func() error {
		attempt++
		if err := m.client.Reconnect(ctx); err != nil {
			m.logger.WithFields(logrus.Fields{
				"network": m.network,
				"attempt": attempt,
				"error":   err,
			}).Error("Reconnection attempt failed")
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return errors.Wrapf(err, "failed to reconnect to network %s", m.network)
	}

	m.logger.WithFields(logrus.Fields{
		"network": m.network,
		"attempt": attempt,
	}).Info("Client successfully reconnected")

	return nil
}
