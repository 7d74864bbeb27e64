package evm

import (
	"context"

	"github.com/TrustRails/escrow-lib/connectionmonitor"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// evmConnectionManager implements connectionmonitor.NodeClient.
type evmConnectionManager struct {
	gw *evm
}

func (m *evmConnectionManager) CheckConnection(ctx context.Context) error {
	client := m.gw.getClient()
	if client == nil {
		return errors.New("client not initialized")
	}

	_, err := client.BlockNumber(ctx)
	return err
}

func (m *evmConnectionManager) Reconnect(ctx context.Context) error {
	client, err := ethclient.Dial(m.gw.config.RpcUrl)
	if err != nil {
		return errors.Wrap(err, "failed to redial node")
	}

	m.gw.clientMutex.Lock()
	if m.gw.client != nil {
		m.gw.client.Close()
	}
	m.gw.client = client
	m.gw.clientMutex.Unlock()

	return nil
}

func (e *evm) initMonitor(ctx context.Context) error {
	e.monitorMutex.Lock()
	defer e.monitorMutex.Unlock()

	connectionManager := &evmConnectionManager{gw: e}
	e.monitor = connectionmonitor.NewConnectionMonitor(connectionManager, e.logger, e.config.Network.String())
	return e.monitor.Start(ctx)
}
