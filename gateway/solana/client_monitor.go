package solana

import (
	"context"

	"github.com/TrustRails/escrow-lib/connectionmonitor"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// solanaConnectionManager implements connectionmonitor.NodeClient.
type solanaConnectionManager struct {
	gw *solana
}

func (m *solanaConnectionManager) CheckConnection(ctx context.Context) error {
	client := m.gw.getClient()
	if client == nil {
		return errors.New("client not initialized")
	}

	_, err := client.GetHealth(ctx)
	return err
}

func (m *solanaConnectionManager) Reconnect(ctx context.Context) error {
	client := rpc.New(m.gw.config.RpcUrl)

	m.gw.clientMutex.Lock()
	m.gw.client = client
	m.gw.clientMutex.Unlock()

	return nil
}

func (s *solana) initMonitor(ctx context.Context) error {
	s.monitorMutex.Lock()
	defer s.monitorMutex.Unlock()

	connectionManager := &solanaConnectionManager{gw: s}
	s.monitor = connectionmonitor.NewConnectionMonitor(connectionManager, s.logger, s.config.Network.String())
	return s.monitor.Start(ctx)
}
