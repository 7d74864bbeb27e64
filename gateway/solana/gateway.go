package solana

import (
	"context"
	"sync"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/connectionmonitor"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// solana represents the base Solana network gateway implementation. Escrow
// contracts live on EVM networks; Solana participates only as a direct
// transfer leg, so the contract call surface is not implemented here.
type solana struct {
	config *types.GatewayConfig
	logger *logrus.Logger

	// Protected fields with their own mutexes
	clientMutex sync.RWMutex
	client      *rpc.Client

	signerMutex sync.RWMutex
	signer      sol.PrivateKey

	monitorMutex sync.RWMutex
	monitor      connectionmonitor.ConnectionMonitor
}

var _ types.Gateway = (*solana)(nil)

// NewSolanaGateway creates a new Solana network gateway.
//
// Parameters:
// - ctx: the context for managing the request.
// - config: the gateway configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Gateway: a new Solana gateway instance.
// - error: an error if any issue occurs during creation.
func NewSolanaGateway(ctx context.Context, config *types.GatewayConfig, logger *logrus.Logger) (types.Gateway, error) {
	client := rpc.New(config.RpcUrl)

	gw := &solana{
		config: config,
		logger: logger,
		client: client,
	}

	if config.PrivateKey == "" {
		return nil, errors.New("escrow wallet private key is required")
	}

	walletKey, err := sol.PrivateKeyFromBase58(config.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	gw.signerMutex.Lock()
	gw.signer = walletKey
	gw.signerMutex.Unlock()

	if err := gw.initMonitor(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	return gw, nil
}

// Close stops the connection monitor and drops the client. It should be
// called when the gateway is no longer needed.
func (s *solana) Close() {
	s.monitorMutex.Lock()
	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.monitorMutex.Unlock()

	s.clientMutex.Lock()
	s.client = nil
	s.clientMutex.Unlock()
}

// Call is not supported on Solana; escrow contracts are EVM-only.
func (s *solana) Call(ctx context.Context, contractAddress string, method string, args ...interface{}) (*types.CallResult, error) {
	return nil, commonerrors.ErrNotImplemented
}

// ReadState is not supported on Solana; escrow contracts are EVM-only.
func (s *solana) ReadState(ctx context.Context, contractAddress string) (*types.ContractState, error) {
	return nil, commonerrors.ErrNotImplemented
}

func (s *solana) getClient() *rpc.Client {
	s.clientMutex.RLock()
	defer s.clientMutex.RUnlock()
	return s.client
}

func (s *solana) getSigner() sol.PrivateKey {
	s.signerMutex.RLock()
	defer s.signerMutex.RUnlock()
	return s.signer
}
