package evm

import (
	"context"
	"sync"
	"time"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/connectionmonitor"
	"github.com/TrustRails/escrow-lib/gateway/evm/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// TxTypeLegacy represents the legacy transaction type.
	TxTypeLegacy = 0
	// TxTypeEIP1559 represents the EIP-1559 transaction type.
	TxTypeEIP1559 = 2
	// receiptPollInterval is how often pending receipts are polled.
	receiptPollInterval = time.Second
)

// evm represents the base EVM network gateway implementation.
type evm struct {
	config *types.GatewayConfig // Gateway configuration.
	logger *logrus.Logger       // Logger for logging events.

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex      // Mutex for client.
	client      *ethclient.Client // Ethereum client.

	signerMutex sync.RWMutex  // Mutex for signer.
	signer      signer.Signer // Signer for the escrow wallet.

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

var _ types.Gateway = (*evm)(nil)

// NewEvmGateway creates a new EVM network gateway.
//
// Parameters:
// - ctx: the context for managing the request.
// - config: the gateway configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Gateway: a new EVM gateway instance.
// - error: an error if any issue occurs during creation.
func NewEvmGateway(ctx context.Context, config *types.GatewayConfig, logger *logrus.Logger) (types.Gateway, error) {
	client, err := ethclient.Dial(config.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	gw := &evm{
		config: config,
		logger: logger,
		client: client,
	}

	if config.PrivateKey == "" {
		return nil, errors.New("escrow wallet private key is required")
	}

	privKey, err := crypto.HexToECDSA(config.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	walletSigner, err := signer.NewSigner(privKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create signer")
	}

	gw.signerMutex.Lock()
	gw.signer = walletSigner
	gw.signerMutex.Unlock()

	if err := gw.initMonitor(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	return gw, nil
}

// Close stops the connection monitor and closes the client. It should be
// called when the gateway is no longer needed.
func (e *evm) Close() {
	e.monitorMutex.Lock()
	if e.monitor != nil {
		e.monitor.Stop()
	}
	e.monitorMutex.Unlock()

	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()
}

// WalletAddress returns the escrow wallet address for this network.
func (e *evm) WalletAddress() common.Address {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()
	return e.signer.Address()
}

func (e *evm) getClient() *ethclient.Client {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return e.client
}

func (e *evm) getSigner() signer.Signer {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()
	return e.signer
}
