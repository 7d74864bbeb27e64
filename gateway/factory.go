package gateway

import (
	"context"
	"sync"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	commontypes "github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/gateway/evm"
	"github.com/TrustRails/escrow-lib/gateway/solana"
	"github.com/sirupsen/logrus"
)

// GatewayConstructor represents a function that constructs a new gateway
// instance for one network family.
//
// Parameters:
// - ctx: the context for managing the creation.
// - config: the configuration for the gateway.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Gateway: the constructed gateway instance.
// - error: an error if the gateway construction fails.
type GatewayConstructor func(ctx context.Context, config *commontypes.GatewayConfig, logger *logrus.Logger) (commontypes.Gateway, error)

type gatewayFactory struct {
	// constructors stores the mapping of chain types to their constructors.
	constructors map[commontypes.ChainType]GatewayConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewFactory creates a new instance of the gateway factory with the default
// EVM and Solana constructors registered.
func NewFactory() Factory {
	factory := &gatewayFactory{
		constructors: make(map[commontypes.ChainType]GatewayConstructor),
	}

	factory.registerConstructors()

	return factory
}

// RegisterConstructor registers a new gateway constructor.
//
// Parameters:
// - chainType: the network family to register.
// - constructor: the constructor function for the family.
func (f *gatewayFactory) RegisterConstructor(chainType commontypes.ChainType, constructor GatewayConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateGateway creates a new gateway instance based on the configuration.
func (f *gatewayFactory) CreateGateway(ctx context.Context, config *commontypes.GatewayConfig, logger *logrus.Logger) (commontypes.Gateway, error) {
	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[config.ChainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, commonerrors.ErrInvalidChainType
	}

	return constructor(ctx, config, logger)
}

// registerConstructors registers the default network family constructors.
func (f *gatewayFactory) registerConstructors() {
	f.RegisterConstructor(commontypes.EVM, func(ctx context.Context, config *commontypes.GatewayConfig, logger *logrus.Logger) (commontypes.Gateway, error) {
		return evm.NewEvmGateway(ctx, config, logger)
	})

	f.RegisterConstructor(commontypes.SOLANA, func(ctx context.Context, config *commontypes.GatewayConfig, logger *logrus.Logger) (commontypes.Gateway, error) {
		return solana.NewSolanaGateway(ctx, config, logger)
	})
}
