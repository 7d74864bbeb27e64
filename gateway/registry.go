package gateway

import (
	"context"
	"sync"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/sirupsen/logrus"
)

// Factory creates a gateway for a configured network.
type Factory interface {
	// CreateGateway creates a new gateway instance based on the configuration.
	//
	// Parameters:
	// - ctx: the context for managing the creation.
	// - config: the configuration for the gateway.
	// - logger: the logger for logging purposes.
	//
	// Returns:
	// - types.Gateway: the created gateway instance.
	// - error: an error if the gateway creation fails.
	CreateGateway(ctx context.Context, config *types.GatewayConfig, logger *logrus.Logger) (types.Gateway, error)
}

type networkRegistry struct {
	logger        *logrus.Logger
	gateways      map[types.Network]types.Gateway
	gatewaysMutex sync.RWMutex
	factory       Factory
	factoryMutex  sync.RWMutex
}

// NewRegistry creates a thread-safe gateway registry backed by the factory.
func NewRegistry(factory Factory, logger *logrus.Logger) types.GatewayRegistry {
	return &networkRegistry{
		gateways: make(map[types.Network]types.Gateway),
		factory:  factory,
		logger:   logger,
	}
}

func (r *networkRegistry) Add(ctx context.Context, config *types.GatewayConfig) error {
	// Lock factory for reading to prevent changes during gateway creation.
	r.factoryMutex.RLock()
	gw, err := r.factory.CreateGateway(ctx, config, r.logger)
	r.factoryMutex.RUnlock()

	if err != nil {
		return err
	}

	// Lock gateways map for writing
	r.gatewaysMutex.Lock()
	r.gateways[config.Network] = gw
	r.gatewaysMutex.Unlock()

	return nil
}

func (r *networkRegistry) Get(network types.Network) types.Gateway {
	r.gatewaysMutex.RLock()
	gw := r.gateways[network]
	r.gatewaysMutex.RUnlock()
	return gw
}

func (r *networkRegistry) Remove(network types.Network) {
	r.gatewaysMutex.Lock()
	gw := r.gateways[network]
	delete(r.gateways, network)
	r.gatewaysMutex.Unlock()

	// Stop the connection monitor of the removed gateway.
	if closer, ok := gw.(interface{ Close() }); ok {
		closer.Close()
	}
}
