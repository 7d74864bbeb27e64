// Command escrowd runs the escrow automation core: it connects the deal
// store, per-network gateways and the bridge provider, then drives the
// scheduled deadline-enforcement and cross-chain monitoring jobs until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/TrustRails/escrow-lib/bridge"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/TrustRails/escrow-lib/escrowcontract"
	"github.com/TrustRails/escrow-lib/escrowstore"
	"github.com/TrustRails/escrow-lib/gateway"
	"github.com/TrustRails/escrow-lib/orchestrator"
	"github.com/TrustRails/escrow-lib/scheduler"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	if level, err := logrus.ParseLevel(os.Getenv("ESCROW_LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("escrowd failed")
	}
}

func run(logger *logrus.Logger) error {
	connStr := os.Getenv("ESCROW_DATABASE_URL")
	if connStr == "" {
		return fmt.Errorf("ESCROW_DATABASE_URL is required")
	}

	jobsConfig := scheduler.ConfigFromEnv(logger)

	store, err := escrowstore.NewStore(connStr,
		escrowstore.WithDeadlineRetryCeiling(jobsConfig.DeadlineMaxRetries))
	if err != nil {
		return err
	}

	registry := gateway.NewRegistry(gateway.NewFactory(), logger)
	defer shutdownGateways(registry)

	ctx := context.Background()
	for _, network := range types.SupportedNetworks() {
		config, ok := gatewayConfigFromEnv(network)
		if !ok {
			logger.WithField("network", network).Info("No RPC endpoint configured, network disabled")
			continue
		}

		if err := registry.Add(ctx, config); err != nil {
			logger.WithError(err).WithField("network", network).Error("Failed to register gateway")
			continue
		}
		logger.WithField("network", network).Info("Gateway registered")
	}

	bridgeClient := bridge.NewClient(
		os.Getenv("ESCROW_BRIDGE_API_URL"),
		os.Getenv("ESCROW_BRIDGE_API_KEY"),
		logger,
	)

	adapter := escrowcontract.NewAdapter(registry, bridgeClient, logger)
	orch := orchestrator.New(store, store, registry, bridgeClient, adapter, logger)

	jobs := scheduler.New(jobsConfig, store, store, registry, adapter, orch, logger)
	jobs.Start()
	defer jobs.Stop()

	logger.Info("escrowd started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	logger.WithField("signal", sig.String()).Info("Shutting down")
	return nil
}

// gatewayConfigFromEnv builds a gateway config for a network from
// ESCROW_RPC_<NETWORK> and the matching signing key. Networks without an
// RPC endpoint stay disabled.
func gatewayConfigFromEnv(network types.Network) (*types.GatewayConfig, bool) {
	rpcURL := os.Getenv("ESCROW_RPC_" + strings.ToUpper(network.String()))
	if rpcURL == "" {
		return nil, false
	}

	privateKey := os.Getenv("ESCROW_WALLET_PRIVATE_KEY")
	if network.Type() == types.SOLANA {
		privateKey = os.Getenv("ESCROW_SOLANA_PRIVATE_KEY")
	}
	if privateKey == "" {
		return nil, false
	}

	return &types.GatewayConfig{
		Network:     network,
		ChainType:   network.Type(),
		ChainID:     network.ChainID(),
		RpcUrl:      rpcURL,
		TxType:      2,
		WaitNBlocks: 2,
		PrivateKey:  privateKey,
	}, true
}

func shutdownGateways(registry types.GatewayRegistry) {
	for _, network := range types.SupportedNetworks() {
		registry.Remove(network)
	}
}
