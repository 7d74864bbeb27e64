package types

import "strings"

// Network identifies a supported blockchain network by its canonical name.
type Network string

const (
	// NetworkEthereum represents the Ethereum mainnet.
	NetworkEthereum Network = "ethereum"
	// NetworkPolygon represents the Polygon PoS network.
	NetworkPolygon Network = "polygon"
	// NetworkArbitrum represents the Arbitrum One rollup.
	NetworkArbitrum Network = "arbitrum"
	// NetworkOptimism represents the Optimism rollup.
	NetworkOptimism Network = "optimism"
	// NetworkBase represents the Base rollup.
	NetworkBase Network = "base"
	// NetworkBSC represents the BNB Smart Chain.
	NetworkBSC Network = "bsc"
	// NetworkSolana represents the Solana network.
	NetworkSolana Network = "solana"
)

// ChainType represents the virtual-machine family of a network.
type ChainType string

const (
	// EVM represents Ethereum Virtual Machine based networks.
	EVM ChainType = "EVM"
	// SOLANA represents the Solana runtime.
	SOLANA ChainType = "SOLANA"
	// UNKNOWN represents an unknown or unsupported network family.
	UNKNOWN ChainType = "UNKNOWN"
)

// String converts ChainType to string representation.
func (t ChainType) String() string {
	return string(t)
}

// networkCatalog maps every supported network to its chain type and
// numeric chain id (zero for non-EVM networks).
var networkCatalog = map[Network]struct {
	chainType ChainType
	chainID   uint64
}{
	NetworkEthereum: {EVM, 1},
	NetworkPolygon:  {EVM, 137},
	NetworkArbitrum: {EVM, 42161},
	NetworkOptimism: {EVM, 10},
	NetworkBase:     {EVM, 8453},
	NetworkBSC:      {EVM, 56},
	NetworkSolana:   {SOLANA, 0},
}

// ParseNetwork converts a free-form name to a supported Network.
//
// Returns:
// - Network: the canonical network name.
// - bool: false if the name is not a supported network.
func ParseNetwork(s string) (Network, bool) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	_, ok := networkCatalog[n]
	return n, ok
}

// IsSupported reports whether the network is a member of the supported set.
func (n Network) IsSupported() bool {
	_, ok := networkCatalog[n]
	return ok
}

// Type returns the chain type of the network, UNKNOWN if unsupported.
func (n Network) Type() ChainType {
	entry, ok := networkCatalog[n]
	if !ok {
		return UNKNOWN
	}
	return entry.chainType
}

// ChainID returns the numeric chain id of an EVM network, zero otherwise.
func (n Network) ChainID() uint64 {
	return networkCatalog[n].chainID
}

// String converts Network to string representation.
func (n Network) String() string {
	return string(n)
}

// AreNetworksEVMCompatible reports whether both networks belong to the EVM
// family, allowing a direct transfer instead of true bridging.
func AreNetworksEVMCompatible(a, b Network) bool {
	return a.Type() == EVM && b.Type() == EVM
}

// SupportedNetworks returns the supported network set in no particular order.
func SupportedNetworks() []Network {
	networks := make([]Network, 0, len(networkCatalog))
	for n := range networkCatalog {
		networks = append(networks, n)
	}
	return networks
}
