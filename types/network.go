package types

import "fmt"

// Network represents a Solana cluster tag carried in the invoice header.
type Network string

const (
	NetworkDevnet      Network = "devnet"
	NetworkTestnet     Network = "testnet"
	NetworkMainnetBeta Network = "mainnet-beta"
	NetworkMainnet     Network = "mainnet"
)

func (n Network) String() string {
	return string(n)
}

// IsTestnet reports whether the network is a non-production cluster.
func (n Network) IsTestnet() bool {
	return n == NetworkDevnet || n == NetworkTestnet
}

// ParseNetwork validates a network tag from the wire.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case NetworkDevnet, NetworkTestnet, NetworkMainnetBeta, NetworkMainnet:
		return Network(s), nil
	default:
		return "", &KitError{
			Code:    ErrInvalidNetwork,
			Message: fmt.Sprintf("unsupported network: %s", s),
		}
	}
}
