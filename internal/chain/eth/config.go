package eth

import "time"

// Config holds the node connection and contract settings
type Config struct {
	// RPCURL is the JSON-RPC endpoint of the node
	RPCURL string
	// ContractAddress is the deployed game contract
	ContractAddress string
	// ChainID signs transactions; zero asks the node
	ChainID int64
	// PrivateKeys are hex keys the server may sign with, one per managed wallet
	PrivateKeys []string
	// GasLimit overrides estimation when non-zero
	GasLimit uint64
	// ReceiptTimeout bounds Wait when the caller's context has no deadline
	ReceiptTimeout time.Duration
	// CheckInCooldown mirrors the contract's check-in interval, used to report
	// the remaining wait when the contract rejects an early check-in
	CheckInCooldown time.Duration
}

// DefaultConfig returns settings for a local development node
func DefaultConfig() Config {
	return Config{
		RPCURL:          "http://localhost:8545",
		ReceiptTimeout:  2 * time.Minute,
		CheckInCooldown: 24 * time.Hour,
	}
}
