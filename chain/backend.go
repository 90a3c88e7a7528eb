package chain

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Backend is the narrow view of a ledger node the gateway depends on.
// Every method is a synchronous remote call; failures are returned as *Fault.
type Backend interface {
	// ChainID returns the chain id used for EIP-155 replay protection.
	ChainID(ctx context.Context) (*big.Int, error)

	// CurrentNonce returns the account's transaction count as seen by the node.
	CurrentNonce(ctx context.Context, account common.Address) (uint64, error)

	// SuggestGasPrice returns the node's current gas price suggestion in wei.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas asks the node how much gas the given call would consume.
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)

	// SubmitSignedTransaction broadcasts an RLP-encoded signed transaction and
	// returns the hash reported by the node.
	SubmitSignedTransaction(ctx context.Context, raw []byte) (common.Hash, error)

	// CallReadOnly executes a contract call against the latest block without
	// creating a transaction.
	CallReadOnly(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// Ping checks connectivity to the node.
	Ping(ctx context.Context) error

	// Name returns a human-readable label for logs and health output.
	Name() string
}
