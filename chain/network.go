package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Client is the narrow view of an RPC client the rest of the bot depends on.
// Defined here so tests can substitute mocks without a live node.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Network binds a configured network name to its RPC client. One handle per
// configured network, immutable after startup.
type Network struct {
	Name    string
	ChainID *big.Int
	Client  Client
}

// Dial connects to a network over its websocket endpoint and resolves the
// chain ID. Connectivity failure here is fatal at startup.
func Dial(ctx context.Context, name, endpoint string, logger *zap.Logger) (*Network, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s node: %w", name, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to resolve %s chain ID: %w", name, err)
	}

	logger.Info("Connected to network",
		zap.String("network", name),
		zap.String("endpoint", endpoint),
		zap.Uint64("chain_id", chainID.Uint64()))

	return &Network{Name: name, ChainID: chainID, Client: client}, nil
}

// Close releases the underlying RPC connection.
func (n *Network) Close() {
	if n.Client != nil {
		n.Client.Close()
	}
}
