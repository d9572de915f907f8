package bridge

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/gateway"
)

// Bridge router ABI for cross-network asset transfers
const routerABI = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "destinationChainId", "type": "uint256"},
			{"internalType": "address", "name": "recipient", "type": "address"},
			{"internalType": "address", "name": "token", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "send",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// NetworkEndpoints maps a network name to its bridge router and asset token
// addresses.
type NetworkEndpoints struct {
	Router common.Address
	Token  common.Address
}

// Router implements gateway.BridgeGateway over a router contract deployed
// on each configured network. The transfer is non-atomic: a successful
// receipt on the origin only proves the deposit side.
type Router struct {
	endpoints map[string]NetworkEndpoints
	recipient common.Address
	decimals  int32
	submitter *gateway.Submitter
	abi       abi.ABI
	logger    *zap.Logger
}

// NewRouter creates a bridge client over the given per-network endpoints.
func NewRouter(endpoints map[string]NetworkEndpoints, recipient common.Address, assetDecimals int32, submitter *gateway.Submitter, logger *zap.Logger) (*Router, error) {
	parsedABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge router ABI: %w", err)
	}
	return &Router{
		endpoints: endpoints,
		recipient: recipient,
		decimals:  assetDecimals,
		submitter: submitter,
		abi:       parsedABI,
		logger:    logger,
	}, nil
}

// Transfer deposits amount into the origin network's router addressed to
// the destination chain. Success is the origin receipt's status; the
// bridged amount passes through unchanged.
func (r *Router) Transfer(ctx context.Context, from, to *chain.Network, amount decimal.Decimal) (gateway.BridgeResult, error) {
	ep, ok := r.endpoints[from.Name]
	if !ok {
		return gateway.BridgeResult{}, fmt.Errorf("no bridge router configured for %s", from.Name)
	}

	rawAmount := amount.Shift(r.decimals).BigInt()
	calldata, err := r.abi.Pack("send", new(big.Int).Set(to.ChainID), r.recipient, ep.Token, rawAmount)
	if err != nil {
		return gateway.BridgeResult{}, fmt.Errorf("failed to pack bridge send: %w", err)
	}

	receipt, err := r.submitter.Submit(ctx, from, ep.Router, calldata)
	if err != nil {
		return gateway.BridgeResult{}, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		r.logger.Error("Bridge transfer reverted",
			zap.String("from", from.Name),
			zap.String("to", to.Name),
			zap.String("amount", amount.String()),
			zap.String("tx_hash", receipt.TxHash.Hex()))
		return gateway.BridgeResult{Success: false}, nil
	}

	r.logger.Info("Bridge transfer confirmed",
		zap.String("from", from.Name),
		zap.String("to", to.Name),
		zap.String("amount", amount.String()),
		zap.String("tx_hash", receipt.TxHash.Hex()))

	return gateway.BridgeResult{Success: true, Amount: amount}, nil
}
