package trade

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/gateway"
)

// V2-style swap router ABI
const swapRouterABI = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsOut",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"}
		],
		"name": "swapExactTokensForTokens",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// NetworkEndpoints maps a network name to its swap router and trade path.
type NetworkEndpoints struct {
	Router common.Address
	Path   []common.Address
}

// Swapper implements gateway.TradeGateway over a V2-style router per
// network. Realized profit is quoted through getAmountsOut immediately
// before the swap.
type Swapper struct {
	endpoints map[string]NetworkEndpoints
	recipient common.Address
	decimals  int32
	submitter *gateway.Submitter
	abi       abi.ABI
	logger    *zap.Logger
}

// NewSwapper creates a trade client over the given per-network endpoints.
func NewSwapper(endpoints map[string]NetworkEndpoints, recipient common.Address, assetDecimals int32, submitter *gateway.Submitter, logger *zap.Logger) (*Swapper, error) {
	parsedABI, err := abi.JSON(strings.NewReader(swapRouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse swap router ABI: %w", err)
	}
	return &Swapper{
		endpoints: endpoints,
		recipient: recipient,
		decimals:  assetDecimals,
		submitter: submitter,
		abi:       parsedABI,
		logger:    logger,
	}, nil
}

// Swap quotes and executes a swap of amount on the network's router.
// Success is the receipt's status; the reported amount and profit come
// from the quote taken immediately before submission.
func (s *Swapper) Swap(ctx context.Context, network *chain.Network, amount decimal.Decimal) (gateway.TradeResult, error) {
	ep, ok := s.endpoints[network.Name]
	if !ok {
		return gateway.TradeResult{}, fmt.Errorf("no swap router configured for %s", network.Name)
	}

	rawIn := amount.Shift(s.decimals).BigInt()
	rawOut, err := s.quote(ctx, network, ep, rawIn)
	if err != nil {
		return gateway.TradeResult{}, err
	}

	calldata, err := s.abi.Pack("swapExactTokensForTokens", rawIn, rawOut, ep.Path, s.recipient)
	if err != nil {
		return gateway.TradeResult{}, fmt.Errorf("failed to pack swap: %w", err)
	}

	receipt, err := s.submitter.Submit(ctx, network, ep.Router, calldata)
	if err != nil {
		return gateway.TradeResult{}, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		s.logger.Error("Swap reverted",
			zap.String("network", network.Name),
			zap.String("amount_in", amount.String()),
			zap.String("tx_hash", receipt.TxHash.Hex()))
		return gateway.TradeResult{Success: false}, nil
	}

	out := decimal.NewFromBigInt(rawOut, -s.decimals)
	profit := out.Sub(amount)

	s.logger.Info("Swap confirmed",
		zap.String("network", network.Name),
		zap.String("amount_in", amount.String()),
		zap.String("amount_out", out.String()),
		zap.String("profit", profit.String()),
		zap.String("tx_hash", receipt.TxHash.Hex()))

	return gateway.TradeResult{Success: true, Amount: out, Profit: profit}, nil
}

// quote reads the router's expected output for the trade path.
func (s *Swapper) quote(ctx context.Context, network *chain.Network, ep NetworkEndpoints, amountIn *big.Int) (*big.Int, error) {
	calldata, err := s.abi.Pack("getAmountsOut", amountIn, ep.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getAmountsOut: %w", err)
	}

	result, err := network.Client.CallContract(ctx, ethereum.CallMsg{To: &ep.Router, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("quote failed on %s: %w", network.Name, err)
	}

	values, err := s.abi.Unpack("getAmountsOut", result)
	if err != nil {
		return nil, fmt.Errorf("malformed quote on %s: %w", network.Name, err)
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, fmt.Errorf("malformed quote on %s", network.Name)
	}
	return amounts[len(amounts)-1], nil
}
