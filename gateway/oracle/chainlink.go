package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/types"
)

// Chainlink aggregator ABI for price reads
const aggregatorABI = `[
	{
		"inputs": [],
		"name": "latestRoundData",
		"outputs": [
			{"internalType": "uint80", "name": "roundId", "type": "uint80"},
			{"internalType": "int256", "name": "answer", "type": "int256"},
			{"internalType": "uint256", "name": "startedAt", "type": "uint256"},
			{"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
			{"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ChainlinkOracle reads reference prices from Chainlink aggregator feeds.
// Feeds are keyed by network name and asset symbol; the set is fixed at
// startup.
type ChainlinkOracle struct {
	feeds  map[string]common.Address
	abi    abi.ABI
	logger *zap.Logger

	mu       sync.RWMutex
	decimals map[string]int32
}

// NewChainlinkOracle creates an oracle over the given feed addresses. The
// feeds map is keyed by "<network>/<asset>".
func NewChainlinkOracle(feeds map[string]common.Address, logger *zap.Logger) (*ChainlinkOracle, error) {
	if len(feeds) == 0 {
		return nil, fmt.Errorf("%w: no price feeds configured", types.ErrConfiguration)
	}

	parsedABI, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}

	return &ChainlinkOracle{
		feeds:    feeds,
		abi:      parsedABI,
		logger:   logger,
		decimals: make(map[string]int32),
	}, nil
}

// GetPrice reads the latest round from the feed for the asset on the given
// network. A non-positive answer is reported as unavailable, never as a
// tradable price.
func (o *ChainlinkOracle) GetPrice(ctx context.Context, network *chain.Network, asset string) (decimal.Decimal, error) {
	key := network.Name + "/" + asset
	feed, ok := o.feeds[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no feed configured for %s", types.ErrPriceUnavailable, key)
	}

	dec, err := o.feedDecimals(ctx, network, key, feed)
	if err != nil {
		return decimal.Zero, err
	}

	callData, err := o.abi.Pack("latestRoundData")
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to pack latestRoundData: %w", err)
	}

	result, err := network.Client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: callData}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: feed read failed for %s: %v", types.ErrNetworkUnavailable, key, err)
	}

	values, err := o.abi.Unpack("latestRoundData", result)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed round data for %s: %v", types.ErrPriceUnavailable, key, err)
	}

	answer, ok := values[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: feed %s returned non-positive answer", types.ErrPriceUnavailable, key)
	}

	price := decimal.NewFromBigInt(answer, -dec)
	o.logger.Debug("Read price feed",
		zap.String("feed", key),
		zap.String("price", price.String()))

	return price, nil
}

// feedDecimals resolves and caches the feed's decimal scaling.
func (o *ChainlinkOracle) feedDecimals(ctx context.Context, network *chain.Network, key string, feed common.Address) (int32, error) {
	o.mu.RLock()
	dec, ok := o.decimals[key]
	o.mu.RUnlock()
	if ok {
		return dec, nil
	}

	callData, err := o.abi.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to pack decimals: %w", err)
	}

	result, err := network.Client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: callData}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: decimals read failed for %s: %v", types.ErrNetworkUnavailable, key, err)
	}

	values, err := o.abi.Unpack("decimals", result)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed decimals for %s: %v", types.ErrPriceUnavailable, key, err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: malformed decimals for %s", types.ErrPriceUnavailable, key)
	}

	o.mu.Lock()
	o.decimals[key] = int32(decimals)
	o.mu.Unlock()

	return int32(decimals), nil
}
