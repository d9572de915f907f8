package oracle

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/types"
)

// mockFeedClient answers aggregator calls with a scripted answer.
type mockFeedClient struct {
	abi      abi.ABI
	answer   *big.Int
	decimals uint8
	callErr  error
}

func newMockFeedClient(t *testing.T, answer *big.Int, decimals uint8) *mockFeedClient {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	require.NoError(t, err)
	return &mockFeedClient{abi: parsed, answer: answer, decimals: decimals}
}

func (m *mockFeedClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.callErr != nil {
		return nil, m.callErr
	}
	if bytes.Equal(msg.Data[:4], m.abi.Methods["decimals"].ID) {
		return m.abi.Methods["decimals"].Outputs.Pack(m.decimals)
	}
	return m.abi.Methods["latestRoundData"].Outputs.Pack(
		big.NewInt(1), m.answer, big.NewInt(0), big.NewInt(0), big.NewInt(1),
	)
}

func (m *mockFeedClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return nil, errors.New("not implemented")
}
func (m *mockFeedClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return nil, errors.New("not implemented")
}
func (m *mockFeedClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, errors.New("not implemented")
}
func (m *mockFeedClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return errors.New("not implemented")
}
func (m *mockFeedClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return nil, errors.New("not implemented")
}
func (m *mockFeedClient) SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error) {
	return nil, errors.New("not implemented")
}
func (m *mockFeedClient) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (m *mockFeedClient) Close()                                        {}

func feedOracle(t *testing.T, client chain.Client) (*ChainlinkOracle, *chain.Network) {
	t.Helper()
	o, err := NewChainlinkOracle(map[string]common.Address{
		"ethereum/ETH": common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return o, &chain.Network{Name: "ethereum", ChainID: big.NewInt(1), Client: client}
}

func TestGetPriceNormalizesDecimals(t *testing.T) {
	// 2050.00000000 with 8 feed decimals
	client := newMockFeedClient(t, big.NewInt(205_000_000_000), 8)
	o, network := feedOracle(t, client)

	price, err := o.GetPrice(context.Background(), network, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "2050", price.String())
}

func TestGetPriceRejectsNonPositiveAnswer(t *testing.T) {
	for _, answer := range []*big.Int{big.NewInt(0), big.NewInt(-1)} {
		client := newMockFeedClient(t, answer, 8)
		o, network := feedOracle(t, client)

		_, err := o.GetPrice(context.Background(), network, "ETH")
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrPriceUnavailable)
	}
}

func TestGetPriceUnknownFeed(t *testing.T) {
	client := newMockFeedClient(t, big.NewInt(1), 8)
	o, network := feedOracle(t, client)

	_, err := o.GetPrice(context.Background(), network, "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
}

func TestGetPriceNetworkFailure(t *testing.T) {
	client := newMockFeedClient(t, big.NewInt(1), 8)
	client.callErr = errors.New("rpc down")
	o, network := feedOracle(t, client)

	_, err := o.GetPrice(context.Background(), network, "ETH")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNetworkUnavailable)
}
