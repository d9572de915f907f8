package flashloan

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/gas"
	"github.com/michaelpento.lv/crossarb/types"
	"github.com/michaelpento.lv/crossarb/utils/metrics"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// mockClient simulates a node accepting transactions and producing receipts.
type mockClient struct {
	mu            sync.Mutex
	nonce         uint64
	sendErr       error
	receiptStatus uint64
	noReceipt     bool
	sent          []*ethtypes.Transaction
}

func (m *mockClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Number: big.NewInt(1), BaseFee: big.NewInt(50_000_000_000)}, nil
}

func (m *mockClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *mockClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonce, nil
}

func (m *mockClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, tx)
	m.nonce++
	return nil
}

func (m *mockClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noReceipt {
		return nil, ethereum.NotFound
	}
	return &ethtypes.Receipt{Status: m.receiptStatus, TxHash: txHash, GasUsed: 210000}, nil
}

func (m *mockClient) SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (m *mockClient) Close() {}

func newTestExecutor(t *testing.T, client *mockClient) *Executor {
	t.Helper()
	account, err := chain.NewAccount(testKeyHex)
	require.NoError(t, err)

	network := &chain.Network{Name: "ethereum", ChainID: big.NewInt(1), Client: client}
	logger := zaptest.NewLogger(t)
	estimator := gas.NewEstimator(account.Address, 1.25, 1.10, logger)

	executor, err := NewExecutor(network, account, estimator, &Config{
		LendingPool:         common.HexToAddress("0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9"),
		Asset:               common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		GasLimit:            500000,
		ConfirmationTimeout: 200 * time.Millisecond,
		ReceiptPollInterval: 10 * time.Millisecond,
	}, logger, metrics.NewRegistry())
	require.NoError(t, err)
	return executor
}

func TestExecuteConfirmsLoan(t *testing.T) {
	client := &mockClient{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	executor := newTestExecutor(t, client)

	result, err := executor.Execute(context.Background(), big.NewInt(1_000_000))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, uint64(210000), result.GasUsed)

	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	assert.Equal(t, result.TxHash, tx.Hash())
	assert.Equal(t, uint8(ethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, "0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9", tx.To().Hex())
	assert.NotEmpty(t, tx.Data())
}

func TestExecuteRecomputesFeesPerSubmission(t *testing.T) {
	client := &mockClient{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	executor := newTestExecutor(t, client)

	first, err := executor.Execute(context.Background(), big.NewInt(1_000_000))
	require.NoError(t, err)
	second, err := executor.Execute(context.Background(), big.NewInt(1_000_000))
	require.NoError(t, err)

	// Two submissions in one attempt carry distinct, freshly-read nonces.
	assert.Equal(t, uint64(0), first.Fees.Nonce)
	assert.Equal(t, uint64(1), second.Fees.Nonce)
	assert.NotSame(t, first.Fees, second.Fees)
}

func TestExecuteRevertedReceipt(t *testing.T) {
	client := &mockClient{receiptStatus: ethtypes.ReceiptStatusFailed}
	executor := newTestExecutor(t, client)

	_, err := executor.Execute(context.Background(), big.NewInt(1_000_000))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransactionFailed)
}

func TestExecuteSubmissionRejected(t *testing.T) {
	client := &mockClient{sendErr: errors.New("nonce too low")}
	executor := newTestExecutor(t, client)

	_, err := executor.Execute(context.Background(), big.NewInt(1_000_000))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransactionFailed)
}

func TestExecuteConfirmationTimeout(t *testing.T) {
	client := &mockClient{noReceipt: true}
	executor := newTestExecutor(t, client)

	_, err := executor.Execute(context.Background(), big.NewInt(1_000_000))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfirmationTimeout)
}

func TestExecuteRejectsInvalidAmount(t *testing.T) {
	client := &mockClient{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	executor := newTestExecutor(t, client)

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := executor.Execute(context.Background(), amount)
		assert.ErrorIs(t, err, types.ErrTransactionFailed)
	}
	assert.Empty(t, client.sent)
}
