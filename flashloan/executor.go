package flashloan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/gas"
	"github.com/michaelpento.lv/crossarb/types"
)

// Aave-style pool ABI for flash loan operations
const lendingPoolABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "receiverAddress", "type": "address"},
			{"internalType": "address[]", "name": "assets", "type": "address[]"},
			{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"},
			{"internalType": "bytes", "name": "params", "type": "bytes"}
		],
		"name": "flashLoan",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Config holds the executor's contract and confirmation settings.
type Config struct {
	LendingPool         common.Address
	Asset               common.Address
	GasLimit            uint64
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
}

// Result is the confirmed outcome of a flash loan transaction.
type Result struct {
	TxHash  common.Hash
	GasUsed uint64
	Fees    *gas.FeeParams
}

// Executor builds, signs, submits and confirms a single loan-funded
// transaction on one network.
type Executor struct {
	network   *chain.Network
	account   *chain.Account
	estimator *gas.Estimator
	cfg       *Config
	abi       abi.ABI
	logger    *zap.Logger

	metrics struct {
		loans    prometheus.Counter
		failures prometheus.Counter
		latency  prometheus.Histogram
	}
}

// NewExecutor creates a flash loan executor for the configured lending pool.
func NewExecutor(network *chain.Network, account *chain.Account, estimator *gas.Estimator, cfg *Config, logger *zap.Logger, reg prometheus.Registerer) (*Executor, error) {
	if network == nil || account == nil || estimator == nil || cfg == nil {
		return nil, fmt.Errorf("%w: executor dependencies cannot be nil", types.ErrConfiguration)
	}

	parsedABI, err := abi.JSON(strings.NewReader(lendingPoolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse lending pool ABI: %w", err)
	}

	e := &Executor{
		network:   network,
		account:   account,
		estimator: estimator,
		cfg:       cfg,
		abi:       parsedABI,
		logger:    logger,
	}

	factory := promauto.With(reg)
	e.metrics.loans = factory.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_flashloan_loans_total",
		Help: "Total number of flash loans submitted",
	})
	e.metrics.failures = factory.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_flashloan_failures_total",
		Help: "Total number of failed flash loan executions",
	})
	e.metrics.latency = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossarb_flashloan_latency_seconds",
		Help:    "Latency of flash loan execution including confirmation",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	return e, nil
}

// Execute requests a flash loan of amount, with the account as borrower and
// beneficiary and an empty auxiliary payload, and blocks until a receipt is
// observed or the confirmation timeout elapses. Fee parameters are obtained
// fresh immediately before building; no failure escapes as a panic.
func (e *Executor) Execute(ctx context.Context, amount *big.Int) (*Result, error) {
	start := time.Now()
	defer func() {
		e.metrics.latency.Observe(time.Since(start).Seconds())
	}()

	if amount == nil || amount.Sign() <= 0 {
		e.metrics.failures.Inc()
		return nil, fmt.Errorf("%w: invalid loan amount", types.ErrTransactionFailed)
	}

	callData, err := e.abi.Pack("flashLoan",
		e.account.Address,
		[]common.Address{e.cfg.Asset},
		[]*big.Int{amount},
		[]byte{},
	)
	if err != nil {
		e.metrics.failures.Inc()
		return nil, fmt.Errorf("%w: failed to pack flash loan data: %v", types.ErrTransactionFailed, err)
	}

	fees, err := e.estimator.Estimate(ctx, e.network)
	if err != nil {
		e.metrics.failures.Inc()
		e.logFailure(amount, err)
		return nil, err
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   e.network.ChainID,
		Nonce:     fees.Nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       e.cfg.GasLimit,
		To:        &e.cfg.LendingPool,
		Value:     big.NewInt(0),
		Data:      callData,
	})

	signer := ethtypes.LatestSignerForChainID(e.network.ChainID)
	signedTx, err := ethtypes.SignTx(tx, signer, e.account.Key())
	if err != nil {
		e.metrics.failures.Inc()
		return nil, fmt.Errorf("%w: failed to sign transaction: %v", types.ErrTransactionFailed, err)
	}

	if err := e.network.Client.SendTransaction(ctx, signedTx); err != nil {
		e.metrics.failures.Inc()
		e.logFailure(amount, err)
		return nil, fmt.Errorf("%w: submission rejected: %v", types.ErrTransactionFailed, err)
	}

	e.metrics.loans.Inc()
	e.logger.Info("Flash loan submitted",
		zap.String("network", e.network.Name),
		zap.String("amount", amount.String()),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", fees.Nonce))

	receipt, err := e.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		e.metrics.failures.Inc()
		e.logFailure(amount, err)
		return nil, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		e.metrics.failures.Inc()
		err := fmt.Errorf("%w: receipt status %d for tx %s", types.ErrTransactionFailed, receipt.Status, signedTx.Hash().Hex())
		e.logFailure(amount, err)
		return nil, err
	}

	e.logger.Info("Flash loan confirmed",
		zap.String("network", e.network.Name),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed))

	return &Result{TxHash: signedTx.Hash(), GasUsed: receipt.GasUsed, Fees: fees}, nil
}

// waitForReceipt polls for the transaction receipt until the confirmation
// timeout. On timeout it does not assume the transaction landed or not; the
// caller treats the attempt as failed conservatively.
func (e *Executor) waitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.network.Client.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: no receipt for %s within %s", types.ErrConfirmationTimeout, txHash.Hex(), e.cfg.ConfirmationTimeout)
			}
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Executor) logFailure(amount *big.Int, err error) {
	e.logger.Error("Flash loan execution failed",
		zap.String("network", e.network.Name),
		zap.String("amount", amount.String()),
		zap.Error(err))
}
