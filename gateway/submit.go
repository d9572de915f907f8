package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/gas"
	"github.com/michaelpento.lv/crossarb/types"
)

// Submitter signs and submits contract calls for the gateway clients and
// waits for their receipts. Fee parameters are estimated fresh for every
// submission, never reused.
type Submitter struct {
	account   *chain.Account
	estimator *gas.Estimator
	gasLimit  uint64
	timeout   time.Duration
	poll      time.Duration
	logger    *zap.Logger
}

// NewSubmitter creates a submitter bound to the signing account.
func NewSubmitter(account *chain.Account, estimator *gas.Estimator, gasLimit uint64, timeout, poll time.Duration, logger *zap.Logger) *Submitter {
	return &Submitter{
		account:   account,
		estimator: estimator,
		gasLimit:  gasLimit,
		timeout:   timeout,
		poll:      poll,
		logger:    logger,
	}
}

// Submit builds a dynamic-fee transaction for the calldata, signs it,
// submits it on the given network and blocks for the receipt. The receipt
// is returned regardless of its status; callers decide success explicitly.
func (s *Submitter) Submit(ctx context.Context, network *chain.Network, to common.Address, calldata []byte) (*ethtypes.Receipt, error) {
	fees, err := s.estimator.Estimate(ctx, network)
	if err != nil {
		return nil, err
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   network.ChainID,
		Nonce:     fees.Nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       s.gasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      calldata,
	})

	signer := ethtypes.LatestSignerForChainID(network.ChainID)
	signedTx, err := ethtypes.SignTx(tx, signer, s.account.Key())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction: %v", types.ErrTransactionFailed, err)
	}

	if err := network.Client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("%w: submission rejected on %s: %v", types.ErrTransactionFailed, network.Name, err)
	}

	s.logger.Debug("Transaction submitted",
		zap.String("network", network.Name),
		zap.String("to", to.Hex()),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", fees.Nonce))

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		receipt, err := network.Client.TransactionReceipt(waitCtx, signedTx.Hash())
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: no receipt for %s within %s", types.ErrConfirmationTimeout, signedTx.Hash().Hex(), s.timeout)
			}
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}
}
