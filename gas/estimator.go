package gas

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/types"
)

// FeeParams are the fee-market parameters for one transaction submission.
// They are computed fresh immediately before every submission and must not
// be reused; fee markets move every block and the nonce must reflect the
// current pending count.
type FeeParams struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                uint64
}

// Estimator computes fee parameters for a target network.
type Estimator struct {
	account common.Address
	logger  *zap.Logger

	// Multipliers in basis points over 1000, e.g. 1250 = 1.25x. Fixed at
	// startup from config.
	baseFeeMul     int64
	priorityFeeMul int64
}

// NewEstimator creates a fee estimator for the given signing account.
func NewEstimator(account common.Address, baseFeeMultiplier, priorityFeeMultiplier float64, logger *zap.Logger) *Estimator {
	return &Estimator{
		account:        account,
		logger:         logger,
		baseFeeMul:     int64(baseFeeMultiplier * 1000),
		priorityFeeMul: int64(priorityFeeMultiplier * 1000),
	}
}

// Estimate reads the latest base fee, the suggested priority fee and the
// account's pending nonce from the network. The nonce read is last to keep
// the race window before submission small.
func (e *Estimator) Estimate(ctx context.Context, network *chain.Network) (*FeeParams, error) {
	header, err := network.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest header on %s: %v", types.ErrNetworkUnavailable, network.Name, err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	tipCap, err := network.Client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get priority fee on %s: %v", types.ErrNetworkUnavailable, network.Name, err)
	}

	nonce, err := network.Client.PendingNonceAt(ctx, e.account)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get pending nonce on %s: %v", types.ErrNetworkUnavailable, network.Name, err)
	}

	maxFee := new(big.Int).Mul(baseFee, big.NewInt(e.baseFeeMul))
	maxFee.Div(maxFee, big.NewInt(1000))
	priorityFee := new(big.Int).Mul(tipCap, big.NewInt(e.priorityFeeMul))
	priorityFee.Div(priorityFee, big.NewInt(1000))

	// maxFeePerGas must cover the tip as well as the padded base fee.
	maxFee.Add(maxFee, priorityFee)

	e.logger.Debug("Estimated fee parameters",
		zap.String("network", network.Name),
		zap.String("base_fee", baseFee.String()),
		zap.String("max_fee_per_gas", maxFee.String()),
		zap.String("max_priority_fee_per_gas", priorityFee.String()),
		zap.Uint64("nonce", nonce))

	return &FeeParams{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priorityFee,
		Nonce:                nonce,
	}, nil
}
