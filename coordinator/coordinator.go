package coordinator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/flashloan"
	"github.com/michaelpento.lv/crossarb/gateway"
	"github.com/michaelpento.lv/crossarb/types"
	"github.com/michaelpento.lv/crossarb/utils/metrics"
)

// EvalOutcome is the result of one evaluation cycle.
type EvalOutcome string

const (
	OutcomeOpportunity      EvalOutcome = "opportunity"
	OutcomeNoOpportunity    EvalOutcome = "no_opportunity"
	OutcomeEvaluationFailed EvalOutcome = "evaluation_failed"
)

// Evaluation carries the outcome of one cycle; Opportunity is set only for
// OutcomeOpportunity.
type Evaluation struct {
	Outcome     EvalOutcome
	Opportunity *types.ArbitrageOpportunity
	Err         error
}

// LoanExecutor funds an attempt with a single loan transaction.
type LoanExecutor interface {
	Execute(ctx context.Context, amount *big.Int) (*flashloan.Result, error)
}

// Config holds the coordinator's trading parameters.
type Config struct {
	AssetSymbol     string
	AssetDecimals   int32
	SpreadThreshold decimal.Decimal
}

// Coordinator orchestrates the arbitrage pipeline: it polls prices on both
// networks, decides direction and viability, and drives the multi-step
// cross-chain execution state machine.
type Coordinator struct {
	source *chain.Network
	target *chain.Network

	oracle gateway.PriceOracle
	bridge gateway.BridgeGateway
	trade  gateway.TradeGateway
	loan   LoanExecutor

	cfg     *Config
	history *ProfitHistory
	logger  *zap.Logger
	metrics *metrics.ArbitrageMetrics
}

// New creates a coordinator over the two configured networks.
func New(source, target *chain.Network, oracle gateway.PriceOracle, bridge gateway.BridgeGateway, trade gateway.TradeGateway, loan LoanExecutor, cfg *Config, logger *zap.Logger, m *metrics.ArbitrageMetrics) (*Coordinator, error) {
	if source == nil || target == nil || oracle == nil || bridge == nil || trade == nil || loan == nil || cfg == nil {
		return nil, fmt.Errorf("%w: coordinator dependencies cannot be nil", types.ErrConfiguration)
	}
	if cfg.SpreadThreshold.LessThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: spread threshold must exceed 1.0", types.ErrConfiguration)
	}

	return &Coordinator{
		source:  source,
		target:  target,
		oracle:  oracle,
		bridge:  bridge,
		trade:   trade,
		loan:    loan,
		cfg:     cfg,
		history: NewProfitHistory(),
		logger:  logger,
		metrics: m,
	}, nil
}

// History exposes the append-only attempt record for the operator API.
func (c *Coordinator) History() *ProfitHistory {
	return c.history
}

// Evaluate queries both networks' prices in parallel and decides whether a
// tradable spread exists. A zero or unreadable price on either side means
// the cycle failed; no attempt is started. An opportunity exists only when
// spreadRatio strictly exceeds the threshold, with the direction starting
// from the higher-priced network.
func (c *Coordinator) Evaluate(ctx context.Context) Evaluation {
	var (
		wg                 sync.WaitGroup
		srcPrice, tgtPrice decimal.Decimal
		srcErr, tgtErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		srcPrice, srcErr = c.oracle.GetPrice(ctx, c.source, c.cfg.AssetSymbol)
	}()
	go func() {
		defer wg.Done()
		tgtPrice, tgtErr = c.oracle.GetPrice(ctx, c.target, c.cfg.AssetSymbol)
	}()
	wg.Wait()

	if srcErr != nil || tgtErr != nil || srcPrice.Sign() <= 0 || tgtPrice.Sign() <= 0 {
		err := srcErr
		if err == nil {
			err = tgtErr
		}
		if err == nil {
			err = fmt.Errorf("%w: zero price reported", types.ErrPriceUnavailable)
		}
		c.logger.Warn("Price evaluation failed",
			zap.String("source_network", c.source.Name),
			zap.String("target_network", c.target.Name),
			zap.Error(err))
		c.metrics.Evaluations.WithLabelValues(string(OutcomeEvaluationFailed)).Inc()
		return Evaluation{Outcome: OutcomeEvaluationFailed, Err: err}
	}

	// The attempt starts on the higher-priced network: the loan is drawn
	// and the spread unwound from the expensive side.
	higher, lower := srcPrice, tgtPrice
	direction := types.DirectionSourceToTarget
	if tgtPrice.GreaterThan(srcPrice) {
		higher, lower = tgtPrice, srcPrice
		direction = types.DirectionTargetToSource
	}
	spreadRatio := higher.Div(lower)
	c.metrics.SpreadRatio.Observe(spreadRatio.InexactFloat64())

	if !spreadRatio.GreaterThan(c.cfg.SpreadThreshold) {
		c.logger.Debug("No opportunity",
			zap.String("source_price", srcPrice.String()),
			zap.String("target_price", tgtPrice.String()),
			zap.String("spread_ratio", spreadRatio.String()))
		c.metrics.Evaluations.WithLabelValues(string(OutcomeNoOpportunity)).Inc()
		return Evaluation{Outcome: OutcomeNoOpportunity}
	}

	opp := &types.ArbitrageOpportunity{
		SourceNetwork: c.source.Name,
		TargetNetwork: c.target.Name,
		SourcePrice:   srcPrice,
		TargetPrice:   tgtPrice,
		SpreadRatio:   spreadRatio,
		Direction:     direction,
	}

	c.logger.Info("Arbitrage opportunity detected",
		zap.String("source_price", srcPrice.String()),
		zap.String("target_price", tgtPrice.String()),
		zap.String("spread_ratio", spreadRatio.String()),
		zap.String("direction", string(direction)))
	c.metrics.Evaluations.WithLabelValues(string(OutcomeOpportunity)).Inc()

	return Evaluation{Outcome: OutcomeOpportunity, Opportunity: opp}
}

// Networks resolves the from/to pair for a trade direction.
func (c *Coordinator) Networks(direction types.Direction) (from, to *chain.Network) {
	if direction == types.DirectionTargetToSource {
		return c.target, c.source
	}
	return c.source, c.target
}

// Execute runs the strictly sequential execution state machine for one
// attempt: loan funding, bridging, trading, returning. Each gateway result
// carries an explicit success flag; success is never inferred from the
// absence of an error. Any fault, including a panic in a gateway, is
// contained at the attempt boundary and surfaces as a terminal status
// rather than a crash of the monitoring loop.
func (c *Coordinator) Execute(ctx context.Context, direction types.Direction, amount decimal.Decimal) (attempt *types.ArbitrageAttempt) {
	from, to := c.Networks(direction)

	now := time.Now()
	attempt = &types.ArbitrageAttempt{
		ID:          xxhash.Sum64String(from.Name + to.Name + now.String()),
		FromNetwork: from.Name,
		ToNetwork:   to.Name,
		Amount:      amount,
		Direction:   direction,
		Status:      types.StatusBridging,
		StartedAt:   now,
	}

	step := "funding"
	var realized, stuck decimal.Decimal
	traded := false
	defer func() {
		if r := recover(); r != nil {
			// A fault in the return leg after a confirmed trade leaves the
			// attempt in the same state as a reported return failure: value
			// realized, capital stranded on the destination.
			if traded && step == "return" {
				attempt.Profit = realized
				c.finish(attempt, types.StatusPartialSuccess)
				c.logStuckCapital(attempt, to.Name, stuck, fmt.Errorf("unexpected fault: %v", r))
				return
			}
			c.fail(attempt, step, fmt.Errorf("unexpected fault: %v", r))
		}
	}()

	loanAmount := amount.Shift(c.cfg.AssetDecimals).BigInt()
	if _, err := c.loan.Execute(ctx, loanAmount); err != nil {
		// Capital never left the account.
		c.fail(attempt, step, err)
		return attempt
	}

	step = "bridge"
	bridgeRes, err := c.bridge.Transfer(ctx, from, to, amount)
	if err != nil || !bridgeRes.Success {
		// Capital never left the origin ledger.
		c.fail(attempt, step, gatewayErr(err))
		return attempt
	}

	attempt.Status = types.StatusTrading
	step = "trade"
	tradeRes, err := c.trade.Swap(ctx, to, bridgeRes.Amount)
	if err != nil || !tradeRes.Success {
		// Capital remains bridged on the destination, untraded. No trade
		// profit is reported.
		c.fail(attempt, step, gatewayErr(err))
		return attempt
	}

	traded, realized, stuck = true, tradeRes.Profit, tradeRes.Amount

	attempt.Status = types.StatusReturning
	step = "return"
	returnRes, err := c.bridge.Transfer(ctx, to, from, tradeRes.Amount)
	if err != nil || !returnRes.Success {
		// Trade value realized but not repatriated; funds are stuck on the
		// destination network and need manual intervention.
		attempt.Profit = tradeRes.Profit
		c.finish(attempt, types.StatusPartialSuccess)
		c.logStuckCapital(attempt, to.Name, tradeRes.Amount, gatewayErr(err))
		return attempt
	}

	attempt.Profit = tradeRes.Profit
	c.finish(attempt, types.StatusSuccess)
	c.logger.Info("Arbitrage attempt succeeded",
		zap.Uint64("attempt_id", attempt.ID),
		zap.String("from", from.Name),
		zap.String("to", to.Name),
		zap.String("amount", amount.String()),
		zap.String("profit", attempt.Profit.String()))
	return attempt
}

// logStuckCapital emits the operator signal that funds need manual
// repatriation from the destination network.
func (c *Coordinator) logStuckCapital(attempt *types.ArbitrageAttempt, network string, amount decimal.Decimal, err error) {
	c.logger.Warn("Return bridge failed, capital stuck on destination",
		zap.Uint64("attempt_id", attempt.ID),
		zap.String("stuck_network", network),
		zap.String("amount", amount.String()),
		zap.String("realized_profit", attempt.Profit.String()),
		zap.Error(err))
}

// fail marks the attempt as terminally failed at the given step.
func (c *Coordinator) fail(attempt *types.ArbitrageAttempt, step string, err error) {
	if attempt.Status.Terminal() {
		return
	}
	attempt.FailedStep = step
	if err != nil {
		attempt.Cause = err.Error()
	}
	c.finish(attempt, types.StatusFailed)
	c.logger.Error("Arbitrage attempt failed",
		zap.Uint64("attempt_id", attempt.ID),
		zap.String("from", attempt.FromNetwork),
		zap.String("to", attempt.ToNetwork),
		zap.String("amount", attempt.Amount.String()),
		zap.String("step", step),
		zap.Error(err))
}

// finish sets a terminal status exactly once and records the outcome.
func (c *Coordinator) finish(attempt *types.ArbitrageAttempt, status types.AttemptStatus) {
	if attempt.Status.Terminal() {
		return
	}
	attempt.Status = status
	attempt.CompletedAt = time.Now()
	c.history.Append(*attempt)
	c.metrics.RecordAttempt(string(status), status == types.StatusSuccess)
	if attempt.Profitable() {
		c.metrics.RealizedProfit.Add(attempt.Profit.InexactFloat64())
	}
}

func gatewayErr(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("gateway reported failure")
}
