package monitor

import (
	"context"
	"fmt"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/coordinator"
	"github.com/michaelpento.lv/crossarb/types"
	"github.com/michaelpento.lv/crossarb/utils/metrics"
)

const seenBlockCacheSize = 1024

// Coordinator is the evaluation/execution surface the monitor drives.
type Coordinator interface {
	Evaluate(ctx context.Context) coordinator.Evaluation
	Execute(ctx context.Context, direction types.Direction, amount decimal.Decimal) *types.ArbitrageAttempt
}

// Config holds the monitor's cycle parameters.
type Config struct {
	TradeAmount      decimal.Decimal
	MaxReconnects    int
	ReconnectBackoff time.Duration
	RateLimit        float64
	RateBurst        int
}

// MarketMonitor subscribes to new-block notifications on one designated
// network and triggers one evaluation-and-possibly-execution cycle per
// notification. Cycles never overlap: each one runs to a terminal outcome
// before the next header is taken, so the same capital is never committed
// to two attempts at once.
type MarketMonitor struct {
	network *chain.Network
	coord   Coordinator
	cfg     *Config
	logger  *zap.Logger
	metrics *metrics.ArbitrageMetrics

	limiter *rate.Limiter
	seen    *lru.Cache
}

// New creates a monitor on the given network.
func New(network *chain.Network, coord Coordinator, cfg *Config, logger *zap.Logger, m *metrics.ArbitrageMetrics) (*MarketMonitor, error) {
	if network == nil || coord == nil || cfg == nil {
		return nil, fmt.Errorf("%w: monitor dependencies cannot be nil", types.ErrConfiguration)
	}
	if cfg.TradeAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: trade amount must be positive", types.ErrConfiguration)
	}

	seen, err := lru.New(seenBlockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cache: %w", err)
	}

	return &MarketMonitor{
		network: network,
		coord:   coord,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		seen:    seen,
	}, nil
}

// Run blocks until the context is cancelled or the subscription is lost
// beyond recovery. Silent stalling is not acceptable: when resubscription
// fails MaxReconnects times in a row the error is returned and the process
// is expected to terminate.
func (m *MarketMonitor) Run(ctx context.Context) error {
	reconnects := 0
	for {
		headers := make(chan *ethtypes.Header, 16)
		sub, err := m.network.Client.SubscribeNewHead(ctx, headers)
		if err != nil {
			reconnects++
			if reconnects > m.cfg.MaxReconnects {
				return fmt.Errorf("%w: subscription to %s lost after %d reconnect attempts: %v",
					types.ErrNetworkUnavailable, m.network.Name, reconnects-1, err)
			}
			m.logger.Warn("Failed to subscribe to new heads, retrying",
				zap.String("network", m.network.Name),
				zap.Int("attempt", reconnects),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.cfg.ReconnectBackoff * time.Duration(reconnects)):
			}
			continue
		}

		reconnects = 0
		m.logger.Info("Subscribed to new blocks", zap.String("network", m.network.Name))

		err = m.consume(ctx, sub.Err(), headers)
		sub.Unsubscribe()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("Block subscription interrupted, resubscribing",
			zap.String("network", m.network.Name),
			zap.Error(err))
	}
}

// consume processes headers until the subscription errors or the context
// ends. Each cycle is run inline so the next header is not taken up before
// the current attempt reaches a terminal outcome.
func (m *MarketMonitor) consume(ctx context.Context, subErr <-chan error, headers <-chan *ethtypes.Header) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-subErr:
			return err
		case header := <-headers:
			if header == nil {
				continue
			}
			if ok, _ := m.seen.ContainsOrAdd(header.Hash(), struct{}{}); ok {
				continue
			}
			if !m.limiter.Allow() {
				continue
			}
			m.runCycle(ctx, header)
		}
	}
}

// runCycle performs one evaluate-and-possibly-execute pass with the fixed
// configured trial amount.
func (m *MarketMonitor) runCycle(ctx context.Context, header *ethtypes.Header) {
	start := time.Now()
	defer func() {
		m.metrics.CycleLatency.Observe(time.Since(start).Seconds())
	}()

	m.logger.Debug("New block notification",
		zap.String("network", m.network.Name),
		zap.Uint64("block", header.Number.Uint64()))

	eval := m.coord.Evaluate(ctx)
	if eval.Outcome != coordinator.OutcomeOpportunity {
		return
	}

	attempt := m.coord.Execute(ctx, eval.Opportunity.Direction, m.cfg.TradeAmount)
	m.logger.Info("Cycle completed",
		zap.Uint64("block", header.Number.Uint64()),
		zap.Uint64("attempt_id", attempt.ID),
		zap.String("status", string(attempt.Status)))
}
