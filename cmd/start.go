package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/api"
	"github.com/michaelpento.lv/crossarb/chain"
	"github.com/michaelpento.lv/crossarb/config"
	"github.com/michaelpento.lv/crossarb/coordinator"
	"github.com/michaelpento.lv/crossarb/flashloan"
	"github.com/michaelpento.lv/crossarb/gas"
	"github.com/michaelpento.lv/crossarb/gateway"
	"github.com/michaelpento.lv/crossarb/gateway/bridge"
	"github.com/michaelpento.lv/crossarb/gateway/oracle"
	"github.com/michaelpento.lv/crossarb/gateway/trade"
	"github.com/michaelpento.lv/crossarb/monitor"
	"github.com/michaelpento.lv/crossarb/utils"
	"github.com/michaelpento.lv/crossarb/utils/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage bot",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		// Configuration and credentials are fatal before any capital is at
		// risk.
		if err := config.LoadEnv(); err != nil {
			log.Debug("No .env file loaded", zap.Error(err))
		}
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}
		secure, err := config.LoadSecureConfig()
		if err != nil {
			log.Fatal("Failed to load credentials", zap.Error(err))
		}
		account, err := chain.NewAccount(secure.PrivateKey)
		if err != nil {
			log.Fatal("Failed to load signing account", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		source, err := chain.Dial(ctx, cfg.SourceNetwork.Name, cfg.SourceNetwork.WSEndpoint, utils.Named("chain"))
		if err != nil {
			log.Fatal("Failed to connect to source network", zap.Error(err))
		}
		defer source.Close()
		target, err := chain.Dial(ctx, cfg.TargetNetwork.Name, cfg.TargetNetwork.WSEndpoint, utils.Named("chain"))
		if err != nil {
			log.Fatal("Failed to connect to target network", zap.Error(err))
		}
		defer target.Close()

		registry := metrics.NewRegistry()
		arbMetrics := metrics.NewArbitrageMetrics(registry)

		estimator := gas.NewEstimator(account.Address, cfg.BaseFeeMultiplier, cfg.PriorityFeeMultiplier, utils.Named("gas"))

		executor, err := flashloan.NewExecutor(source, account, estimator, &flashloan.Config{
			LendingPool:         common.HexToAddress(cfg.LendingPool),
			Asset:               common.HexToAddress(cfg.Asset),
			GasLimit:            cfg.GasLimit,
			ConfirmationTimeout: cfg.ConfirmationTimeout,
			ReceiptPollInterval: cfg.ReceiptPollInterval,
		}, utils.Named("flashloan"), registry)
		if err != nil {
			log.Fatal("Failed to create flash loan executor", zap.Error(err))
		}

		priceOracle, err := oracle.NewChainlinkOracle(map[string]common.Address{
			cfg.SourceNetwork.Name + "/" + cfg.AssetSymbol: common.HexToAddress(cfg.SourceNetwork.PriceFeed),
			cfg.TargetNetwork.Name + "/" + cfg.AssetSymbol: common.HexToAddress(cfg.TargetNetwork.PriceFeed),
		}, utils.Named("oracle"))
		if err != nil {
			log.Fatal("Failed to create price oracle", zap.Error(err))
		}

		submitter := gateway.NewSubmitter(account, estimator, cfg.GasLimit, cfg.ConfirmationTimeout, cfg.ReceiptPollInterval, utils.Named("gateway"))

		bridgeGw, err := bridge.NewRouter(map[string]bridge.NetworkEndpoints{
			cfg.SourceNetwork.Name: {
				Router: common.HexToAddress(cfg.SourceNetwork.BridgeRouter),
				Token:  common.HexToAddress(cfg.SourceNetwork.Token),
			},
			cfg.TargetNetwork.Name: {
				Router: common.HexToAddress(cfg.TargetNetwork.BridgeRouter),
				Token:  common.HexToAddress(cfg.TargetNetwork.Token),
			},
		}, account.Address, cfg.AssetDecimals, submitter, utils.Named("bridge"))
		if err != nil {
			log.Fatal("Failed to create bridge gateway", zap.Error(err))
		}

		// The swap path must end on the token it started from: the return
		// bridge only carries the configured bridge token, and profit is
		// accounted in that asset. The round trip through the quote pool is
		// where the cross-network price dislocation is captured.
		tradeGw, err := trade.NewSwapper(map[string]trade.NetworkEndpoints{
			cfg.SourceNetwork.Name: {
				Router: common.HexToAddress(cfg.SourceNetwork.SwapRouter),
				Path: []common.Address{
					common.HexToAddress(cfg.SourceNetwork.Token),
					common.HexToAddress(cfg.SourceNetwork.QuoteToken),
					common.HexToAddress(cfg.SourceNetwork.Token),
				},
			},
			cfg.TargetNetwork.Name: {
				Router: common.HexToAddress(cfg.TargetNetwork.SwapRouter),
				Path: []common.Address{
					common.HexToAddress(cfg.TargetNetwork.Token),
					common.HexToAddress(cfg.TargetNetwork.QuoteToken),
					common.HexToAddress(cfg.TargetNetwork.Token),
				},
			},
		}, account.Address, cfg.AssetDecimals, submitter, utils.Named("trade"))
		if err != nil {
			log.Fatal("Failed to create trade gateway", zap.Error(err))
		}

		coord, err := coordinator.New(source, target, priceOracle, bridgeGw, tradeGw, executor, &coordinator.Config{
			AssetSymbol:     cfg.AssetSymbol,
			AssetDecimals:   cfg.AssetDecimals,
			SpreadThreshold: cfg.SpreadThresholdDecimal(),
		}, utils.Named("coordinator"), arbMetrics)
		if err != nil {
			log.Fatal("Failed to create coordinator", zap.Error(err))
		}

		mon, err := monitor.New(source, coord, &monitor.Config{
			TradeAmount:      cfg.TradeAmountDecimal(),
			MaxReconnects:    cfg.MaxReconnects,
			ReconnectBackoff: cfg.ReconnectBackoff,
			RateLimit:        cfg.RateLimit,
			RateBurst:        cfg.RateBurst,
		}, utils.Named("monitor"), arbMetrics)
		if err != nil {
			log.Fatal("Failed to create market monitor", zap.Error(err))
		}

		var apiServer *api.Server
		if cfg.APIListenAddr != "" {
			reg := registry
			if !cfg.PrometheusEnabled {
				reg = nil
			}
			apiServer = api.New(cfg.APIListenAddr, coord.History(), reg, utils.Named("api"))
			apiServer.Start()
			defer apiServer.Stop()
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			log.Info("Shutting down gracefully...")
			cancel()
		}()

		if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatal("Market monitor terminated", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
