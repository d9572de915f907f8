package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/crossarb/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "crossarb",
	Short: "A cross-chain flash loan arbitrage bot",
	Long: `A bot that watches the price of an asset on two networks, detects
profitable divergence and executes flash-loan-funded cross-chain arbitrage.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.crossarb.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
