package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/michaelpento.lv/crossarb/types"
)

// NetworkConfig describes one monitored blockchain network.
type NetworkConfig struct {
	Name         string `json:"name" yaml:"name"`
	WSEndpoint   string `json:"ws_endpoint" yaml:"ws_endpoint"`
	PriceFeed    string `json:"price_feed" yaml:"price_feed"`
	BridgeRouter string `json:"bridge_router" yaml:"bridge_router"`
	SwapRouter   string `json:"swap_router" yaml:"swap_router"`
	Token        string `json:"token" yaml:"token"`
	QuoteToken   string `json:"quote_token" yaml:"quote_token"`
}

// Config is the validated bot configuration, resolved once at startup.
type Config struct {
	// Networks
	SourceNetwork NetworkConfig `json:"source_network" yaml:"source_network"`
	TargetNetwork NetworkConfig `json:"target_network" yaml:"target_network"`

	// Contract addresses on the lending network
	LendingPool   string `json:"lending_pool" yaml:"lending_pool"`
	Asset         string `json:"asset" yaml:"asset"`
	AssetSymbol   string `json:"asset_symbol" yaml:"asset_symbol"`
	AssetDecimals int32  `json:"asset_decimals" yaml:"asset_decimals"`

	// Trading parameters
	TradeAmount     string  `json:"trade_amount" yaml:"trade_amount"`
	SpreadThreshold float64 `json:"spread_threshold" yaml:"spread_threshold"`

	// Fee estimation multipliers, biased toward faster inclusion
	BaseFeeMultiplier     float64 `json:"base_fee_multiplier" yaml:"base_fee_multiplier"`
	PriorityFeeMultiplier float64 `json:"priority_fee_multiplier" yaml:"priority_fee_multiplier"`
	GasLimit              uint64  `json:"gas_limit" yaml:"gas_limit"`

	// Confirmation and reconnect behaviour
	ConfirmationTimeout time.Duration `json:"confirmation_timeout" yaml:"confirmation_timeout"`
	ReceiptPollInterval time.Duration `json:"receipt_poll_interval" yaml:"receipt_poll_interval"`
	MaxReconnects       int           `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectBackoff    time.Duration `json:"reconnect_backoff" yaml:"reconnect_backoff"`

	// Cycle rate limiting
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst"`

	// Operator API
	APIListenAddr     string `json:"api_listen_addr" yaml:"api_listen_addr"`
	PrometheusEnabled bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
}

// SecureConfig holds key material. Loaded from the environment only, never
// from the config file, never logged.
type SecureConfig struct {
	PrivateKey string
}

// ValidateConfig checks every required field and reports all failures at
// once. A failed validation is fatal at startup.
func (c *Config) ValidateConfig() error {
	var errs []string

	if c.SourceNetwork.Name == "" || c.SourceNetwork.WSEndpoint == "" {
		errs = append(errs, "source_network name and ws_endpoint must be specified")
	}
	if c.TargetNetwork.Name == "" || c.TargetNetwork.WSEndpoint == "" {
		errs = append(errs, "target_network name and ws_endpoint must be specified")
	}
	if c.SourceNetwork.Name == c.TargetNetwork.Name {
		errs = append(errs, "source and target networks must differ")
	}
	for _, n := range []NetworkConfig{c.SourceNetwork, c.TargetNetwork} {
		if n.PriceFeed == "" {
			errs = append(errs, fmt.Sprintf("price_feed must be specified for %s", n.Name))
		}
		if n.BridgeRouter == "" {
			errs = append(errs, fmt.Sprintf("bridge_router must be specified for %s", n.Name))
		}
		if n.SwapRouter == "" {
			errs = append(errs, fmt.Sprintf("swap_router must be specified for %s", n.Name))
		}
		if n.Token == "" {
			errs = append(errs, fmt.Sprintf("token address must be specified for %s", n.Name))
		}
		if n.QuoteToken == "" {
			errs = append(errs, fmt.Sprintf("quote_token address must be specified for %s", n.Name))
		}
	}
	if c.LendingPool == "" {
		errs = append(errs, "lending_pool address must be specified")
	}
	if c.Asset == "" {
		errs = append(errs, "asset address must be specified")
	}
	if c.AssetSymbol == "" {
		errs = append(errs, "asset_symbol must be specified")
	}

	if amount, err := decimal.NewFromString(c.TradeAmount); err != nil || amount.Sign() <= 0 {
		errs = append(errs, "trade_amount must be a positive decimal")
	}
	if c.AssetDecimals <= 0 {
		errs = append(errs, "asset_decimals must be positive")
	}
	if c.SpreadThreshold <= 1.0 {
		errs = append(errs, "spread_threshold must exceed 1.0")
	}
	if c.BaseFeeMultiplier < 1.0 {
		errs = append(errs, "base_fee_multiplier must be at least 1.0")
	}
	if c.PriorityFeeMultiplier < 1.0 {
		errs = append(errs, "priority_fee_multiplier must be at least 1.0")
	}
	if c.GasLimit == 0 {
		errs = append(errs, "gas_limit must be positive")
	}
	if c.ConfirmationTimeout <= 0 {
		errs = append(errs, "confirmation_timeout must be positive")
	}
	if c.ReceiptPollInterval <= 0 {
		errs = append(errs, "receipt_poll_interval must be positive")
	}
	if c.MaxReconnects <= 0 {
		errs = append(errs, "max_reconnects must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, "rate_limit and rate_burst must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrConfiguration, strings.Join(errs, "; "))
	}
	return nil
}

// TradeAmountDecimal returns the configured trial amount. Call only after
// validation.
func (c *Config) TradeAmountDecimal() decimal.Decimal {
	amount, _ := decimal.NewFromString(c.TradeAmount)
	return amount
}

// SpreadThresholdDecimal returns the opportunity threshold as a decimal.
func (c *Config) SpreadThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.SpreadThreshold)
}

// LoadConfig reads a JSON or YAML config file, applies defaults and
// validates it.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".crossarb.json")
	}

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", types.ErrConfiguration, err)
	}

	config := DefaultConfig()
	switch filepath.Ext(cfgFile) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: failed to decode config file: %v", types.ErrConfiguration, err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: failed to decode config file: %v", types.ErrConfiguration, err)
		}
	}

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a config with sensible defaults filled in. Network and
// contract fields have no sensible defaults and must come from the file.
func DefaultConfig() *Config {
	return &Config{
		AssetDecimals:         18,
		TradeAmount:           "1",
		SpreadThreshold:       1.01,
		BaseFeeMultiplier:     1.25,
		PriorityFeeMultiplier: 1.10,
		GasLimit:              500000,
		ConfirmationTimeout:   2 * time.Minute,
		ReceiptPollInterval:   time.Second,
		MaxReconnects:         3,
		ReconnectBackoff:      time.Second,
		RateLimit:             1,
		RateBurst:             1,
		APIListenAddr:         ":8080",
		PrometheusEnabled:     true,
	}
}
