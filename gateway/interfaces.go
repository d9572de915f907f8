package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/crossarb/chain"
)

// PriceOracle returns a current reference price for an asset on a network.
type PriceOracle interface {
	GetPrice(ctx context.Context, network *chain.Network, asset string) (decimal.Decimal, error)
}

// BridgeResult is the explicit outcome of a bridge transfer. Success is a
// flag carried by the gateway, never inferred from a nil error.
type BridgeResult struct {
	Success bool
	Amount  decimal.Decimal
}

// BridgeGateway moves an asset amount from one network to another. The
// transfer is inherently non-atomic across the two ledgers.
type BridgeGateway interface {
	Transfer(ctx context.Context, from, to *chain.Network, amount decimal.Decimal) (BridgeResult, error)
}

// TradeResult is the explicit outcome of a swap, with the realized amount
// and profit when successful.
type TradeResult struct {
	Success bool
	Amount  decimal.Decimal
	Profit  decimal.Decimal
}

// TradeGateway executes a swap on a target network.
type TradeGateway interface {
	Swap(ctx context.Context, network *chain.Network, amount decimal.Decimal) (TradeResult, error)
}
