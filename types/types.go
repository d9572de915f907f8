package types

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Error taxonomy shared across components. Failures inside one attempt are
// contained to that attempt; configuration errors are fatal at startup.
var (
	ErrNetworkUnavailable  = errors.New("network unavailable")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrConfiguration       = errors.New("configuration error")
)

// Direction is the side of the spread an attempt trades into.
type Direction string

const (
	DirectionSourceToTarget Direction = "source_to_target"
	DirectionTargetToSource Direction = "target_to_source"
)

// AttemptStatus tracks an attempt through the execution state machine.
type AttemptStatus string

const (
	StatusNoOpportunity  AttemptStatus = "no_opportunity"
	StatusBridging       AttemptStatus = "bridging"
	StatusTrading        AttemptStatus = "trading"
	StatusReturning      AttemptStatus = "returning"
	StatusSuccess        AttemptStatus = "success"
	StatusPartialSuccess AttemptStatus = "partial_success"
	StatusFailed         AttemptStatus = "failed"
)

// Terminal reports whether the status is final. A terminal status never
// changes again.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusPartialSuccess, StatusFailed:
		return true
	}
	return false
}

// ArbitrageOpportunity is a detected price divergence between two networks.
// It is derived per evaluation cycle and never persisted.
type ArbitrageOpportunity struct {
	SourceNetwork string          `json:"source_network"`
	TargetNetwork string          `json:"target_network"`
	SourcePrice   decimal.Decimal `json:"source_price"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	SpreadRatio   decimal.Decimal `json:"spread_ratio"`
	Direction     Direction       `json:"direction"`
}

// ArbitrageAttempt records one execution of the cross-chain state machine.
// Only the coordinator mutates it, strictly sequentially.
type ArbitrageAttempt struct {
	ID          uint64          `json:"id"`
	FromNetwork string          `json:"from_network"`
	ToNetwork   string          `json:"to_network"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Status      AttemptStatus   `json:"status"`
	Profit      decimal.Decimal `json:"profit"`
	FailedStep  string          `json:"failed_step,omitempty"`
	Cause       string          `json:"cause,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}

// Profitable reports whether the attempt realized profit. Profit is only
// meaningful for success and partial_success.
func (a *ArbitrageAttempt) Profitable() bool {
	return a.Status == StatusSuccess || a.Status == StatusPartialSuccess
}
