package coordinator

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/crossarb/types"
)

// ProfitHistory is the append-only record of completed attempts. Single
// writer (the coordinator); the lock exists for snapshot reads by the
// operator API.
type ProfitHistory struct {
	mu       sync.RWMutex
	attempts []types.ArbitrageAttempt
}

// NewProfitHistory creates an empty history.
func NewProfitHistory() *ProfitHistory {
	return &ProfitHistory{}
}

// Append records a completed attempt. Entries are never mutated in place.
func (h *ProfitHistory) Append(attempt types.ArbitrageAttempt) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, attempt)
}

// Snapshot returns a copy of all recorded attempts in order.
func (h *ProfitHistory) Snapshot() []types.ArbitrageAttempt {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.ArbitrageAttempt, len(h.attempts))
	copy(out, h.attempts)
	return out
}

// Len returns the number of recorded attempts.
func (h *ProfitHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.attempts)
}

// TotalProfit sums realized profit across success and partial_success
// attempts.
func (h *ProfitHistory) TotalProfit() decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := decimal.Zero
	for i := range h.attempts {
		if h.attempts[i].Profitable() {
			total = total.Add(h.attempts[i].Profit)
		}
	}
	return total
}
