package domain

import (
	"math/big"
	"time"
)

// TradeStatus tracks the trade record lifecycle.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusFailed    TradeStatus = "failed"
)

// TradeQuote is an ephemeral price quote for a single-hop swap. Quotes carry
// no reservation on pool reserves; a caller may abandon one at any time, and
// execution re-validates against fresh reserves before committing.
type TradeQuote struct {
	PoolID   string
	TokenIn  string
	TokenOut string
	AmountIn *big.Int
	// AmountOut is the quoted output under the pool reserves observed at
	// quote time, floored to an integer base unit.
	AmountOut *big.Int
	// EffectivePrice is AmountOut/AmountIn rendered as a fixed 18-place
	// decimal string. Display only; never fed back into pricing.
	EffectivePrice string
}

// TradeRecord is the persisted execution of a swap. It is created in the same
// transaction as the reserve mutation that realizes it; once completed, its
// amounts are immutable.
type TradeRecord struct {
	ID        string
	UserID    string
	PoolID    string
	TokenIn   string
	TokenOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
	Status    TradeStatus
	CreatedAt time.Time
}
