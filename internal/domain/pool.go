package domain

import (
	"math/big"
	"time"
)

// DefaultFeeRateBps is the fee applied to the input leg of a swap when a pool
// is created without an explicit fee (0.3%).
const DefaultFeeRateBps int32 = 30

// FeeDenominatorBps is the basis-point denominator used for all fee and
// tolerance arithmetic.
const FeeDenominatorBps int64 = 10_000

// Pool is a two-token liquidity pool. The token pair is unordered: a pool
// services swaps in both directions and may be addressed by either token
// order. Reserves are integer token base units and are never negative.
//
// Version is an optimistic-concurrency counter incremented on every reserve
// write; a writer that loses a race fails with ErrConcurrencyConflict instead
// of overwriting the other writer's reserves.
type Pool struct {
	ID         string
	TokenA     string
	TokenB     string
	ReserveA   *big.Int
	ReserveB   *big.Int
	FeeRateBps int32
	CreatorID  string
	Version    int64
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasPair reports whether the pool holds both tokens, in either slot.
func (p Pool) HasPair(tokenX, tokenY string) bool {
	if tokenX == tokenY {
		return false
	}
	return (p.TokenA == tokenX && p.TokenB == tokenY) ||
		(p.TokenA == tokenY && p.TokenB == tokenX)
}

// ReservesFor orients the pool for a swap that pays in tokenIn. It returns
// the input-side and output-side reserves and the opposite token. ok is false
// when tokenIn is not part of the pool.
func (p Pool) ReservesFor(tokenIn string) (reserveIn, reserveOut *big.Int, tokenOut string, ok bool) {
	switch tokenIn {
	case p.TokenA:
		return p.ReserveA, p.ReserveB, p.TokenB, true
	case p.TokenB:
		return p.ReserveB, p.ReserveA, p.TokenA, true
	default:
		return nil, nil, "", false
	}
}

// K returns the constant-product quantity reserveA * reserveB. Fees accrue to
// the pool, so K never decreases across a completed trade.
func (p Pool) K() *big.Int {
	if p.ReserveA == nil || p.ReserveB == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(p.ReserveA, p.ReserveB)
}
