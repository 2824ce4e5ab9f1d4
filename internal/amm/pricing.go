// Package amm implements constant-product swap pricing.
//
// All arithmetic is integer arithmetic over token base units (*big.Int). The
// fee is charged on the input leg in basis points, and the final division
// floors, so two quotes over identical state always agree bit-for-bit and a
// pool can never pay out more than its invariant allows.
package amm

import (
	"math/big"

	"github.com/defidash/exchange/internal/domain"
)

// Quote computes the output amount a single pool would pay for amountIn of
// tokenIn under the constant-product rule:
//
//	inAfterFee = amountIn * (10000 - feeRateBps)
//	amountOut  = (inAfterFee * reserveOut) / (reserveIn * 10000 + inAfterFee)
//
// floored to an integer. The result satisfies 0 <= amountOut < reserveOut for
// every finite positive input.
//
// It returns ErrInvalidInput when amountIn is not positive, tokenIn is not
// one of the pool's tokens, or the pool's fee rate is out of range, and
// ErrIlliquidPool when either reserve is zero (the price would be undefined).
func Quote(pool domain.Pool, tokenIn string, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if pool.FeeRateBps < 0 || int64(pool.FeeRateBps) >= domain.FeeDenominatorBps {
		return nil, domain.ErrInvalidInput
	}

	reserveIn, reserveOut, _, ok := pool.ReservesFor(tokenIn)
	if !ok {
		return nil, domain.ErrInvalidInput
	}
	if reserveIn == nil || reserveIn.Sign() <= 0 || reserveOut == nil || reserveOut.Sign() <= 0 {
		return nil, domain.ErrIlliquidPool
	}

	feeMul := big.NewInt(domain.FeeDenominatorBps - int64(pool.FeeRateBps))
	inAfterFee := new(big.Int).Mul(amountIn, feeMul)

	numerator := new(big.Int).Mul(inAfterFee, reserveOut)

	denominator := new(big.Int).Mul(reserveIn, big.NewInt(domain.FeeDenominatorBps))
	denominator.Add(denominator, inAfterFee)

	// Floor division. The denominator strictly exceeds inAfterFee, so the
	// quotient is strictly less than reserveOut.
	return numerator.Quo(numerator, denominator), nil
}

// EffectivePrice renders amountOut/amountIn as a fixed 18-place decimal
// string for display. It returns "0" when amountIn is not positive.
func EffectivePrice(amountIn, amountOut *big.Int) string {
	if amountIn == nil || amountIn.Sign() <= 0 || amountOut == nil {
		return "0"
	}
	return new(big.Rat).SetFrac(amountOut, amountIn).FloatString(18)
}
