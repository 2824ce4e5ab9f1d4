// Package router selects the most favorable pool for a requested swap.
// Routing is single-hop: a swap is filled by exactly one pool, never chained
// across pools to bridge an indirect pair.
package router

import (
	"errors"
	"math/big"

	"github.com/defidash/exchange/internal/amm"
	"github.com/defidash/exchange/internal/domain"
)

// SelectBestPool quotes every pool that holds both tokens and returns the
// pool paying the strictly greatest output together with that output. Pools
// without liquidity on the requested side are skipped rather than failing the
// whole selection. Equal outputs are broken by the lowest pool ID so the
// choice is deterministic.
//
// It returns ErrNoRouteAvailable when no pool holds the pair, or when every
// pool that does is illiquid.
func SelectBestPool(pools []domain.Pool, tokenIn, tokenOut string, amountIn *big.Int) (domain.Pool, *big.Int, error) {
	if tokenIn == "" || tokenOut == "" || tokenIn == tokenOut {
		return domain.Pool{}, nil, domain.ErrInvalidInput
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return domain.Pool{}, nil, domain.ErrInvalidInput
	}

	var (
		best    domain.Pool
		bestOut *big.Int
	)

	for _, pool := range pools {
		if !pool.HasPair(tokenIn, tokenOut) {
			continue
		}

		out, err := amm.Quote(pool, tokenIn, amountIn)
		if err != nil {
			if errors.Is(err, domain.ErrIlliquidPool) {
				continue
			}
			return domain.Pool{}, nil, err
		}

		if bestOut == nil {
			best, bestOut = pool, out
			continue
		}
		switch out.Cmp(bestOut) {
		case 1:
			best, bestOut = pool, out
		case 0:
			if pool.ID < best.ID {
				best, bestOut = pool, out
			}
		}
	}

	if bestOut == nil {
		return domain.Pool{}, nil, domain.ErrNoRouteAvailable
	}
	return best, bestOut, nil
}
