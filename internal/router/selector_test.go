package router

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defidash/exchange/internal/domain"
)

func pool(id string, reserveA, reserveB int64) domain.Pool {
	return domain.Pool{
		ID:         id,
		TokenA:     "USDC",
		TokenB:     "WETH",
		ReserveA:   big.NewInt(reserveA),
		ReserveB:   big.NewInt(reserveB),
		FeeRateBps: 30,
		Active:     true,
	}
}

func TestSelectBestPoolPicksHighestOutput(t *testing.T) {
	pools := []domain.Pool{
		pool("pool-shallow", 1000, 2000), // pays 181 for 100 in
		pool("pool-deep", 5000, 9000),    // pays 175 for 100 in
	}

	best, out, err := SelectBestPool(pools, "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, "pool-shallow", best.ID)
	assert.Equal(t, int64(181), out.Int64())
}

func TestSelectBestPoolTieBreaksOnLowestID(t *testing.T) {
	pools := []domain.Pool{
		pool("pool-b", 1000, 2000),
		pool("pool-a", 1000, 2000),
	}

	best, _, err := SelectBestPool(pools, "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, "pool-a", best.ID)
}

func TestSelectBestPoolSkipsIlliquid(t *testing.T) {
	pools := []domain.Pool{
		pool("pool-empty", 0, 0),
		pool("pool-live", 1000, 2000),
	}

	best, out, err := SelectBestPool(pools, "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, "pool-live", best.ID)
	assert.Equal(t, int64(181), out.Int64())
}

func TestSelectBestPoolIgnoresForeignPairs(t *testing.T) {
	other := domain.Pool{
		ID:         "pool-other",
		TokenA:     "DAI",
		TokenB:     "WBTC",
		ReserveA:   big.NewInt(1_000_000),
		ReserveB:   big.NewInt(1_000_000),
		FeeRateBps: 30,
	}
	pools := []domain.Pool{other, pool("pool-live", 1000, 2000)}

	best, _, err := SelectBestPool(pools, "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, "pool-live", best.ID)
}

func TestSelectBestPoolNoRoute(t *testing.T) {
	t.Run("no pools", func(t *testing.T) {
		_, _, err := SelectBestPool(nil, "USDC", "WETH", big.NewInt(100))
		assert.ErrorIs(t, err, domain.ErrNoRouteAvailable)
	})

	t.Run("all illiquid", func(t *testing.T) {
		pools := []domain.Pool{pool("pool-a", 0, 2000), pool("pool-b", 1000, 0)}
		_, _, err := SelectBestPool(pools, "USDC", "WETH", big.NewInt(100))
		assert.ErrorIs(t, err, domain.ErrNoRouteAvailable)
	})
}

func TestSelectBestPoolInvalidInput(t *testing.T) {
	pools := []domain.Pool{pool("pool-a", 1000, 2000)}

	cases := map[string]struct {
		tokenIn, tokenOut string
		amountIn          *big.Int
	}{
		"same token":      {"USDC", "USDC", big.NewInt(100)},
		"empty token in":  {"", "WETH", big.NewInt(100)},
		"empty token out": {"USDC", "", big.NewInt(100)},
		"zero amount":     {"USDC", "WETH", big.NewInt(0)},
		"nil amount":      {"USDC", "WETH", nil},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := SelectBestPool(pools, tc.tokenIn, tc.tokenOut, tc.amountIn)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
