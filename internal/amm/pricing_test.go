package amm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defidash/exchange/internal/domain"
)

func testPool(reserveA, reserveB int64, feeBps int32) domain.Pool {
	return domain.Pool{
		ID:         "pool-1",
		TokenA:     "USDC",
		TokenB:     "WETH",
		ReserveA:   big.NewInt(reserveA),
		ReserveB:   big.NewInt(reserveB),
		FeeRateBps: feeBps,
		Active:     true,
	}
}

func TestQuoteConstantProduct(t *testing.T) {
	pool := testPool(1000, 2000, 30)

	out, err := Quote(pool, "USDC", big.NewInt(100))
	require.NoError(t, err)

	// (100*9970*2000) / (1000*10000 + 100*9970) = 181.32... floored.
	assert.Equal(t, int64(181), out.Int64())
}

func TestQuoteReverseDirection(t *testing.T) {
	pool := testPool(1000, 2000, 30)

	out, err := Quote(pool, "WETH", big.NewInt(100))
	require.NoError(t, err)

	// (100*9970*1000) / (2000*10000 + 100*9970) = 47.48... floored.
	assert.Equal(t, int64(47), out.Int64())
}

func TestQuoteDeterministic(t *testing.T) {
	pool := testPool(123456789, 987654321, 25)
	in := big.NewInt(424242)

	first, err := Quote(pool, "USDC", in)
	require.NoError(t, err)
	second, err := Quote(pool, "USDC", in)
	require.NoError(t, err)

	assert.Zero(t, first.Cmp(second))
}

func TestQuoteNeverDrainsReserve(t *testing.T) {
	pool := testPool(10, 10, 30)

	// An input dwarfing the reserves must still leave the output reserve
	// strictly positive.
	out, err := Quote(pool, "USDC", big.NewInt(1_000_000_000))
	require.NoError(t, err)

	assert.Equal(t, -1, out.Cmp(pool.ReserveB))
	assert.GreaterOrEqual(t, out.Sign(), 0)
}

func TestQuoteZeroFee(t *testing.T) {
	pool := testPool(1000, 2000, 0)

	out, err := Quote(pool, "USDC", big.NewInt(100))
	require.NoError(t, err)

	// (100*10000*2000) / (1000*10000 + 100*10000) = 181.81... floored.
	assert.Equal(t, int64(181), out.Int64())
}

func TestQuoteInvalidInput(t *testing.T) {
	pool := testPool(1000, 2000, 30)

	cases := map[string]struct {
		tokenIn  string
		amountIn *big.Int
	}{
		"zero amount":     {"USDC", big.NewInt(0)},
		"negative amount": {"USDC", big.NewInt(-5)},
		"nil amount":      {"USDC", nil},
		"unknown token":   {"DOGE", big.NewInt(100)},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Quote(pool, tc.tokenIn, tc.amountIn)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestQuoteFeeOutOfRange(t *testing.T) {
	pool := testPool(1000, 2000, 10_000)
	_, err := Quote(pool, "USDC", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	pool.FeeRateBps = -1
	_, err = Quote(pool, "USDC", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuoteIlliquidPool(t *testing.T) {
	cases := map[string]domain.Pool{
		"empty input side":  testPool(0, 2000, 30),
		"empty output side": testPool(1000, 0, 30),
		"both empty":        testPool(0, 0, 30),
	}

	for name, pool := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Quote(pool, "USDC", big.NewInt(100))
			assert.ErrorIs(t, err, domain.ErrIlliquidPool)
		})
	}
}

func TestQuoteInvariantNonDecreasing(t *testing.T) {
	pool := testPool(1000, 2000, 30)
	in := big.NewInt(100)

	out, err := Quote(pool, "USDC", in)
	require.NoError(t, err)

	kBefore := pool.K()
	after := pool
	after.ReserveA = new(big.Int).Add(pool.ReserveA, in)
	after.ReserveB = new(big.Int).Sub(pool.ReserveB, out)

	assert.GreaterOrEqual(t, after.K().Cmp(kBefore), 0)
}

func TestEffectivePrice(t *testing.T) {
	assert.Equal(t, "1.810000000000000000", EffectivePrice(big.NewInt(100), big.NewInt(181)))
	assert.Equal(t, "0.500000000000000000", EffectivePrice(big.NewInt(2), big.NewInt(1)))
	assert.Equal(t, "0", EffectivePrice(big.NewInt(0), big.NewInt(181)))
	assert.Equal(t, "0", EffectivePrice(nil, big.NewInt(181)))
}
