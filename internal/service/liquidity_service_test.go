package service

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defidash/exchange/internal/domain"
)

type liquidityFixture struct {
	svc   *LiquidityService
	pools *fakePoolStore
	cache *fakeCache
	locks *fakeLocks
	bus   *fakeBus
	audit *fakeAudit
}

func newLiquidityFixture(cfg LiquidityConfig, pools ...domain.Pool) *liquidityFixture {
	f := &liquidityFixture{
		pools: newFakePoolStore(pools...),
		cache: &fakeCache{},
		locks: &fakeLocks{},
		bus:   newFakeBus(),
		audit: &fakeAudit{},
	}
	f.svc = NewLiquidityService(f.pools, f.cache, f.locks, f.bus, f.audit, cfg, testLogger())
	return f
}

func TestCreatePool(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{})

	pool, err := f.svc.CreatePool(context.Background(),
		"USDC", big.NewInt(1000), "WETH", big.NewInt(2000), 25, "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, pool.ID)
	assert.Equal(t, "USDC", pool.TokenA)
	assert.Equal(t, "WETH", pool.TokenB)
	assert.Equal(t, int64(1000), pool.ReserveA.Int64())
	assert.Equal(t, int64(2000), pool.ReserveB.Int64())
	assert.Equal(t, int32(25), pool.FeeRateBps)
	assert.Equal(t, "user-1", pool.CreatorID)
	assert.Equal(t, int64(1), pool.Version)
	assert.True(t, pool.Active)

	assert.Equal(t, []string{pool.ID}, f.cache.sets)
	assert.Len(t, f.bus.published["pools"], 1)
	assert.Equal(t, []string{"pool_created"}, f.audit.events)
}

func TestCreatePoolDefaultFee(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{})

	pool, err := f.svc.CreatePool(context.Background(),
		"USDC", big.NewInt(1000), "WETH", big.NewInt(2000), 0, "user-1")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultFeeRateBps, pool.FeeRateBps)
}

func TestCreatePoolValidation(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{})

	cases := map[string]struct {
		tokenA, tokenB   string
		amountA, amountB *big.Int
		feeBps           int32
	}{
		"same token":       {"USDC", "USDC", big.NewInt(1), big.NewInt(1), 30},
		"empty token a":    {"", "WETH", big.NewInt(1), big.NewInt(1), 30},
		"empty token b":    {"USDC", "", big.NewInt(1), big.NewInt(1), 30},
		"zero reserve a":   {"USDC", "WETH", big.NewInt(0), big.NewInt(1), 30},
		"negative reserve": {"USDC", "WETH", big.NewInt(1), big.NewInt(-1), 30},
		"nil reserve":      {"USDC", "WETH", nil, big.NewInt(1), 30},
		"fee too high":     {"USDC", "WETH", big.NewInt(1), big.NewInt(1), 10_000},
		"negative fee":     {"USDC", "WETH", big.NewInt(1), big.NewInt(1), -1},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreatePool(context.Background(),
				tc.tokenA, tc.amountA, tc.tokenB, tc.amountB, tc.feeBps, "user-1")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	assert.Empty(t, f.pools.pools)
}

func TestAddLiquidityProportional(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{},
		usdcWethPool("pool-1", 1000, 2000, 3))

	updated, err := f.svc.AddLiquidity(context.Background(), "pool-1",
		big.NewInt(100), big.NewInt(200))
	require.NoError(t, err)

	assert.Equal(t, int64(1100), updated.ReserveA.Int64())
	assert.Equal(t, int64(2200), updated.ReserveB.Int64())
	assert.Equal(t, int64(4), updated.Version)

	assert.Equal(t, []string{"swap:pool-1"}, f.locks.acquired)
	assert.Equal(t, []string{"pool-1"}, f.cache.invalidated)
	assert.Equal(t, []string{"liquidity_added"}, f.audit.events)
}

func TestAddLiquidityRejectsSkewedDeposit(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{},
		usdcWethPool("pool-1", 1000, 2000, 1))

	_, err := f.svc.AddLiquidity(context.Background(), "pool-1",
		big.NewInt(100), big.NewInt(500))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.pools.updateCall)
}

func TestAddLiquidityToleranceBoundary(t *testing.T) {
	// 100 bps tolerance against a 1000:2000 pool. 100:201 deviates by 50 bps
	// and passes; 100:203 deviates by ~148 bps and fails.
	t.Run("inside tolerance", func(t *testing.T) {
		f := newLiquidityFixture(LiquidityConfig{DepositToleranceBps: 100},
			usdcWethPool("pool-1", 1000, 2000, 1))

		_, err := f.svc.AddLiquidity(context.Background(), "pool-1",
			big.NewInt(100), big.NewInt(201))
		assert.NoError(t, err)
	})

	t.Run("outside tolerance", func(t *testing.T) {
		f := newLiquidityFixture(LiquidityConfig{DepositToleranceBps: 100},
			usdcWethPool("pool-1", 1000, 2000, 1))

		_, err := f.svc.AddLiquidity(context.Background(), "pool-1",
			big.NewInt(100), big.NewInt(203))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestAddLiquidityDisproportionateOptIn(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{AllowDisproportionate: true},
		usdcWethPool("pool-1", 1000, 2000, 1))

	updated, err := f.svc.AddLiquidity(context.Background(), "pool-1",
		big.NewInt(500), big.NewInt(0))
	require.NoError(t, err)

	assert.Equal(t, int64(1500), updated.ReserveA.Int64())
	assert.Equal(t, int64(2000), updated.ReserveB.Int64())
}

func TestAddLiquidityEmptySideSkipsRatioCheck(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{},
		usdcWethPool("pool-1", 0, 2000, 1))

	updated, err := f.svc.AddLiquidity(context.Background(), "pool-1",
		big.NewInt(999), big.NewInt(1))
	require.NoError(t, err)

	assert.Equal(t, int64(999), updated.ReserveA.Int64())
	assert.Equal(t, int64(2001), updated.ReserveB.Int64())
}

func TestAddLiquidityValidation(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{},
		usdcWethPool("pool-1", 1000, 2000, 1))

	t.Run("both amounts zero", func(t *testing.T) {
		_, err := f.svc.AddLiquidity(context.Background(), "pool-1",
			big.NewInt(0), big.NewInt(0))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := f.svc.AddLiquidity(context.Background(), "pool-1",
			big.NewInt(-1), big.NewInt(200))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown pool", func(t *testing.T) {
		_, err := f.svc.AddLiquidity(context.Background(), "missing",
			big.NewInt(100), big.NewInt(200))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAddLiquidityContendedLock(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{},
		usdcWethPool("pool-1", 1000, 2000, 1))
	f.locks.err = domain.ErrLockHeld

	_, err := f.svc.AddLiquidity(context.Background(), "pool-1",
		big.NewInt(100), big.NewInt(200))
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Zero(t, f.pools.updateCall)
}

func TestAddLiquidityVersionConflict(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{},
		usdcWethPool("pool-1", 1000, 2000, 1))
	f.pools.updateErr = domain.ErrConcurrencyConflict

	_, err := f.svc.AddLiquidity(context.Background(), "pool-1",
		big.NewInt(100), big.NewInt(200))
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Empty(t, f.cache.invalidated)
}

func TestDeactivatePool(t *testing.T) {
	f := newLiquidityFixture(LiquidityConfig{},
		usdcWethPool("pool-1", 1000, 2000, 1))

	require.NoError(t, f.svc.DeactivatePool(context.Background(), "pool-1"))

	pool, err := f.pools.GetByID(context.Background(), "pool-1")
	require.NoError(t, err)
	assert.False(t, pool.Active)

	assert.Equal(t, []string{"pool-1"}, f.cache.invalidated)
	assert.Equal(t, []string{"pool_deactivated"}, f.audit.events)
}
