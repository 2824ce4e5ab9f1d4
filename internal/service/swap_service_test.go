package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defidash/exchange/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usdcWethPool(id string, reserveA, reserveB int64, version int64) domain.Pool {
	return domain.Pool{
		ID:         id,
		TokenA:     "USDC",
		TokenB:     "WETH",
		ReserveA:   big.NewInt(reserveA),
		ReserveB:   big.NewInt(reserveB),
		FeeRateBps: 30,
		Version:    version,
		Active:     true,
	}
}

type swapFixture struct {
	svc   *SwapService
	pools *fakePoolStore
	swaps *fakeSwapStore
	cache *fakeCache
	locks *fakeLocks
	bus   *fakeBus
	audit *fakeAudit
}

func newSwapFixture(pools ...domain.Pool) *swapFixture {
	f := &swapFixture{
		pools: newFakePoolStore(pools...),
		swaps: &fakeSwapStore{},
		cache: &fakeCache{},
		locks: &fakeLocks{},
		bus:   newFakeBus(),
		audit: &fakeAudit{},
	}
	f.swaps.commitTo = f.pools
	f.svc = NewSwapService(f.pools, f.swaps, f.cache, f.locks, f.bus, f.audit, 50, testLogger())
	return f
}

func TestQuoteReturnsBestPool(t *testing.T) {
	f := newSwapFixture(
		usdcWethPool("pool-shallow", 1000, 2000, 1),
		usdcWethPool("pool-deep", 5000, 9000, 1),
	)

	quote, err := f.svc.Quote(context.Background(), "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, "pool-shallow", quote.PoolID)
	assert.Equal(t, int64(181), quote.AmountOut.Int64())
	assert.Equal(t, "1.810000000000000000", quote.EffectivePrice)
}

func TestQuoteHasNoSideEffects(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))

	_, err := f.svc.Quote(context.Background(), "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.Empty(t, f.swaps.applied)
	assert.Empty(t, f.locks.acquired)
	assert.Empty(t, f.audit.events)

	pool, err := f.pools.GetByID(context.Background(), "pool-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pool.ReserveA.Int64())
	assert.Equal(t, int64(2000), pool.ReserveB.Int64())
}

func TestQuoteNoRoute(t *testing.T) {
	f := newSwapFixture()

	_, err := f.svc.Quote(context.Background(), "USDC", "WETH", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrNoRouteAvailable)
}

func TestExecuteCommitsSwap(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 3))

	record, err := f.svc.Execute(context.Background(), "user-1", "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "pool-1", record.PoolID)
	assert.Equal(t, domain.TradeStatusCompleted, record.Status)
	assert.Equal(t, int64(100), record.AmountIn.Int64())
	assert.Equal(t, int64(181), record.AmountOut.Int64())

	require.Len(t, f.swaps.applied, 1)
	m := f.swaps.applied[0]
	assert.Equal(t, int64(3), m.ExpectedVersion)
	assert.Equal(t, int64(1100), m.NewReserveA.Int64())
	assert.Equal(t, int64(1819), m.NewReserveB.Int64())

	// The fee stays in the pool, so the invariant grows.
	kBefore := big.NewInt(1000 * 2000)
	kAfter := new(big.Int).Mul(m.NewReserveA, m.NewReserveB)
	assert.Equal(t, 1, kAfter.Cmp(kBefore))
}

func TestExecutePostCommitTail(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))

	_, err := f.svc.Execute(context.Background(), "user-1", "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, []string{"pool-1"}, f.cache.invalidated)
	assert.Len(t, f.bus.published["swaps"], 1)
	assert.Len(t, f.bus.streamed["stream:swaps"], 1)
	assert.Equal(t, []string{"swap_executed"}, f.audit.events)
	assert.Equal(t, []string{"swap:pool-1"}, f.locks.acquired)
}

func TestExecuteRequiresUser(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))

	_, err := f.svc.Execute(context.Background(), "", "USDC", "WETH", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.swaps.applied)
}

func TestExecuteSlippageExceeded(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))

	// Drain the output side between quote and lock. The fresh re-quote falls
	// far below the routed quote.
	f.pools.getHook = func(pool domain.Pool) domain.Pool {
		pool.ReserveB = big.NewInt(1000)
		return pool
	}

	_, err := f.svc.Execute(context.Background(), "user-1", "USDC", "WETH", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrSlippageExceeded)
	assert.Empty(t, f.swaps.applied)
	assert.Empty(t, f.cache.invalidated)
	assert.Empty(t, f.audit.events)
}

func TestExecuteSlippageWithinTolerance(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))

	// A tiny adverse move stays inside the 50 bps tolerance.
	f.pools.getHook = func(pool domain.Pool) domain.Pool {
		pool.ReserveB = big.NewInt(1999)
		return pool
	}

	record, err := f.svc.Execute(context.Background(), "user-1", "USDC", "WETH", big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(181), record.AmountOut.Int64())
}

func TestExecuteConcurrencyConflict(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))
	f.swaps.err = domain.ErrConcurrencyConflict

	_, err := f.svc.Execute(context.Background(), "user-1", "USDC", "WETH", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// Nothing downstream of the failed commit runs.
	assert.Empty(t, f.cache.invalidated)
	assert.Empty(t, f.bus.published["swaps"])
	assert.Empty(t, f.audit.events)
}

func TestExecuteContendedLock(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))
	f.locks.err = domain.ErrLockHeld

	_, err := f.svc.Execute(context.Background(), "user-1", "USDC", "WETH", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Empty(t, f.swaps.applied)
}

func TestExecuteDeactivatedPool(t *testing.T) {
	f := newSwapFixture(usdcWethPool("pool-1", 1000, 2000, 1))

	f.pools.getHook = func(pool domain.Pool) domain.Pool {
		pool.Active = false
		return pool
	}

	_, err := f.svc.Execute(context.Background(), "user-1", "USDC", "WETH", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrNoRouteAvailable)
	assert.Empty(t, f.swaps.applied)
}
