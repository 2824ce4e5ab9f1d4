package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/defidash/exchange/internal/domain"
)

// DefaultDepositToleranceBps is how far a deposit's ratio may deviate from
// the pool's reserve ratio before it is rejected (1%). Disproportionate
// deposits shift the pool price without a trade, so they are opt-in.
const DefaultDepositToleranceBps int32 = 100

// LiquidityConfig tunes deposit validation.
type LiquidityConfig struct {
	// DepositToleranceBps overrides DefaultDepositToleranceBps when > 0.
	DepositToleranceBps int32
	// AllowDisproportionate skips the ratio check entirely, permitting
	// donation-style deposits.
	AllowDisproportionate bool
}

// LiquidityService creates pools and adds reserves to them. Reserve writes
// share the optimistic version discipline used by swap execution.
type LiquidityService struct {
	pools        domain.PoolStore
	cache        domain.PoolCache
	locks        domain.LockManager
	bus          domain.SignalBus
	audit        domain.AuditStore
	toleranceBps int32
	allowSkew    bool
	logger       *slog.Logger
}

// NewLiquidityService creates a LiquidityService with all required
// dependencies.
func NewLiquidityService(
	pools domain.PoolStore,
	cache domain.PoolCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg LiquidityConfig,
	logger *slog.Logger,
) *LiquidityService {
	tolerance := cfg.DepositToleranceBps
	if tolerance <= 0 {
		tolerance = DefaultDepositToleranceBps
	}
	return &LiquidityService{
		pools:        pools,
		cache:        cache,
		locks:        locks,
		bus:          bus,
		audit:        audit,
		toleranceBps: tolerance,
		allowSkew:    cfg.AllowDisproportionate,
		logger:       logger,
	}
}

// CreatePool seeds a new pool with initial reserves of both tokens. The
// initial exchange rate is implicitly amountA : amountB; no external price
// check is performed. feeRateBps <= 0 falls back to the default fee.
func (s *LiquidityService) CreatePool(ctx context.Context, tokenA string, amountA *big.Int, tokenB string, amountB *big.Int, feeRateBps int32, creatorID string) (domain.Pool, error) {
	if tokenA == "" || tokenB == "" {
		return domain.Pool{}, fmt.Errorf("%w: token identifiers are required", domain.ErrInvalidInput)
	}
	if tokenA == tokenB {
		return domain.Pool{}, fmt.Errorf("%w: pool tokens must differ", domain.ErrInvalidInput)
	}
	if amountA == nil || amountA.Sign() <= 0 || amountB == nil || amountB.Sign() <= 0 {
		return domain.Pool{}, fmt.Errorf("%w: initial reserves must be positive", domain.ErrInvalidInput)
	}
	if feeRateBps < 0 || int64(feeRateBps) >= domain.FeeDenominatorBps {
		return domain.Pool{}, fmt.Errorf("%w: fee rate %d bps out of range", domain.ErrInvalidInput, feeRateBps)
	}
	if feeRateBps == 0 {
		feeRateBps = domain.DefaultFeeRateBps
	}

	now := time.Now().UTC()
	pool := domain.Pool{
		ID:         uuid.New().String(),
		TokenA:     tokenA,
		TokenB:     tokenB,
		ReserveA:   new(big.Int).Set(amountA),
		ReserveB:   new(big.Int).Set(amountB),
		FeeRateBps: feeRateBps,
		CreatorID:  creatorID,
		Version:    1,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.pools.Create(ctx, pool)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("liquidity_service: create pool: %w", err)
	}

	if err := s.cache.Set(ctx, created); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: cache set failed",
			slog.String("pool_id", created.ID),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(map[string]string{
		"event":   "pool_created",
		"pool_id": created.ID,
		"token_a": created.TokenA,
		"token_b": created.TokenB,
	})
	if err := s.bus.Publish(ctx, "pools", evt); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: publish event failed",
			slog.String("pool_id", created.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "pool_created", map[string]any{
		"pool_id":      created.ID,
		"token_a":      created.TokenA,
		"token_b":      created.TokenB,
		"reserve_a":    created.ReserveA.String(),
		"reserve_b":    created.ReserveB.String(),
		"fee_rate_bps": created.FeeRateBps,
		"creator_id":   created.CreatorID,
	}); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: audit log failed",
			slog.String("pool_id", created.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "liquidity_service: pool created",
		slog.String("pool_id", created.ID),
		slog.String("token_a", created.TokenA),
		slog.String("token_b", created.TokenB),
	)

	return created, nil
}

// AddLiquidity increments both reserves of an existing pool. Unless the
// service is configured to allow disproportionate deposits, the deposit
// ratio must match the pool's reserve ratio within the configured tolerance;
// a skewed deposit fails with ErrInvalidInput. Pools with an empty side
// accept any deposit, since no meaningful ratio exists yet.
func (s *LiquidityService) AddLiquidity(ctx context.Context, poolID string, amountA, amountB *big.Int) (domain.Pool, error) {
	if amountA == nil || amountB == nil || amountA.Sign() < 0 || amountB.Sign() < 0 {
		return domain.Pool{}, fmt.Errorf("%w: deposit amounts must be non-negative", domain.ErrInvalidInput)
	}
	if amountA.Sign() == 0 && amountB.Sign() == 0 {
		return domain.Pool{}, fmt.Errorf("%w: deposit must add something", domain.ErrInvalidInput)
	}

	unlock, err := s.locks.Acquire(ctx, "swap:"+poolID, swapLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Pool{}, domain.ErrConcurrencyConflict
		}
		return domain.Pool{}, fmt.Errorf("liquidity_service: acquire pool lock: %w", err)
	}
	defer unlock()

	pool, err := s.pools.GetByID(ctx, poolID)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("liquidity_service: get pool %s: %w", poolID, err)
	}

	if !s.allowSkew && pool.ReserveA.Sign() > 0 && pool.ReserveB.Sign() > 0 {
		if err := s.checkProportional(pool, amountA, amountB); err != nil {
			return domain.Pool{}, err
		}
	}

	newA := new(big.Int).Add(pool.ReserveA, amountA)
	newB := new(big.Int).Add(pool.ReserveB, amountB)

	updated, err := s.pools.UpdateReserves(ctx, poolID, newA, newB, pool.Version)
	if err != nil {
		return domain.Pool{}, err
	}

	if err := s.cache.Invalidate(ctx, poolID); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: cache invalidate failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "liquidity_added", map[string]any{
		"pool_id":  poolID,
		"amount_a": amountA.String(),
		"amount_b": amountB.String(),
	}); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: audit log failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "liquidity_service: liquidity added",
		slog.String("pool_id", poolID),
		slog.String("amount_a", amountA.String()),
		slog.String("amount_b", amountB.String()),
	)

	return updated, nil
}

// DeactivatePool retires a pool from quoting and routing. Existing trade
// records are unaffected.
func (s *LiquidityService) DeactivatePool(ctx context.Context, poolID string) error {
	if err := s.pools.Deactivate(ctx, poolID); err != nil {
		return fmt.Errorf("liquidity_service: deactivate pool %s: %w", poolID, err)
	}

	if err := s.cache.Invalidate(ctx, poolID); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: cache invalidate failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "pool_deactivated", map[string]any{
		"pool_id": poolID,
	}); err != nil {
		s.logger.WarnContext(ctx, "liquidity_service: audit log failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "liquidity_service: pool deactivated",
		slog.String("pool_id", poolID),
	)

	return nil
}

// checkProportional verifies amountA : amountB matches reserveA : reserveB
// within the tolerance, using cross products to stay in integer arithmetic:
//
//	|amountA*reserveB - amountB*reserveA| * 10000 <= max(cross) * tolerance
func (s *LiquidityService) checkProportional(pool domain.Pool, amountA, amountB *big.Int) error {
	crossA := new(big.Int).Mul(amountA, pool.ReserveB)
	crossB := new(big.Int).Mul(amountB, pool.ReserveA)

	diff := new(big.Int).Sub(crossA, crossB)
	diff.Abs(diff)

	larger := crossA
	if crossB.Cmp(crossA) > 0 {
		larger = crossB
	}

	lhs := new(big.Int).Mul(diff, big.NewInt(domain.FeeDenominatorBps))
	rhs := new(big.Int).Mul(larger, big.NewInt(int64(s.toleranceBps)))
	if lhs.Cmp(rhs) > 0 {
		return fmt.Errorf("%w: deposit ratio deviates from pool ratio by more than %d bps",
			domain.ErrInvalidInput, s.toleranceBps)
	}
	return nil
}
