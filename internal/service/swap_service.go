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

	"github.com/defidash/exchange/internal/amm"
	"github.com/defidash/exchange/internal/domain"
	"github.com/defidash/exchange/internal/router"
)

// DefaultMaxSlippageBps bounds how far the executed output may fall below the
// quoted output before the trade is rejected (0.5%).
const DefaultMaxSlippageBps int32 = 50

// swapLockTTL bounds how long the per-pool execution lock can be held if a
// process dies mid-swap.
const swapLockTTL = 10 * time.Second

// SwapService handles quoting and executing swaps. Quotes are side-effect
// free; execution re-validates against fresh reserves and commits the reserve
// mutation and trade record in one transaction.
type SwapService struct {
	pools          domain.PoolStore
	swaps          domain.SwapStore
	cache          domain.PoolCache
	locks          domain.LockManager
	bus            domain.SignalBus
	audit          domain.AuditStore
	maxSlippageBps int32
	logger         *slog.Logger
}

// NewSwapService creates a SwapService with all required dependencies.
// maxSlippageBps <= 0 falls back to DefaultMaxSlippageBps.
func NewSwapService(
	pools domain.PoolStore,
	swaps domain.SwapStore,
	cache domain.PoolCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	maxSlippageBps int32,
	logger *slog.Logger,
) *SwapService {
	if maxSlippageBps <= 0 {
		maxSlippageBps = DefaultMaxSlippageBps
	}
	return &SwapService{
		pools:          pools,
		swaps:          swaps,
		cache:          cache,
		locks:          locks,
		bus:            bus,
		audit:          audit,
		maxSlippageBps: maxSlippageBps,
		logger:         logger,
	}
}

// Quote prices a swap of amountIn of tokenIn for tokenOut across all active
// pools servicing the pair, returning the best available quote. It holds no
// reservation on the pool; the caller may abandon the quote freely.
func (s *SwapService) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (domain.TradeQuote, error) {
	pools, err := s.candidatePools(ctx, tokenIn, tokenOut)
	if err != nil {
		return domain.TradeQuote{}, err
	}

	best, amountOut, err := router.SelectBestPool(pools, tokenIn, tokenOut, amountIn)
	if err != nil {
		return domain.TradeQuote{}, err
	}

	return domain.TradeQuote{
		PoolID:         best.ID,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       new(big.Int).Set(amountIn),
		AmountOut:      amountOut,
		EffectivePrice: amm.EffectivePrice(amountIn, amountOut),
	}, nil
}

// Execute routes, re-quotes against fresh reserves, and commits a swap for
// the given user. The committed output may be lower than the routed quote by
// at most the configured slippage tolerance; a larger divergence fails with
// ErrSlippageExceeded and nothing is persisted.
//
// A losing race on the pool's version fails with ErrConcurrencyConflict; the
// caller re-quotes and retries, nothing is retried here.
func (s *SwapService) Execute(ctx context.Context, userID, tokenIn, tokenOut string, amountIn *big.Int) (domain.TradeRecord, error) {
	if userID == "" {
		return domain.TradeRecord{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	quote, err := s.Quote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	// Per-pool lock sheds contending executors early, before they burn a
	// round trip losing the version check in Postgres.
	unlock, err := s.locks.Acquire(ctx, "swap:"+quote.PoolID, swapLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.TradeRecord{}, domain.ErrConcurrencyConflict
		}
		return domain.TradeRecord{}, fmt.Errorf("swap_service: acquire pool lock: %w", err)
	}
	defer unlock()

	// Re-read the store of record, never the cache. Reserves may have moved
	// since the quote was computed.
	pool, err := s.pools.GetByID(ctx, quote.PoolID)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("swap_service: refetch pool %s: %w", quote.PoolID, err)
	}
	if !pool.Active {
		return domain.TradeRecord{}, domain.ErrNoRouteAvailable
	}

	freshOut, err := amm.Quote(pool, tokenIn, amountIn)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	if s.exceedsSlippage(quote.AmountOut, freshOut) {
		return domain.TradeRecord{}, fmt.Errorf("%w: quoted %s, fresh %s",
			domain.ErrSlippageExceeded, quote.AmountOut.String(), freshOut.String())
	}

	newReserveA, newReserveB := nextReserves(pool, tokenIn, amountIn, freshOut)

	record := domain.TradeRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		PoolID:    pool.ID,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: freshOut,
		Status:    domain.TradeStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	mutation := domain.SwapMutation{
		PoolID:          pool.ID,
		ExpectedVersion: pool.Version,
		NewReserveA:     newReserveA,
		NewReserveB:     newReserveB,
		Record:          record,
	}

	if err := s.swaps.ApplySwap(ctx, mutation); err != nil {
		return domain.TradeRecord{}, err
	}

	s.afterCommit(ctx, pool.ID, record)

	return record, nil
}

// candidatePools lists the active pools servicing a pair. An empty result is
// left for the router to turn into ErrNoRouteAvailable.
func (s *SwapService) candidatePools(ctx context.Context, tokenIn, tokenOut string) ([]domain.Pool, error) {
	pools, err := s.pools.ListByPair(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, fmt.Errorf("swap_service: list pools for %s/%s: %w", tokenIn, tokenOut, err)
	}
	return pools, nil
}

// exceedsSlippage reports whether fresh has fallen below quoted by more than
// the tolerance: fresh * 10000 < quoted * (10000 - maxSlippageBps). A fresh
// output at or above the quote always passes.
func (s *SwapService) exceedsSlippage(quoted, fresh *big.Int) bool {
	lhs := new(big.Int).Mul(fresh, big.NewInt(domain.FeeDenominatorBps))
	rhs := new(big.Int).Mul(quoted, big.NewInt(domain.FeeDenominatorBps-int64(s.maxSlippageBps)))
	return lhs.Cmp(rhs) < 0
}

// nextReserves applies a swap to the pool's reserves: the input side grows by
// the gross amountIn (the fee stays in the pool), the output side shrinks by
// amountOut.
func nextReserves(pool domain.Pool, tokenIn string, amountIn, amountOut *big.Int) (newA, newB *big.Int) {
	if tokenIn == pool.TokenA {
		newA = new(big.Int).Add(pool.ReserveA, amountIn)
		newB = new(big.Int).Sub(pool.ReserveB, amountOut)
		return newA, newB
	}
	newA = new(big.Int).Sub(pool.ReserveA, amountOut)
	newB = new(big.Int).Add(pool.ReserveB, amountIn)
	return newA, newB
}

// afterCommit handles the non-transactional tail of a swap: cache
// invalidation, event publication, and audit logging. Failures here are
// logged, not returned; the trade is already committed.
func (s *SwapService) afterCommit(ctx context.Context, poolID string, record domain.TradeRecord) {
	if err := s.cache.Invalidate(ctx, poolID); err != nil {
		s.logger.WarnContext(ctx, "swap_service: cache invalidate failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(map[string]string{
		"event":      "swap_executed",
		"trade_id":   record.ID,
		"pool_id":    record.PoolID,
		"token_in":   record.TokenIn,
		"token_out":  record.TokenOut,
		"amount_in":  record.AmountIn.String(),
		"amount_out": record.AmountOut.String(),
	})
	if err := s.bus.Publish(ctx, "swaps", evt); err != nil {
		s.logger.WarnContext(ctx, "swap_service: publish event failed",
			slog.String("trade_id", record.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, "stream:swaps", evt); err != nil {
		s.logger.WarnContext(ctx, "swap_service: stream append failed",
			slog.String("trade_id", record.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "swap_executed", map[string]any{
		"trade_id":   record.ID,
		"user_id":    record.UserID,
		"pool_id":    record.PoolID,
		"token_in":   record.TokenIn,
		"token_out":  record.TokenOut,
		"amount_in":  record.AmountIn.String(),
		"amount_out": record.AmountOut.String(),
	}); err != nil {
		s.logger.WarnContext(ctx, "swap_service: audit log failed",
			slog.String("trade_id", record.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "swap_service: swap executed",
		slog.String("trade_id", record.ID),
		slog.String("pool_id", record.PoolID),
		slog.String("token_in", record.TokenIn),
		slog.String("token_out", record.TokenOut),
		slog.String("amount_in", record.AmountIn.String()),
		slog.String("amount_out", record.AmountOut.String()),
	)
}
