package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/defidash/exchange/internal/domain"
)

// PoolService serves read paths: pool lookups with cache read-through and
// trade history queries.
type PoolService struct {
	pools  domain.PoolStore
	trades domain.TradeStore
	cache  domain.PoolCache
	logger *slog.Logger
}

// NewPoolService creates a PoolService.
func NewPoolService(pools domain.PoolStore, trades domain.TradeStore, cache domain.PoolCache, logger *slog.Logger) *PoolService {
	return &PoolService{
		pools:  pools,
		trades: trades,
		cache:  cache,
		logger: logger,
	}
}

// GetPool returns a pool by id, serving from the cache when possible and
// populating it on a miss. Cache failures degrade to store reads.
func (s *PoolService) GetPool(ctx context.Context, id string) (domain.Pool, error) {
	if id == "" {
		return domain.Pool{}, fmt.Errorf("%w: pool id is required", domain.ErrInvalidInput)
	}

	pool, err := s.cache.Get(ctx, id)
	if err == nil {
		return pool, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "pool_service: cache read failed",
			slog.String("pool_id", id),
			slog.String("error", err.Error()),
		)
	}

	pool, err = s.pools.GetByID(ctx, id)
	if err != nil {
		return domain.Pool{}, err
	}

	if cacheErr := s.cache.Set(ctx, pool); cacheErr != nil {
		s.logger.WarnContext(ctx, "pool_service: cache set failed",
			slog.String("pool_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}

	return pool, nil
}

// ListPools returns all active pools.
func (s *PoolService) ListPools(ctx context.Context) ([]domain.Pool, error) {
	pools, err := s.pools.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list pools: %w", err)
	}
	return pools, nil
}

// ListPoolsByPair returns active pools servicing the given pair, in either
// token order.
func (s *PoolService) ListPoolsByPair(ctx context.Context, tokenX, tokenY string) ([]domain.Pool, error) {
	if tokenX == "" || tokenY == "" || tokenX == tokenY {
		return nil, fmt.Errorf("%w: a pair needs two distinct tokens", domain.ErrInvalidInput)
	}
	pools, err := s.pools.ListByPair(ctx, tokenX, tokenY)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list pools for %s/%s: %w", tokenX, tokenY, err)
	}
	return pools, nil
}

// GetTrade returns a single trade record by id.
func (s *PoolService) GetTrade(ctx context.Context, id string) (domain.TradeRecord, error) {
	return s.trades.GetByID(ctx, id)
}

// ListTradesByUser returns a user's trades, newest first.
func (s *PoolService) ListTradesByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	trades, err := s.trades.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list trades for user %s: %w", userID, err)
	}
	return trades, nil
}

// ListTradesByPool returns a pool's trades, newest first.
func (s *PoolService) ListTradesByPool(ctx context.Context, poolID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	trades, err := s.trades.ListByPool(ctx, poolID, opts)
	if err != nil {
		return nil, fmt.Errorf("pool_service: list trades for pool %s: %w", poolID, err)
	}
	return trades, nil
}
