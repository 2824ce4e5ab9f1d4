package redis

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/defidash/exchange/internal/domain"
)

// PoolCache implements domain.PoolCache using Redis hashes. Each pool is
// stored as a hash at key "pool:{id}" with reserves rendered as decimal
// strings so arbitrary-precision values survive the round trip.
//
// The cache serves quote reads only; execution always re-reads Postgres, so a
// stale entry costs at worst a slippage rejection, never a bad commit.
type PoolCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPoolCache creates a PoolCache backed by the given Client. A zero ttl
// stores entries without expiry.
func NewPoolCache(c *Client, ttl time.Duration) *PoolCache {
	return &PoolCache{rdb: c.Underlying(), ttl: ttl}
}

func poolKey(id string) string {
	return "pool:" + id
}

// Set stores a pool snapshot.
func (pc *PoolCache) Set(ctx context.Context, pool domain.Pool) error {
	key := poolKey(pool.ID)
	fields := map[string]interface{}{
		"token_a":      pool.TokenA,
		"token_b":      pool.TokenB,
		"reserve_a":    pool.ReserveA.String(),
		"reserve_b":    pool.ReserveB.String(),
		"fee_rate_bps": strconv.FormatInt(int64(pool.FeeRateBps), 10),
		"creator_id":   pool.CreatorID,
		"version":      strconv.FormatInt(pool.Version, 10),
		"active":       strconv.FormatBool(pool.Active),
		"created_ts":   strconv.FormatInt(pool.CreatedAt.UnixNano(), 10),
		"updated_ts":   strconv.FormatInt(pool.UpdatedAt.UnixNano(), 10),
	}

	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pool %s: %w", pool.ID, err)
	}
	return nil
}

// Get retrieves a pool snapshot. It returns domain.ErrNotFound when the key
// does not exist or the entry is malformed (a corrupt entry is treated as a
// miss so the caller falls through to the store).
func (pc *PoolCache) Get(ctx context.Context, id string) (domain.Pool, error) {
	vals, err := pc.rdb.HGetAll(ctx, poolKey(id)).Result()
	if err != nil {
		return domain.Pool{}, fmt.Errorf("redis: get pool %s: %w", id, err)
	}
	if len(vals) == 0 {
		return domain.Pool{}, domain.ErrNotFound
	}

	reserveA, okA := new(big.Int).SetString(vals["reserve_a"], 10)
	reserveB, okB := new(big.Int).SetString(vals["reserve_b"], 10)
	feeBps, errFee := strconv.ParseInt(vals["fee_rate_bps"], 10, 32)
	version, errVer := strconv.ParseInt(vals["version"], 10, 64)
	active, errAct := strconv.ParseBool(vals["active"])
	createdNs, errCre := strconv.ParseInt(vals["created_ts"], 10, 64)
	updatedNs, errUpd := strconv.ParseInt(vals["updated_ts"], 10, 64)
	if !okA || !okB || errFee != nil || errVer != nil || errAct != nil || errCre != nil || errUpd != nil {
		return domain.Pool{}, domain.ErrNotFound
	}

	return domain.Pool{
		ID:         id,
		TokenA:     vals["token_a"],
		TokenB:     vals["token_b"],
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeRateBps: int32(feeBps),
		CreatorID:  vals["creator_id"],
		Version:    version,
		Active:     active,
		CreatedAt:  time.Unix(0, createdNs),
		UpdatedAt:  time.Unix(0, updatedNs),
	}, nil
}

// Invalidate removes a pool snapshot, forcing the next read through to the
// store. Called after every reserve write.
func (pc *PoolCache) Invalidate(ctx context.Context, id string) error {
	if err := pc.rdb.Del(ctx, poolKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pool %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PoolCache = (*PoolCache)(nil)
