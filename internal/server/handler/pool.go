package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/defidash/exchange/internal/domain"
)

// PoolReader defines the read methods the pool handler requires.
type PoolReader interface {
	GetPool(ctx context.Context, id string) (domain.Pool, error)
	ListPools(ctx context.Context) ([]domain.Pool, error)
	ListPoolsByPair(ctx context.Context, tokenX, tokenY string) ([]domain.Pool, error)
}

// LiquidityWriter defines the write methods the pool handler requires.
type LiquidityWriter interface {
	CreatePool(ctx context.Context, tokenA string, amountA *big.Int, tokenB string, amountB *big.Int, feeRateBps int32, creatorID string) (domain.Pool, error)
	AddLiquidity(ctx context.Context, poolID string, amountA, amountB *big.Int) (domain.Pool, error)
	DeactivatePool(ctx context.Context, poolID string) error
}

// PoolHandler serves pool-related HTTP endpoints.
type PoolHandler struct {
	reader    PoolReader
	liquidity LiquidityWriter
	logger    *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(reader PoolReader, liquidity LiquidityWriter, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		reader:    reader,
		liquidity: liquidity,
		logger:    logger,
	}
}

// listPoolsResponse wraps the list pools response.
type listPoolsResponse struct {
	Pools []poolResponse `json:"pools"`
}

// ListPools returns all active pools, optionally filtered to a token pair.
// GET /api/pools?token_x=X&token_y=Y
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenX := q.Get("token_x")
	tokenY := q.Get("token_y")

	var (
		pools []domain.Pool
		err   error
	)
	if tokenX != "" || tokenY != "" {
		pools, err = h.reader.ListPoolsByPair(r.Context(), tokenX, tokenY)
	} else {
		pools, err = h.reader.ListPools(r.Context())
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list pools failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listPoolsResponse{Pools: toPoolResponses(pools)})
}

// GetPool returns a single pool by id.
// GET /api/pools/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pool id")
		return
	}

	pool, err := h.reader.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPoolResponse(pool))
}

// createPoolRequest is the JSON body for pool creation. Amounts are decimal
// strings.
type createPoolRequest struct {
	TokenA     string `json:"token_a"`
	AmountA    string `json:"amount_a"`
	TokenB     string `json:"token_b"`
	AmountB    string `json:"amount_b"`
	FeeRateBps int32  `json:"fee_rate_bps"`
	CreatorID  string `json:"creator_id"`
}

// CreatePool seeds a new liquidity pool.
// POST /api/pools
func (h *PoolHandler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	amountA, err := parseAmount("amount_a", req.AmountA)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	amountB, err := parseAmount("amount_b", req.AmountB)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	pool, err := h.liquidity.CreatePool(r.Context(), req.TokenA, amountA, req.TokenB, amountB, req.FeeRateBps, req.CreatorID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create pool failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPoolResponse(pool))
}

// addLiquidityRequest is the JSON body for liquidity deposits.
type addLiquidityRequest struct {
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
}

// AddLiquidity deposits reserves into an existing pool.
// POST /api/pools/{id}/liquidity
func (h *PoolHandler) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pool id")
		return
	}

	var req addLiquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	amountA, err := parseAmount("amount_a", req.AmountA)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	amountB, err := parseAmount("amount_b", req.AmountB)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	pool, err := h.liquidity.AddLiquidity(r.Context(), id, amountA, amountB)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: add liquidity failed",
			slog.String("pool_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPoolResponse(pool))
}

// DeactivatePool retires a pool from quoting and routing.
// DELETE /api/pools/{id}
func (h *PoolHandler) DeactivatePool(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pool id")
		return
	}

	if err := h.liquidity.DeactivatePool(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: deactivate pool failed",
			slog.String("pool_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "deactivated",
		"pool_id": id,
	})
}
