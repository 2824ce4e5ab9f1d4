// Package handler contains the HTTP handlers for the exchange API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/defidash/exchange/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code,
// falling back to a plain 500 if marshaling fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain error kinds to HTTP status codes. Rejected
// operations keep their reason; anything unrecognised becomes a generic 500
// so internals do not leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNoRouteAvailable):
		writeError(w, http.StatusUnprocessableEntity, "no route available for pair")
	case errors.Is(err, domain.ErrIlliquidPool):
		writeError(w, http.StatusUnprocessableEntity, "pool has no liquidity on the requested side")
	case errors.Is(err, domain.ErrSlippageExceeded):
		writeError(w, http.StatusConflict, "price moved beyond slippage tolerance, re-quote and retry")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "pool is contended, retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseListOpts extracts pagination from the query string. Defaults:
// limit=50 (max 500), offset=0. since/until accept RFC 3339 timestamps.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}

	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}

	return opts
}

// pathParam extracts a named path parameter (Go 1.22+ routing).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// parseAmount parses a positive decimal integer amount from a request field.
func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a valid integer amount", domain.ErrInvalidInput, field)
	}
	return n, nil
}

// poolResponse is the wire form of a pool. Reserves are decimal strings so
// arbitrary-precision values survive JSON.
type poolResponse struct {
	ID         string `json:"id"`
	TokenA     string `json:"token_a"`
	TokenB     string `json:"token_b"`
	ReserveA   string `json:"reserve_a"`
	ReserveB   string `json:"reserve_b"`
	FeeRateBps int32  `json:"fee_rate_bps"`
	CreatorID  string `json:"creator_id"`
	Version    int64  `json:"version"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toPoolResponse(p domain.Pool) poolResponse {
	return poolResponse{
		ID:         p.ID,
		TokenA:     p.TokenA,
		TokenB:     p.TokenB,
		ReserveA:   p.ReserveA.String(),
		ReserveB:   p.ReserveB.String(),
		FeeRateBps: p.FeeRateBps,
		CreatorID:  p.CreatorID,
		Version:    p.Version,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toPoolResponses(pools []domain.Pool) []poolResponse {
	out := make([]poolResponse, 0, len(pools))
	for _, p := range pools {
		out = append(out, toPoolResponse(p))
	}
	return out
}

// tradeResponse is the wire form of a trade record.
type tradeResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	PoolID    string `json:"pool_id"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toTradeResponse(t domain.TradeRecord) tradeResponse {
	return tradeResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		PoolID:    t.PoolID,
		TokenIn:   t.TokenIn,
		TokenOut:  t.TokenOut,
		AmountIn:  t.AmountIn.String(),
		AmountOut: t.AmountOut.String(),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTradeResponses(trades []domain.TradeRecord) []tradeResponse {
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeResponse(t))
	}
	return out
}
