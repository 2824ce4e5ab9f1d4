package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/defidash/exchange/internal/domain"
)

// SwapService defines the methods the swap handler requires.
type SwapService interface {
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (domain.TradeQuote, error)
	Execute(ctx context.Context, userID, tokenIn, tokenOut string, amountIn *big.Int) (domain.TradeRecord, error)
}

// SwapHandler serves swap quoting and execution endpoints.
type SwapHandler struct {
	swaps  SwapService
	logger *slog.Logger
}

// NewSwapHandler creates a SwapHandler.
func NewSwapHandler(swaps SwapService, logger *slog.Logger) *SwapHandler {
	return &SwapHandler{
		swaps:  swaps,
		logger: logger,
	}
}

// quoteRequest is the JSON body for quote requests.
type quoteRequest struct {
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	AmountIn string `json:"amount_in"`
}

// quoteResponse is the wire form of a trade quote.
type quoteResponse struct {
	PoolID         string `json:"pool_id"`
	TokenIn        string `json:"token_in"`
	TokenOut       string `json:"token_out"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	EffectivePrice string `json:"effective_price"`
}

// Quote prices a swap against the best available pool without executing it.
// POST /api/swap/quote
func (h *SwapHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	amountIn, err := parseAmount("amount_in", req.AmountIn)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	quote, err := h.swaps.Quote(r.Context(), req.TokenIn, req.TokenOut, amountIn)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		PoolID:         quote.PoolID,
		TokenIn:        quote.TokenIn,
		TokenOut:       quote.TokenOut,
		AmountIn:       quote.AmountIn.String(),
		AmountOut:      quote.AmountOut.String(),
		EffectivePrice: quote.EffectivePrice,
	})
}

// executeRequest is the JSON body for swap execution.
type executeRequest struct {
	UserID   string `json:"user_id"`
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	AmountIn string `json:"amount_in"`
}

// Execute routes and commits a swap for a user.
// POST /api/swap
func (h *SwapHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	amountIn, err := parseAmount("amount_in", req.AmountIn)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	record, err := h.swaps.Execute(r.Context(), req.UserID, req.TokenIn, req.TokenOut, amountIn)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: execute swap failed",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTradeResponse(record))
}
