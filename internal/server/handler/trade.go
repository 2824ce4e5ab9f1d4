package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/defidash/exchange/internal/domain"
)

// TradeReader defines the methods the trade handler requires.
type TradeReader interface {
	GetTrade(ctx context.Context, id string) (domain.TradeRecord, error)
	ListTradesByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TradeRecord, error)
	ListTradesByPool(ctx context.Context, poolID string, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// TradeHandler serves trade history endpoints.
type TradeHandler struct {
	trades TradeReader
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeReader, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// listTradesResponse wraps the list trades response.
type listTradesResponse struct {
	Trades []tradeResponse `json:"trades"`
}

// ListTrades returns trades for a user or a pool, newest first.
// GET /api/trades?user_id=...|pool_id=...&limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	poolID := q.Get("pool_id")

	if userID == "" && poolID == "" {
		writeError(w, http.StatusBadRequest, "user_id or pool_id query parameter required")
		return
	}

	opts := parseListOpts(r)

	var (
		trades []domain.TradeRecord
		err    error
	)
	if userID != "" {
		trades, err = h.trades.ListTradesByUser(r.Context(), userID, opts)
	} else {
		trades, err = h.trades.ListTradesByPool(r.Context(), poolID, opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: toTradeResponses(trades)})
}

// GetTrade returns a single trade record by id.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	trade, err := h.trades.GetTrade(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTradeResponse(trade))
}
