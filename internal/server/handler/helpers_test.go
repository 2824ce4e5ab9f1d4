package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defidash/exchange/internal/domain"
)

func TestWriteDomainErrorStatusCodes(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidInput:        http.StatusBadRequest,
		domain.ErrNotFound:            http.StatusNotFound,
		domain.ErrNoRouteAvailable:    http.StatusUnprocessableEntity,
		domain.ErrIlliquidPool:        http.StatusUnprocessableEntity,
		domain.ErrSlippageExceeded:    http.StatusConflict,
		domain.ErrConcurrencyConflict: http.StatusConflict,
		domain.ErrPersistenceFailure:  http.StatusInternalServerError,
	}

	for err, want := range cases {
		t.Run(err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, err)
			assert.Equal(t, want, rec.Code)
		})
	}
}

func TestWriteDomainErrorUnwrapsChains(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("swap_service: refetch pool: %w", domain.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteDomainErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("pgx: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pgx")
}

func TestParseAmount(t *testing.T) {
	n, err := parseAmount("amount_in", "123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", n.String())

	for _, bad := range []string{"", "abc", "1.5", "0x10"} {
		_, err := parseAmount("amount_in", bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "input %q", bad)
	}
}

func TestParseListOpts(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
		opts := parseListOpts(r)
		assert.Equal(t, 50, opts.Limit)
		assert.Zero(t, opts.Offset)
		assert.Nil(t, opts.Since)
		assert.Nil(t, opts.Until)
	})

	t.Run("caps limit", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades?limit=10000&offset=20", nil)
		opts := parseListOpts(r)
		assert.Equal(t, 500, opts.Limit)
		assert.Equal(t, 20, opts.Offset)
	})

	t.Run("parses time window", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet,
			"/api/trades?since=2026-01-01T00:00:00Z&until=2026-02-01T00:00:00Z", nil)
		opts := parseListOpts(r)
		require.NotNil(t, opts.Since)
		require.NotNil(t, opts.Until)
		assert.Equal(t, 2026, opts.Since.Year())
	})

	t.Run("ignores junk", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades?limit=abc&since=yesterday", nil)
		opts := parseListOpts(r)
		assert.Equal(t, 50, opts.Limit)
		assert.Nil(t, opts.Since)
	})
}
