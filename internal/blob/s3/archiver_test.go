package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defidash/exchange/internal/domain"
)

type fakeBlobWriter struct {
	path        string
	contentType string
	data        []byte
	err         error
}

func (w *fakeBlobWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.path = path
	w.contentType = contentType
	w.data = buf
	return nil
}

func (w *fakeBlobWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

type fakeTradeArchiveStore struct {
	trades []domain.TradeRecord
	err    error
}

func (s *fakeTradeArchiveStore) ListBefore(_ context.Context, _ time.Time) ([]domain.TradeRecord, error) {
	return s.trades, s.err
}

type fakeAuditStore struct {
	events []string
}

func (a *fakeAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func sampleTrades(n int) []domain.TradeRecord {
	out := make([]domain.TradeRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.TradeRecord{
			ID:        "trade-" + string(rune('a'+i)),
			UserID:    "user-1",
			PoolID:    "pool-1",
			TokenIn:   "USDC",
			TokenOut:  "WETH",
			AmountIn:  big.NewInt(100),
			AmountOut: big.NewInt(181),
			Status:    domain.TradeStatusCompleted,
			CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func TestArchiveTrades(t *testing.T) {
	writer := &fakeBlobWriter{}
	trades := &fakeTradeArchiveStore{trades: sampleTrades(3)}
	audit := &fakeAuditStore{}

	arch := NewArchiver(writer, trades, audit)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	count, err := arch.ArchiveTrades(context.Background(), cutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(3), count)
	assert.Equal(t, "archive/trades/2026-08.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)
	assert.Equal(t, []string{"archive.trades"}, audit.events)

	// One compact JSON object per line.
	lines := bytes.Split(bytes.TrimSpace(writer.data), []byte("\n"))
	assert.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, bytes.HasPrefix(line, []byte("{")))
	}
}

func TestArchiveTradesEmpty(t *testing.T) {
	writer := &fakeBlobWriter{}
	arch := NewArchiver(writer, &fakeTradeArchiveStore{}, &fakeAuditStore{})

	count, err := arch.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Zero(t, count)
	assert.Empty(t, writer.path)
}

func TestArchiveTradesUploadFailure(t *testing.T) {
	writer := &fakeBlobWriter{err: errors.New("bucket unavailable")}
	audit := &fakeAuditStore{}
	arch := NewArchiver(writer, &fakeTradeArchiveStore{trades: sampleTrades(1)}, audit)

	_, err := arch.ArchiveTrades(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "upload"))
	assert.Empty(t, audit.events)
}

func TestArchiveTradesQueryFailure(t *testing.T) {
	arch := NewArchiver(&fakeBlobWriter{},
		&fakeTradeArchiveStore{err: errors.New("query timeout")}, &fakeAuditStore{})

	_, err := arch.ArchiveTrades(context.Background(), time.Now())
	assert.Error(t, err)
}
