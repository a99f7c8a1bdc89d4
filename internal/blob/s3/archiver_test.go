package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/store/memory"
)

// captureWriter records uploads in memory instead of talking to S3.
type captureWriter struct {
	objects map[string][]byte
	types   map[string]string
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	w.types[path] = contentType
	return nil
}

func TestArchiveClosed(t *testing.T) {
	ctx := context.Background()
	writer := newCaptureWriter()
	sells := memory.NewSellCycleStore()
	purchases := memory.NewPurchaseCycleStore()
	rents := memory.NewRentCycleStore()
	transactions := memory.NewTransactionStore()

	cutoff := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-30 * 24 * time.Hour)
	recent := cutoff.Add(24 * time.Hour)

	require.NoError(t, sells.Create(ctx, domain.SellCycle{
		ID: "s-old", PropertyID: "p1", Status: domain.SellStatusSold, ClosedAt: &old,
	}))
	require.NoError(t, sells.Create(ctx, domain.SellCycle{
		ID: "s-recent", PropertyID: "p1", Status: domain.SellStatusCancelled, ClosedAt: &recent,
	}))
	require.NoError(t, sells.Create(ctx, domain.SellCycle{
		ID: "s-open", PropertyID: "p2", Status: domain.SellStatusListed,
	}))
	require.NoError(t, purchases.Create(ctx, domain.PurchaseCycle{
		ID: "b-old", PropertyID: "p1", Status: domain.PurchaseStatusAcquired, ClosedAt: &old,
	}))
	require.NoError(t, transactions.Create(ctx, domain.Transaction{
		ID: "t-old", PropertyID: "p1", Type: domain.TransactionSale, Date: old,
	}))

	archiver := NewArchiver(writer, sells, purchases, rents, transactions, "cycles")
	result, err := archiver.ArchiveClosed(ctx, cutoff)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Cycles, "only cycles closed before the cutoff")
	assert.Equal(t, 1, result.Transactions)
	assert.ElementsMatch(t, []string{
		"cycles/sell_cycles/2026-01.jsonl",
		"cycles/purchase_cycles/2026-01.jsonl",
		"cycles/transactions/2026-01.jsonl",
	}, result.Objects, "no object is written for kinds with nothing to archive")

	body, ok := writer.objects["cycles/sell_cycles/2026-01.jsonl"]
	require.True(t, ok)
	assert.Equal(t, "application/x-ndjson", writer.types["cycles/sell_cycles/2026-01.jsonl"])

	var lines int
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		lines++
		var env struct {
			Schema     string          `json:"schema"`
			ArchivedAt time.Time       `json:"archived_at"`
			Record     json.RawMessage `json:"record"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &env))
		assert.Equal(t, "brokercycle.sell_cycle.v1", env.Schema)
		assert.False(t, env.ArchivedAt.IsZero())
		assert.NotEmpty(t, env.Record)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 1, lines, "one JSONL line per archived record")

	// Archived rows stay in the primary store.
	_, err = sells.GetByID(ctx, "s-old")
	require.NoError(t, err)
}

func TestArchiveClosedNothingToDo(t *testing.T) {
	ctx := context.Background()
	writer := newCaptureWriter()

	archiver := NewArchiver(writer,
		memory.NewSellCycleStore(),
		memory.NewPurchaseCycleStore(),
		memory.NewRentCycleStore(),
		memory.NewTransactionStore(),
		"",
	)

	result, err := archiver.ArchiveClosed(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, result.Cycles)
	assert.Zero(t, result.Transactions)
	assert.Empty(t, result.Objects)
	assert.Empty(t, writer.objects)
}
