package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/metrics"
)

// Schema identifiers written into every archived record's envelope. Bump a
// version when the wrapped record shape changes incompatibly.
const (
	schemaSellCycle     = "brokercycle.sell_cycle.v1"
	schemaPurchaseCycle = "brokercycle.purchase_cycle.v1"
	schemaRentCycle     = "brokercycle.rent_cycle.v1"
	schemaTransaction   = "brokercycle.transaction.v1"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only needs the closed-before queries, not the full domain
// store interfaces. The Postgres stores satisfy these implicitly.
// ---------------------------------------------------------------------------

// SellArchiveStore provides read access to closed sell cycles.
type SellArchiveStore interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.SellCycle, error)
}

// PurchaseArchiveStore provides read access to closed purchase cycles.
type PurchaseArchiveStore interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.PurchaseCycle, error)
}

// RentArchiveStore provides read access to closed rent cycles.
type RentArchiveStore interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.RentCycle, error)
}

// TransactionArchiveStore provides read access to old receipts.
type TransactionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for closed
// cycles and old receipts, wrapping each row in a schema-versioned envelope,
// and uploading the result to S3 as JSONL.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here: closed cycles stay queryable until an operator prunes
// them in a separate, explicit step.
type ArchiveImpl struct {
	writer       domain.BlobWriter
	sells        SellArchiveStore
	purchases    PurchaseArchiveStore
	rents        RentArchiveStore
	transactions TransactionArchiveStore
	prefix       string
}

// NewArchiver creates a new ArchiveImpl. prefix is the S3 key prefix for all
// archive objects.
func NewArchiver(
	writer domain.BlobWriter,
	sells SellArchiveStore,
	purchases PurchaseArchiveStore,
	rents RentArchiveStore,
	transactions TransactionArchiveStore,
	prefix string,
) *ArchiveImpl {
	if prefix == "" {
		prefix = "cycles"
	}
	return &ArchiveImpl{
		writer:       writer,
		sells:        sells,
		purchases:    purchases,
		rents:        rents,
		transactions: transactions,
		prefix:       prefix,
	}
}

// envelope is the schema-versioned wrapper around every archived record.
type envelope struct {
	Schema     string    `json:"schema"`
	ArchivedAt time.Time `json:"archived_at"`
	Record     any       `json:"record"`
}

// ArchiveClosed snapshots every cycle closed before the cutoff, plus every
// receipt dated before it, to one JSONL object per record kind.
func (a *ArchiveImpl) ArchiveClosed(ctx context.Context, before time.Time) (domain.ArchiveResult, error) {
	var result domain.ArchiveResult
	now := time.Now().UTC()

	sells, err := a.sells.ListClosedBefore(ctx, before)
	if err != nil {
		return result, fmt.Errorf("s3blob: archive sell cycles query: %w", err)
	}
	if path, err := a.upload(ctx, "sell_cycles", schemaSellCycle, before, now, asAny(sells)); err != nil {
		return result, err
	} else if path != "" {
		result.Cycles += len(sells)
		result.Objects = append(result.Objects, path)
		metrics.ArchivedRecords.WithLabelValues("sell_cycle").Add(float64(len(sells)))
	}

	purchases, err := a.purchases.ListClosedBefore(ctx, before)
	if err != nil {
		return result, fmt.Errorf("s3blob: archive purchase cycles query: %w", err)
	}
	if path, err := a.upload(ctx, "purchase_cycles", schemaPurchaseCycle, before, now, asAny(purchases)); err != nil {
		return result, err
	} else if path != "" {
		result.Cycles += len(purchases)
		result.Objects = append(result.Objects, path)
		metrics.ArchivedRecords.WithLabelValues("purchase_cycle").Add(float64(len(purchases)))
	}

	rents, err := a.rents.ListClosedBefore(ctx, before)
	if err != nil {
		return result, fmt.Errorf("s3blob: archive rent cycles query: %w", err)
	}
	if path, err := a.upload(ctx, "rent_cycles", schemaRentCycle, before, now, asAny(rents)); err != nil {
		return result, err
	} else if path != "" {
		result.Cycles += len(rents)
		result.Objects = append(result.Objects, path)
		metrics.ArchivedRecords.WithLabelValues("rent_cycle").Add(float64(len(rents)))
	}

	receipts, err := a.transactions.ListBefore(ctx, before)
	if err != nil {
		return result, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if path, err := a.upload(ctx, "transactions", schemaTransaction, before, now, asAny(receipts)); err != nil {
		return result, err
	} else if path != "" {
		result.Transactions = len(receipts)
		result.Objects = append(result.Objects, path)
		metrics.ArchivedRecords.WithLabelValues("transaction").Add(float64(len(receipts)))
	}

	return result, nil
}

// upload serializes records as enveloped JSONL and writes one object. It
// returns the written path, or "" when there was nothing to archive.
func (a *ArchiveImpl) upload(ctx context.Context, kind, schema string, before, archivedAt time.Time, records []any) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(schema, archivedAt, records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := a.archivePath(kind, before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	return path, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	cycles/sell_cycles/2026-01.jsonl
//	cycles/transactions/2026-01.jsonl
func (a *ArchiveImpl) archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", a.prefix, kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, each wrapped in
// a schema-versioned envelope.
func marshalJSONL(schema string, archivedAt time.Time, records []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		env := envelope{
			Schema:     schema,
			ArchivedAt: archivedAt,
			Record:     rec,
		}
		if err := enc.Encode(env); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// asAny converts a typed slice to []any for the shared upload path.
func asAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
