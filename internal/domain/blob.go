package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads serialized snapshots to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ArchiveResult summarises one archival run.
type ArchiveResult struct {
	Cycles       int
	Transactions int
	Objects      []string
}

// Archiver snapshots closed cycles and transaction receipts to object storage
// as schema-versioned JSONL. Archived rows are not deleted from the primary
// store; pruning is a separate explicit step.
type Archiver interface {
	ArchiveClosed(ctx context.Context, before time.Time) (ArchiveResult, error)
}
