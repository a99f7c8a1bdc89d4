package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// ArchiveRunner drives periodic snapshots of closed cycles and transaction
// receipts to cold storage. Archived rows stay in the primary store; the
// snapshot is an off-site copy, not a purge.
type ArchiveRunner struct {
	archiver      domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiveRunner creates an ArchiveRunner with the given retention window.
func NewArchiveRunner(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *ArchiveRunner {
	return &ArchiveRunner{
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archive_runner")),
	}
}

// Run executes a single archive pass. The cutoff is retentionDays before now;
// cycles closed earlier than that are snapshotted.
func (a *ArchiveRunner) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	result, err := a.archiver.ArchiveClosed(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive run: closed before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int("cycles", result.Cycles),
		slog.Int("transactions", result.Transactions),
		slog.Int("objects", len(result.Objects)),
	)
	return nil
}

// RunLoop runs an archive pass immediately and then once per interval until
// the context is cancelled.
func (a *ArchiveRunner) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := a.Run(ctx); err != nil {
		a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
