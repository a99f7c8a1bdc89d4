package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// sweepLockKey serialises sweeps across processes; only one instance scans at
// a time.
const sweepLockKey = "match:sweep"

// Daemon keeps the internal match picture fresh: it re-sweeps whenever a
// cycle event lands on the bus and on a fixed interval as a safety net, then
// publishes the result on the matches channel.
type Daemon struct {
	detector *Detector
	bus      domain.SignalBus
	locks    domain.LockManager
	logger   *slog.Logger

	interval time.Duration
	lockTTL  time.Duration
}

// NewDaemon creates a Daemon. locks may be nil for single-process setups.
func NewDaemon(
	detector *Detector,
	bus domain.SignalBus,
	locks domain.LockManager,
	logger *slog.Logger,
	interval, lockTTL time.Duration,
) *Daemon {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &Daemon{
		detector: detector,
		bus:      bus,
		locks:    locks,
		logger:   logger.With(slog.String("component", "match_daemon")),
		interval: interval,
		lockTTL:  lockTTL,
	}
}

// Run subscribes to the cycles channel and sweeps on every event plus once
// per interval. It blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ch, err := d.bus.Subscribe(ctx, domain.ChannelCycles)
	if err != nil {
		return fmt.Errorf("match daemon: subscribe cycles: %w", err)
	}

	d.logger.Info("match daemon started", slog.Duration("interval", d.interval))
	defer d.logger.Info("match daemon stopped")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Initial sweep so a fresh process has a match picture immediately.
	d.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			d.sweep(ctx)
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// Sweep runs one detection pass and publishes the result. Exposed for the
// one-shot mode.
func (d *Daemon) Sweep(ctx context.Context) ([]domain.InternalMatch, error) {
	matches, err := d.detector.Detect(ctx, Opts{})
	if err != nil {
		return nil, err
	}
	d.publish(ctx, matches)
	return matches, nil
}

func (d *Daemon) sweep(ctx context.Context) {
	if d.locks != nil {
		unlock, err := d.locks.Acquire(ctx, sweepLockKey, d.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				d.logger.Debug("sweep skipped, lock held elsewhere")
				return
			}
			d.logger.Warn("sweep lock failed", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	if _, err := d.Sweep(ctx); err != nil {
		d.logger.Warn("sweep failed", slog.String("error", err.Error()))
	}
}

func (d *Daemon) publish(ctx context.Context, matches []domain.InternalMatch) {
	payload, err := json.Marshal(matches)
	if err != nil {
		return
	}
	if err := d.bus.Publish(ctx, domain.ChannelMatches, payload); err != nil {
		d.logger.Warn("publish matches failed", slog.String("error", err.Error()))
	}
}
