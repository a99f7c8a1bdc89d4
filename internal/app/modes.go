package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/estatedesk/brokercycle/internal/manager"
	"github.com/estatedesk/brokercycle/internal/match"
	"github.com/estatedesk/brokercycle/internal/service"
)

// engine bundles the built domain services behind one handle so modes share a
// single construction path.
type engine struct {
	manager  *manager.Manager
	detector *match.Detector
	archiver *service.ArchiveRunner
}

// buildEngine constructs the service layer on top of the wired dependencies.
func (a *App) buildEngine(deps *Dependencies) *engine {
	sync := service.NewStatusSynchronizer(
		deps.PropertyStore, deps.SellStore, deps.PurchaseStore, deps.RentStore,
		deps.StatusCache, deps.SignalBus, a.logger,
	)
	propertySvc := service.NewPropertyService(deps.PropertyStore, deps.StatusCache, a.logger)
	sellSvc := service.NewSellService(
		deps.PropertyStore, deps.SellStore, deps.TxRunner, sync, deps.SignalBus, a.logger,
	)
	purchaseSvc := service.NewPurchaseService(
		deps.PropertyStore, deps.PurchaseStore, deps.TxRunner, sync, deps.SignalBus, a.logger,
	)
	rentSvc := service.NewRentService(
		deps.PropertyStore, deps.RentStore, deps.TransactionStore, deps.TxRunner,
		sync, deps.SignalBus, a.logger,
	)
	ownership := service.NewOwnershipEngine(
		deps.PropertyStore, deps.SellStore, deps.PurchaseStore, deps.TransactionStore,
		deps.TxRunner, sync, deps.SignalBus, a.logger,
		a.cfg.Engine.AgencyID, a.cfg.Engine.AgencyName,
	)
	detector := match.NewDetector(
		deps.PropertyStore, deps.SellStore, deps.PurchaseStore,
		a.logger, a.cfg.Engine.MaxGapPercentage,
	)

	mgr := manager.New(manager.Deps{
		Properties:    propertySvc,
		Sells:         sellSvc,
		Purchases:     purchaseSvc,
		Rents:         rentSvc,
		Ownership:     ownership,
		Detector:      detector,
		Transactions:  deps.TransactionStore,
		SellStore:     deps.SellStore,
		PurchaseStore: deps.PurchaseStore,
		RentStore:     deps.RentStore,
		PropertyStore: deps.PropertyStore,
		Logger:        a.logger,
	})

	eng := &engine{manager: mgr, detector: detector}
	if deps.Archiver != nil {
		eng.archiver = service.NewArchiveRunner(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	}
	return eng
}

// RunMode starts the long-running daemon: the match sweep loop reacting to
// cycle signals, the Prometheus endpoint, and an optional daily archive loop.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)

	daemon := match.NewDaemon(
		eng.detector, deps.SignalBus, deps.LockManager, a.logger,
		a.cfg.Engine.SweepInterval.Duration, a.cfg.Engine.LockTTL.Duration,
	)
	g.Go(func() error {
		return daemon.Run(ctx)
	})

	if eng.archiver != nil {
		g.Go(func() error {
			return eng.archiver.RunLoop(ctx, 24*time.Hour)
		})
	}

	if a.cfg.Metrics.Enabled {
		a.startMetricsServer(ctx, g)
	}

	return g.Wait()
}

// OnceMode runs a single match sweep, logs aggregate cycle statistics, and
// exits. Useful for cron jobs and smoke checks.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	eng := a.buildEngine(deps)

	stats, err := eng.manager.GetAllCycleStats(ctx, match.Opts{})
	if err != nil {
		return fmt.Errorf("once mode: cycle stats: %w", err)
	}
	a.logger.InfoContext(ctx, "cycle statistics",
		slog.Int64("properties", stats.Properties),
		slog.Int("internal_matches", stats.InternalMatches),
	)

	matches, err := eng.detector.Detect(ctx, match.Opts{})
	if err != nil {
		return fmt.Errorf("once mode: detect: %w", err)
	}
	for _, m := range matches {
		a.logger.InfoContext(ctx, "internal match",
			slog.String("property_id", m.PropertyID),
			slog.String("sell_cycle_id", m.SellCycleID),
			slog.Float64("best_offer", m.BestOffer),
			slog.Float64("gap", m.Gap),
			slog.Int("candidates", len(m.Candidates)),
		)
	}
	a.logger.InfoContext(ctx, "sweep complete", slog.Int("matches", len(matches)))
	return nil
}

// ArchiveMode runs one archival pass over closed cycles and transaction
// receipts older than the retention window, then exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	eng := a.buildEngine(deps)
	if eng.archiver == nil {
		return fmt.Errorf("archive mode: object storage is not configured")
	}
	return eng.archiver.Run(ctx)
}

// startMetricsServer adds a Prometheus exposition endpoint to the errgroup.
// The server shuts down gracefully when the context is cancelled.
func (a *App) startMetricsServer(ctx context.Context, g *errgroup.Group) {
	addr := fmt.Sprintf(":%d", a.cfg.Metrics.Port)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "metrics server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
