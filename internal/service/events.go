package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// publishCycleEvent marshals and publishes a cycle lifecycle event on the
// cycles channel. Publish failures are logged, never propagated: the store
// write has already committed and subscribers recover via periodic sweeps.
func publishCycleEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, ev domain.CycleEvent) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := bus.Publish(ctx, domain.ChannelCycles, payload); err != nil {
		logger.WarnContext(ctx, "publish cycle event failed",
			slog.String("event", ev.Event),
			slog.String("cycle_id", ev.CycleID),
			slog.String("error", err.Error()),
		)
	}
}

// publishPropertyEvent marshals and publishes a property mutation event on the
// properties channel.
func publishPropertyEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, ev domain.PropertyEvent) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := bus.Publish(ctx, domain.ChannelProperties, payload); err != nil {
		logger.WarnContext(ctx, "publish property event failed",
			slog.String("event", ev.Event),
			slog.String("property_id", ev.PropertyID),
			slog.String("error", err.Error()),
		)
	}
}
