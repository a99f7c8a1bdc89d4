// Package service implements the cycle lifecycle engine: opening, advancing,
// and closing sell/purchase/rent cycles, transferring ownership, and keeping
// each property's derived composite status in sync.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/metrics"
)

// NoActiveCycleStatus is the composite status of a property with no open
// cycles of any type.
const NoActiveCycleStatus = "No Active Cycle"

// StatusSynchronizer derives each property's composite status label from its
// active cycles. Derivation is pure and idempotent; the stored status is only
// ever a cache of what ComputeStatus returns for the current active sets.
type StatusSynchronizer struct {
	properties domain.PropertyStore
	sells      domain.SellCycleStore
	purchases  domain.PurchaseCycleStore
	rents      domain.RentCycleStore
	cache      domain.StatusCache
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewStatusSynchronizer creates a StatusSynchronizer with all required
// dependencies. cache and bus may be nil in tests or single-process setups.
func NewStatusSynchronizer(
	properties domain.PropertyStore,
	sells domain.SellCycleStore,
	purchases domain.PurchaseCycleStore,
	rents domain.RentCycleStore,
	cache domain.StatusCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *StatusSynchronizer {
	return &StatusSynchronizer{
		properties: properties,
		sells:      sells,
		purchases:  purchases,
		rents:      rents,
		cache:      cache,
		bus:        bus,
		logger:     logger,
	}
}

// ComputeStatus derives the composite status label from the given cycles.
// Only non-terminal cycles contribute. The sell fragment picks the most
// advanced active sell stage, the purchase fragment reports concurrent offer
// count, and the rent fragment picks the most advanced rental stage. Fragments
// are joined with " & "; no fragments yields NoActiveCycleStatus.
func ComputeStatus(sells []domain.SellCycle, purchases []domain.PurchaseCycle, rents []domain.RentCycle) string {
	var parts []string

	if frag := sellFragment(sells); frag != "" {
		parts = append(parts, frag)
	}
	if frag := purchaseFragment(purchases); frag != "" {
		parts = append(parts, frag)
	}
	if frag := rentFragment(rents); frag != "" {
		parts = append(parts, frag)
	}

	if len(parts) == 0 {
		return NoActiveCycleStatus
	}
	return strings.Join(parts, " & ")
}

func sellFragment(sells []domain.SellCycle) string {
	var underContract, negotiation, forSale bool
	for _, c := range sells {
		switch c.Status {
		case domain.SellStatusUnderContract:
			underContract = true
		case domain.SellStatusNegotiation:
			negotiation = true
		case domain.SellStatusListed, domain.SellStatusOfferReceived:
			forSale = true
		}
	}
	switch {
	case underContract:
		return "Under Contract"
	case negotiation:
		return "Sale Negotiation"
	case forSale:
		return "For Sale"
	default:
		return ""
	}
}

func purchaseFragment(purchases []domain.PurchaseCycle) string {
	var n int
	for _, c := range purchases {
		// A cycle still prospecting has no offer on the table yet.
		if c.Status.Terminal() || c.Status == domain.PurchaseStatusProspecting {
			continue
		}
		n++
	}
	switch n {
	case 0:
		return ""
	case 1:
		return "1 Purchase Offer"
	default:
		return fmt.Sprintf("%d Purchase Offers", n)
	}
}

func rentFragment(rents []domain.RentCycle) string {
	var leased, applications, advertised bool
	for _, c := range rents {
		switch c.Status {
		case domain.RentStatusLeased:
			leased = true
		case domain.RentStatusApplicationReceived:
			applications = true
		case domain.RentStatusAdvertised:
			advertised = true
		}
	}
	switch {
	case leased:
		return "Leased"
	case applications:
		return "Rental Applications Received"
	case advertised:
		return "For Rent"
	default:
		return ""
	}
}

// Resync recomputes the composite status for a property from its active cycle
// sets and persists it when it changed. It returns the derived status. Cache
// and bus failures are logged but never fail the resync; the store remains the
// source of truth.
func (s *StatusSynchronizer) Resync(ctx context.Context, propertyID string) (string, error) {
	p, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return "", fmt.Errorf("status_sync: get property %s: %w", propertyID, err)
	}

	sells, purchases, rents, err := s.activeCycles(ctx, p)
	if err != nil {
		return "", err
	}

	status := ComputeStatus(sells, purchases, rents)
	if status == p.Status {
		metrics.StatusResyncs.WithLabelValues("unchanged").Inc()
		s.cacheSet(ctx, p.ID, status)
		return status, nil
	}

	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	if err := s.properties.Update(ctx, p); err != nil {
		return "", fmt.Errorf("status_sync: update property %s: %w", propertyID, err)
	}
	metrics.StatusResyncs.WithLabelValues("changed").Inc()

	s.cacheSet(ctx, p.ID, status)
	s.publishStatusChange(ctx, p.ID, status)

	return status, nil
}

// activeCycles loads the cycles referenced by the property's active id sets.
// Ids pointing at rows that have since closed are filtered by status, so a
// stale set cannot resurrect a terminal cycle in the derived status.
func (s *StatusSynchronizer) activeCycles(ctx context.Context, p domain.Property) ([]domain.SellCycle, []domain.PurchaseCycle, []domain.RentCycle, error) {
	var (
		sells     []domain.SellCycle
		purchases []domain.PurchaseCycle
		rents     []domain.RentCycle
	)

	if len(p.ActiveSellCycleIDs) > 0 {
		all, err := s.sells.GetByProperty(ctx, p.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("status_sync: sell cycles for %s: %w", p.ID, err)
		}
		for _, c := range all {
			if domain.ContainsID(p.ActiveSellCycleIDs, c.ID) && !c.Status.Terminal() {
				sells = append(sells, c)
			}
		}
	}
	if len(p.ActivePurchaseCycleIDs) > 0 {
		all, err := s.purchases.GetByProperty(ctx, p.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("status_sync: purchase cycles for %s: %w", p.ID, err)
		}
		for _, c := range all {
			if domain.ContainsID(p.ActivePurchaseCycleIDs, c.ID) && !c.Status.Terminal() {
				purchases = append(purchases, c)
			}
		}
	}
	if len(p.ActiveRentCycleIDs) > 0 {
		all, err := s.rents.GetByProperty(ctx, p.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("status_sync: rent cycles for %s: %w", p.ID, err)
		}
		for _, c := range all {
			if domain.ContainsID(p.ActiveRentCycleIDs, c.ID) && !c.Status.Terminal() {
				rents = append(rents, c)
			}
		}
	}

	return sells, purchases, rents, nil
}

func (s *StatusSynchronizer) cacheSet(ctx context.Context, propertyID, status string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, propertyID, status); err != nil {
		s.logger.WarnContext(ctx, "status_sync: cache set failed",
			slog.String("property_id", propertyID),
			slog.String("error", err.Error()),
		)
		// Non-fatal: the cache entry will expire on its own.
	}
}

func (s *StatusSynchronizer) publishStatusChange(ctx context.Context, propertyID, status string) {
	if s.bus == nil {
		return
	}
	ev := domain.PropertyEvent{
		Event:      domain.EventPropertyStatusChanged,
		PropertyID: propertyID,
		Status:     status,
		At:         time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelProperties, payload); err != nil {
		s.logger.WarnContext(ctx, "status_sync: publish failed",
			slog.String("property_id", propertyID),
			slog.String("error", err.Error()),
		)
	}
}
