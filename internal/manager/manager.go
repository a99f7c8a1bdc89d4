// Package manager exposes the cycle engine's aggregate read operations and
// cross-cycle workflows behind a single façade.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/match"
	"github.com/estatedesk/brokercycle/internal/service"
)

// Manager ties the lifecycle services, the ownership engine, and the match
// detector together for callers that want one entry point.
type Manager struct {
	properties   *service.PropertyService
	sells        *service.SellService
	purchases    *service.PurchaseService
	rents        *service.RentService
	ownership    *service.OwnershipEngine
	detector     *match.Detector
	transactions domain.TransactionStore

	sellStore     domain.SellCycleStore
	purchaseStore domain.PurchaseCycleStore
	rentStore     domain.RentCycleStore
	propertyStore domain.PropertyStore

	logger *slog.Logger
}

// Deps bundles the Manager's dependencies.
type Deps struct {
	Properties   *service.PropertyService
	Sells        *service.SellService
	Purchases    *service.PurchaseService
	Rents        *service.RentService
	Ownership    *service.OwnershipEngine
	Detector     *match.Detector
	Transactions domain.TransactionStore

	SellStore     domain.SellCycleStore
	PurchaseStore domain.PurchaseCycleStore
	RentStore     domain.RentCycleStore
	PropertyStore domain.PropertyStore

	Logger *slog.Logger
}

// New creates a Manager from its dependencies.
func New(d Deps) *Manager {
	return &Manager{
		properties:    d.Properties,
		sells:         d.Sells,
		purchases:     d.Purchases,
		rents:         d.Rents,
		ownership:     d.Ownership,
		detector:      d.Detector,
		transactions:  d.Transactions,
		sellStore:     d.SellStore,
		purchaseStore: d.PurchaseStore,
		rentStore:     d.RentStore,
		propertyStore: d.PropertyStore,
		logger:        d.Logger,
	}
}

// PropertyCycles is the full cycle state of one property: the asset record
// plus every cycle ever opened against it, active and closed.
type PropertyCycles struct {
	Property  domain.Property
	Sells     []domain.SellCycle
	Purchases []domain.PurchaseCycle
	Rents     []domain.RentCycle
}

// GetPropertyCycles returns a property and its complete cycle history.
func (m *Manager) GetPropertyCycles(ctx context.Context, propertyID string) (PropertyCycles, error) {
	p, err := m.properties.Get(ctx, propertyID)
	if err != nil {
		return PropertyCycles{}, fmt.Errorf("manager: get property cycles: %w", err)
	}

	sells, err := m.sellStore.GetByProperty(ctx, propertyID)
	if err != nil {
		return PropertyCycles{}, fmt.Errorf("manager: get property cycles: %w", err)
	}
	purchases, err := m.purchaseStore.GetByProperty(ctx, propertyID)
	if err != nil {
		return PropertyCycles{}, fmt.Errorf("manager: get property cycles: %w", err)
	}
	rents, err := m.rentStore.GetByProperty(ctx, propertyID)
	if err != nil {
		return PropertyCycles{}, fmt.Errorf("manager: get property cycles: %w", err)
	}

	return PropertyCycles{
		Property:  p,
		Sells:     sells,
		Purchases: purchases,
		Rents:     rents,
	}, nil
}

// TimelineEntry is one event in a property's chronological history.
type TimelineEntry struct {
	Kind    string // "cycle_opened", "cycle_closed", "transaction"
	At      time.Time
	CycleID string
	Type    domain.CycleType
	Detail  string
}

// GetPropertyCycleTimeline merges cycle openings, closures, and receipts for
// a property into a single newest-first timeline.
func (m *Manager) GetPropertyCycleTimeline(ctx context.Context, propertyID string) ([]TimelineEntry, error) {
	pc, err := m.GetPropertyCycles(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	var entries []TimelineEntry

	for _, c := range pc.Sells {
		entries = append(entries, TimelineEntry{
			Kind: "cycle_opened", At: c.ListedAt, CycleID: c.ID,
			Type: domain.CycleTypeSell, Detail: "listed",
		})
		if c.ClosedAt != nil {
			entries = append(entries, TimelineEntry{
				Kind: "cycle_closed", At: *c.ClosedAt, CycleID: c.ID,
				Type: domain.CycleTypeSell, Detail: string(c.Status),
			})
		}
	}
	for _, c := range pc.Purchases {
		entries = append(entries, TimelineEntry{
			Kind: "cycle_opened", At: c.OpenedAt, CycleID: c.ID,
			Type: domain.CycleTypePurchase, Detail: string(c.PurchaserType),
		})
		if c.ClosedAt != nil {
			entries = append(entries, TimelineEntry{
				Kind: "cycle_closed", At: *c.ClosedAt, CycleID: c.ID,
				Type: domain.CycleTypePurchase, Detail: string(c.Status),
			})
		}
	}
	for _, c := range pc.Rents {
		entries = append(entries, TimelineEntry{
			Kind: "cycle_opened", At: c.OpenedAt, CycleID: c.ID,
			Type: domain.CycleTypeRent, Detail: "advertised",
		})
		if c.ClosedAt != nil {
			entries = append(entries, TimelineEntry{
				Kind: "cycle_closed", At: *c.ClosedAt, CycleID: c.ID,
				Type: domain.CycleTypeRent, Detail: string(c.Status),
			})
		}
	}

	receipts, err := m.transactions.GetByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("manager: timeline receipts for %s: %w", propertyID, err)
	}
	for _, t := range receipts {
		entries = append(entries, TimelineEntry{
			Kind: "transaction", At: t.Date, CycleID: t.CycleID,
			Type: t.CycleType, Detail: string(t.Type),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].At.After(entries[j].At)
	})
	return entries, nil
}

// DualRepresentation describes one property where an agent holds both the
// sell side and a purchase side.
type DualRepresentation struct {
	PropertyID      string
	Address         string
	SellCycleID     string
	PurchaseCycleID string
}

// CheckAgentDualRepresentation finds every live internal match where the
// given agent represents both sides.
func (m *Manager) CheckAgentDualRepresentation(ctx context.Context, agentID string) ([]DualRepresentation, error) {
	matches, err := m.detector.Detect(ctx, match.Opts{AgentID: agentID})
	if err != nil {
		return nil, fmt.Errorf("manager: dual representation for %s: %w", agentID, err)
	}

	var out []DualRepresentation
	for _, mt := range matches {
		if mt.SellAgentID != agentID {
			continue
		}
		for _, c := range mt.Candidates {
			if c.IsDualRep && c.AgentID == agentID {
				out = append(out, DualRepresentation{
					PropertyID:      mt.PropertyID,
					Address:         mt.PropertyAddress,
					SellCycleID:     mt.SellCycleID,
					PurchaseCycleID: c.PurchaseCycleID,
				})
			}
		}
	}
	return out, nil
}

// AcceptInternalMatch pairs a live sell cycle with a live purchase cycle on
// the same property and moves both into negotiation. Both cycles must
// reference the same property.
func (m *Manager) AcceptInternalMatch(ctx context.Context, sellCycleID, purchaseCycleID string) error {
	sell, err := m.sells.Get(ctx, sellCycleID)
	if err != nil {
		return fmt.Errorf("manager: accept match: %w", err)
	}
	purchase, err := m.purchases.Get(ctx, purchaseCycleID)
	if err != nil {
		return fmt.Errorf("manager: accept match: %w", err)
	}
	if sell.PropertyID != purchase.PropertyID {
		return fmt.Errorf("manager: accept match: %w: sell cycle is on %s, purchase cycle on %s",
			domain.ErrPropertyMismatch, sell.PropertyID, purchase.PropertyID)
	}

	if _, err := m.sells.UpdateStatus(ctx, sellCycleID, domain.SellStatusNegotiation); err != nil {
		return fmt.Errorf("manager: accept match: %w", err)
	}
	if _, err := m.purchases.UpdateStatus(ctx, purchaseCycleID, domain.PurchaseStatusNegotiation); err != nil {
		return fmt.Errorf("manager: accept match: %w", err)
	}

	m.logger.InfoContext(ctx, "internal match accepted",
		slog.String("property_id", sell.PropertyID),
		slog.String("sell_cycle_id", sellCycleID),
		slog.String("purchase_cycle_id", purchaseCycleID),
	)
	return nil
}

// CycleStats is an aggregate snapshot across the whole portfolio.
type CycleStats struct {
	Properties      int64
	SellByStatus    map[domain.SellCycleStatus]int64
	BuyByStatus     map[domain.PurchaseCycleStatus]int64
	RentByStatus    map[domain.RentCycleStatus]int64
	InternalMatches int
}

// GetAllCycleStats aggregates per-status cycle counts and the current number
// of internal matches. The opts scope the match count to one agent and side;
// the per-status counts always cover the whole portfolio.
func (m *Manager) GetAllCycleStats(ctx context.Context, opts match.Opts) (CycleStats, error) {
	var stats CycleStats
	var err error

	if stats.Properties, err = m.propertyStore.Count(ctx); err != nil {
		return CycleStats{}, fmt.Errorf("manager: stats: %w", err)
	}
	if stats.SellByStatus, err = m.sellStore.CountByStatus(ctx); err != nil {
		return CycleStats{}, fmt.Errorf("manager: stats: %w", err)
	}
	if stats.BuyByStatus, err = m.purchaseStore.CountByStatus(ctx); err != nil {
		return CycleStats{}, fmt.Errorf("manager: stats: %w", err)
	}
	if stats.RentByStatus, err = m.rentStore.CountByStatus(ctx); err != nil {
		return CycleStats{}, fmt.Errorf("manager: stats: %w", err)
	}

	matches, err := m.detector.Detect(ctx, opts)
	if err != nil {
		return CycleStats{}, fmt.Errorf("manager: stats: %w", err)
	}
	stats.InternalMatches = len(matches)

	return stats, nil
}

// DetectMatches runs the internal match detector with the given filter.
func (m *Manager) DetectMatches(ctx context.Context, opts match.Opts) ([]domain.InternalMatch, error) {
	return m.detector.Detect(ctx, opts)
}
