package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/metrics"
)

// SellService manages the sell cycle lifecycle. A property can carry any
// number of concurrent sell cycles; each one is an independent attempt to sell.
type SellService struct {
	properties domain.PropertyStore
	sells      domain.SellCycleStore
	tx         domain.TxRunner
	sync       *StatusSynchronizer
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewSellService creates a SellService with all required dependencies.
func NewSellService(
	properties domain.PropertyStore,
	sells domain.SellCycleStore,
	tx domain.TxRunner,
	sync *StatusSynchronizer,
	bus domain.SignalBus,
	logger *slog.Logger,
) *SellService {
	return &SellService{
		properties: properties,
		sells:      sells,
		tx:         tx,
		sync:       sync,
		bus:        bus,
		logger:     logger,
	}
}

// OpenSellCycleInput carries the fields needed to open a sell cycle.
type OpenSellCycleInput struct {
	PropertyID string
	AgentID    string
	AgentName  string
	SellerID   string
	SellerName string

	AskingPrice      float64
	CommissionRate   float64
	CommissionType   domain.CommissionType
	CommissionAmount float64
}

// Open creates a new sell cycle in the listed state and attaches it to the
// property's active set.
func (s *SellService) Open(ctx context.Context, in OpenSellCycleInput) (domain.SellCycle, error) {
	if in.AskingPrice <= 0 {
		return domain.SellCycle{}, fmt.Errorf("sell_service: asking price must be > 0")
	}
	if in.CommissionType == "" {
		in.CommissionType = domain.CommissionPercentage
	}

	now := time.Now().UTC()
	cycle := domain.SellCycle{
		ID:               uuid.New().String(),
		PropertyID:       in.PropertyID,
		AgentID:          in.AgentID,
		AgentName:        in.AgentName,
		SellerID:         in.SellerID,
		SellerName:       in.SellerName,
		AskingPrice:      in.AskingPrice,
		CommissionRate:   in.CommissionRate,
		CommissionType:   in.CommissionType,
		CommissionAmount: in.CommissionAmount,
		Status:           domain.SellStatusListed,
		ListedAt:         now,
		Notes:            []domain.CycleNote{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.properties.GetByID(ctx, in.PropertyID)
		if err != nil {
			return fmt.Errorf("get property %s: %w", in.PropertyID, err)
		}
		if err := s.sells.Create(ctx, cycle); err != nil {
			return fmt.Errorf("create sell cycle: %w", err)
		}
		p.ActiveSellCycleIDs = append(p.ActiveSellCycleIDs, cycle.ID)
		p.UpdatedAt = now
		if err := s.properties.Update(ctx, p); err != nil {
			return fmt.Errorf("update property %s: %w", p.ID, err)
		}
		if _, err := s.sync.Resync(ctx, p.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.SellCycle{}, fmt.Errorf("sell_service: open: %w", err)
	}

	metrics.CyclesCreated.WithLabelValues(string(domain.CycleTypeSell)).Inc()
	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleCreated,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypeSell,
		Status:     string(cycle.Status),
		At:         now,
	})

	s.logger.InfoContext(ctx, "sell cycle opened",
		slog.String("cycle_id", cycle.ID),
		slog.String("property_id", cycle.PropertyID),
		slog.Float64("asking_price", cycle.AskingPrice),
	)
	return cycle, nil
}

// UpdateStatus advances a sell cycle to a new non-terminal status. Terminal
// statuses are reached through Cancel or the ownership engine, never here.
func (s *SellService) UpdateStatus(ctx context.Context, id string, status domain.SellCycleStatus) (domain.SellCycle, error) {
	if status.Terminal() {
		return domain.SellCycle{}, fmt.Errorf("sell_service: status %q closes the cycle; use Cancel or the ownership engine", status)
	}

	var cycle domain.SellCycle
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.sells.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get sell cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}
		cycle.Status = status
		cycle.UpdatedAt = time.Now().UTC()
		if err := s.sells.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update sell cycle %s: %w", id, err)
		}
		if _, err := s.sync.Resync(ctx, cycle.PropertyID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.SellCycle{}, fmt.Errorf("sell_service: update status: %w", err)
	}

	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleStatusChanged,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypeSell,
		Status:     string(cycle.Status),
		At:         cycle.UpdatedAt,
	})
	return cycle, nil
}

// Cancel closes a sell cycle without a sale. The cycle row is kept forever;
// only the property's active set shrinks.
func (s *SellService) Cancel(ctx context.Context, id, reason string) (domain.SellCycle, error) {
	var cycle domain.SellCycle
	now := time.Now().UTC()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.sells.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get sell cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}

		cycle.Status = domain.SellStatusCancelled
		cycle.ClosedAt = &now
		cycle.UpdatedAt = now
		if reason != "" {
			cycle.Notes = append(cycle.Notes, domain.CycleNote{Body: reason, At: now})
		}
		if err := s.sells.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update sell cycle %s: %w", id, err)
		}

		if _, err := detachClosedCycle(ctx, s.properties, cycle.PropertyID, domain.ClosedCycleRef{
			CycleID:   cycle.ID,
			CycleType: domain.CycleTypeSell,
			Outcome:   string(domain.SellStatusCancelled),
			ClosedAt:  now,
		}); err != nil {
			return err
		}
		if _, err := s.sync.Resync(ctx, cycle.PropertyID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.SellCycle{}, fmt.Errorf("sell_service: cancel: %w", err)
	}

	metrics.CyclesClosed.WithLabelValues(string(domain.CycleTypeSell), string(domain.SellStatusCancelled)).Inc()
	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleCancelled,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypeSell,
		Status:     string(cycle.Status),
		At:         now,
	})
	return cycle, nil
}

// AddNote appends a communication log entry to an open sell cycle.
func (s *SellService) AddNote(ctx context.Context, id, authorID, body string) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cycle, err := s.sells.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get sell cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}
		cycle.Notes = append(cycle.Notes, domain.CycleNote{
			AuthorID: authorID,
			Body:     body,
			At:       time.Now().UTC(),
		})
		cycle.UpdatedAt = time.Now().UTC()
		return s.sells.Update(ctx, cycle)
	})
	if err != nil {
		return fmt.Errorf("sell_service: add note: %w", err)
	}
	return nil
}

// Get retrieves a sell cycle by id.
func (s *SellService) Get(ctx context.Context, id string) (domain.SellCycle, error) {
	cycle, err := s.sells.GetByID(ctx, id)
	if err != nil {
		return domain.SellCycle{}, fmt.Errorf("sell_service: get %s: %w", id, err)
	}
	return cycle, nil
}

// GetByProperty returns every sell cycle ever opened against a property,
// active and closed.
func (s *SellService) GetByProperty(ctx context.Context, propertyID string) ([]domain.SellCycle, error) {
	cycles, err := s.sells.GetByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("sell_service: get by property %s: %w", propertyID, err)
	}
	return cycles, nil
}

// ListByAgent returns sell cycles handled by an agent.
func (s *SellService) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.SellCycle, error) {
	cycles, err := s.sells.ListByAgent(ctx, agentID, opts)
	if err != nil {
		return nil, fmt.Errorf("sell_service: list by agent %s: %w", agentID, err)
	}
	return cycles, nil
}
