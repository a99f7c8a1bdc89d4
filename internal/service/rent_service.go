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

// RentService manages the rent cycle lifecycle. A leased cycle stays active
// until the lease ends so the property keeps reading as "Leased".
type RentService struct {
	properties   domain.PropertyStore
	rents        domain.RentCycleStore
	transactions domain.TransactionStore
	tx           domain.TxRunner
	sync         *StatusSynchronizer
	bus          domain.SignalBus
	logger       *slog.Logger
}

// NewRentService creates a RentService with all required dependencies.
func NewRentService(
	properties domain.PropertyStore,
	rents domain.RentCycleStore,
	transactions domain.TransactionStore,
	tx domain.TxRunner,
	sync *StatusSynchronizer,
	bus domain.SignalBus,
	logger *slog.Logger,
) *RentService {
	return &RentService{
		properties:   properties,
		rents:        rents,
		transactions: transactions,
		tx:           tx,
		sync:         sync,
		bus:          bus,
		logger:       logger,
	}
}

// OpenRentCycleInput carries the fields needed to open a rent cycle.
type OpenRentCycleInput struct {
	PropertyID    string
	AgentID       string
	AgentName     string
	MonthlyRent   float64
	DepositAmount float64
}

// Open creates a new rent cycle in the advertised state.
func (s *RentService) Open(ctx context.Context, in OpenRentCycleInput) (domain.RentCycle, error) {
	if in.MonthlyRent <= 0 {
		return domain.RentCycle{}, fmt.Errorf("rent_service: monthly rent must be > 0")
	}

	now := time.Now().UTC()
	cycle := domain.RentCycle{
		ID:            uuid.New().String(),
		PropertyID:    in.PropertyID,
		AgentID:       in.AgentID,
		AgentName:     in.AgentName,
		MonthlyRent:   in.MonthlyRent,
		DepositAmount: in.DepositAmount,
		Status:        domain.RentStatusAdvertised,
		OpenedAt:      now,
		Notes:         []domain.CycleNote{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.properties.GetByID(ctx, in.PropertyID)
		if err != nil {
			return fmt.Errorf("get property %s: %w", in.PropertyID, err)
		}
		if err := s.rents.Create(ctx, cycle); err != nil {
			return fmt.Errorf("create rent cycle: %w", err)
		}
		p.ActiveRentCycleIDs = append(p.ActiveRentCycleIDs, cycle.ID)
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
		return domain.RentCycle{}, fmt.Errorf("rent_service: open: %w", err)
	}

	metrics.CyclesCreated.WithLabelValues(string(domain.CycleTypeRent)).Inc()
	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleCreated,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypeRent,
		Status:     string(cycle.Status),
		At:         now,
	})

	s.logger.InfoContext(ctx, "rent cycle opened",
		slog.String("cycle_id", cycle.ID),
		slog.String("property_id", cycle.PropertyID),
		slog.Float64("monthly_rent", cycle.MonthlyRent),
	)
	return cycle, nil
}

// UpdateStatus advances a rent cycle between the pre-lease states. Leasing
// goes through MarkLeased so the rental receipt is written; closing goes
// through EndLease or Cancel.
func (s *RentService) UpdateStatus(ctx context.Context, id string, status domain.RentCycleStatus) (domain.RentCycle, error) {
	if status.Terminal() {
		return domain.RentCycle{}, fmt.Errorf("rent_service: status %q closes the cycle; use EndLease or Cancel", status)
	}
	if status == domain.RentStatusLeased {
		return domain.RentCycle{}, fmt.Errorf("rent_service: use MarkLeased to lease a property")
	}

	var cycle domain.RentCycle
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.rents.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get rent cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}
		cycle.Status = status
		cycle.UpdatedAt = time.Now().UTC()
		if err := s.rents.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update rent cycle %s: %w", id, err)
		}
		if _, err := s.sync.Resync(ctx, cycle.PropertyID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.RentCycle{}, fmt.Errorf("rent_service: update status: %w", err)
	}

	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleStatusChanged,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypeRent,
		Status:     string(cycle.Status),
		At:         cycle.UpdatedAt,
	})
	return cycle, nil
}

// MarkLeasedInput carries the tenant and lease terms for MarkLeased.
type MarkLeasedInput struct {
	CycleID    string
	TenantID   string
	TenantName string
	LeaseStart time.Time
	LeaseEnd   time.Time
}

// MarkLeased moves a rent cycle to leased, records the tenant and lease
// window, and writes the rental receipt. The cycle stays active: ownership
// never changes on a rental, and the property reads "Leased" until EndLease.
func (s *RentService) MarkLeased(ctx context.Context, in MarkLeasedInput) (domain.RentCycle, domain.Transaction, error) {
	if in.TenantID == "" {
		return domain.RentCycle{}, domain.Transaction{}, fmt.Errorf("rent_service: mark leased: %w: tenant", domain.ErrMissingCounterpart)
	}
	var (
		cycle   domain.RentCycle
		receipt domain.Transaction
	)
	now := time.Now().UTC()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.rents.GetByID(ctx, in.CycleID)
		if err != nil {
			return fmt.Errorf("get rent cycle %s: %w", in.CycleID, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}

		cycle.Status = domain.RentStatusLeased
		cycle.TenantID = in.TenantID
		cycle.TenantName = in.TenantName
		leaseStart, leaseEnd := in.LeaseStart, in.LeaseEnd
		cycle.LeaseStart = &leaseStart
		if !leaseEnd.IsZero() {
			cycle.LeaseEnd = &leaseEnd
		}
		cycle.UpdatedAt = now
		if err := s.rents.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update rent cycle %s: %w", in.CycleID, err)
		}

		receipt = domain.Transaction{
			ID:              uuid.New().String(),
			PropertyID:      cycle.PropertyID,
			CycleID:         cycle.ID,
			CycleType:       domain.CycleTypeRent,
			Type:            domain.TransactionRental,
			CounterpartID:   in.TenantID,
			CounterpartName: in.TenantName,
			Amount:          cycle.MonthlyRent,
			Commission:      0,
			Date:            leaseStart,
			Status:          domain.TransactionStatusCompleted,
			CreatedAt:       now,
		}
		if err := s.transactions.Create(ctx, receipt); err != nil {
			return fmt.Errorf("create rental receipt: %w", err)
		}

		if _, err := s.sync.Resync(ctx, cycle.PropertyID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.RentCycle{}, domain.Transaction{}, fmt.Errorf("rent_service: mark leased: %w", err)
	}

	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleStatusChanged,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypeRent,
		Status:     string(cycle.Status),
		At:         now,
	})

	s.logger.InfoContext(ctx, "property leased",
		slog.String("cycle_id", cycle.ID),
		slog.String("property_id", cycle.PropertyID),
		slog.String("tenant_id", in.TenantID),
	)
	return cycle, receipt, nil
}

// EndLease closes a leased rent cycle. The cycle row and its receipt are kept
// forever; only the property's active set shrinks.
func (s *RentService) EndLease(ctx context.Context, id string) (domain.RentCycle, error) {
	return s.close(ctx, id, domain.RentStatusEnded, "")
}

// Cancel closes a rent cycle before a lease was signed.
func (s *RentService) Cancel(ctx context.Context, id, reason string) (domain.RentCycle, error) {
	return s.close(ctx, id, domain.RentStatusCancelled, reason)
}

func (s *RentService) close(ctx context.Context, id string, status domain.RentCycleStatus, reason string) (domain.RentCycle, error) {
	var cycle domain.RentCycle
	now := time.Now().UTC()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.rents.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get rent cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}

		cycle.Status = status
		cycle.ClosedAt = &now
		cycle.UpdatedAt = now
		if reason != "" {
			cycle.Notes = append(cycle.Notes, domain.CycleNote{Body: reason, At: now})
		}
		if err := s.rents.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update rent cycle %s: %w", id, err)
		}

		if _, err := detachClosedCycle(ctx, s.properties, cycle.PropertyID, domain.ClosedCycleRef{
			CycleID:   cycle.ID,
			CycleType: domain.CycleTypeRent,
			Outcome:   string(status),
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
		return domain.RentCycle{}, fmt.Errorf("rent_service: close: %w", err)
	}

	metrics.CyclesClosed.WithLabelValues(string(domain.CycleTypeRent), string(status)).Inc()
	event := domain.EventCycleStatusChanged
	if status == domain.RentStatusCancelled {
		event = domain.EventCycleCancelled
	}
	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      event,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypeRent,
		Status:     string(cycle.Status),
		At:         now,
	})
	return cycle, nil
}

// AddNote appends a communication log entry to an open rent cycle.
func (s *RentService) AddNote(ctx context.Context, id, authorID, body string) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cycle, err := s.rents.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get rent cycle %s: %w", id, err)
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
		return s.rents.Update(ctx, cycle)
	})
	if err != nil {
		return fmt.Errorf("rent_service: add note: %w", err)
	}
	return nil
}

// Get retrieves a rent cycle by id.
func (s *RentService) Get(ctx context.Context, id string) (domain.RentCycle, error) {
	cycle, err := s.rents.GetByID(ctx, id)
	if err != nil {
		return domain.RentCycle{}, fmt.Errorf("rent_service: get %s: %w", id, err)
	}
	return cycle, nil
}

// GetByProperty returns every rent cycle ever opened against a property.
func (s *RentService) GetByProperty(ctx context.Context, propertyID string) ([]domain.RentCycle, error) {
	cycles, err := s.rents.GetByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("rent_service: get by property %s: %w", propertyID, err)
	}
	return cycles, nil
}

// ListByAgent returns rent cycles handled by an agent.
func (s *RentService) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.RentCycle, error) {
	cycles, err := s.rents.ListByAgent(ctx, agentID, opts)
	if err != nil {
		return nil, fmt.Errorf("rent_service: list by agent %s: %w", agentID, err)
	}
	return cycles, nil
}
