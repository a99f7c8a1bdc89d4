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

// PurchaseService manages the purchase cycle lifecycle for all three
// purchaser types. Completion (the acquired status) is the ownership engine's
// job; this service handles everything up to that point.
type PurchaseService struct {
	properties domain.PropertyStore
	purchases  domain.PurchaseCycleStore
	tx         domain.TxRunner
	sync       *StatusSynchronizer
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewPurchaseService creates a PurchaseService with all required dependencies.
func NewPurchaseService(
	properties domain.PropertyStore,
	purchases domain.PurchaseCycleStore,
	tx domain.TxRunner,
	sync *StatusSynchronizer,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PurchaseService {
	return &PurchaseService{
		properties: properties,
		purchases:  purchases,
		tx:         tx,
		sync:       sync,
		bus:        bus,
		logger:     logger,
	}
}

// OpenPurchaseCycleInput carries the fields needed to open a purchase cycle.
// The purchaser-type specific field groups follow the same rules as
// domain.PurchaseCycle: only the group matching PurchaserType is read.
type OpenPurchaseCycleInput struct {
	PropertyID string
	AgentID    string
	AgentName  string

	PurchaserType domain.PurchaserType
	BuyerID       string
	BuyerName     string

	OfferAmount float64

	InvestmentBudget float64
	ExpectedROI      float64

	Investors       []domain.InvestorShare
	FacilitationFee float64

	CommissionRate   float64
	CommissionType   domain.CommissionType
	CommissionAmount float64
	BuyerBudget      float64
}

// Open creates a new purchase cycle in the prospecting state. Investor
// purchases must carry a share set summing to 100 before anything is written.
func (s *PurchaseService) Open(ctx context.Context, in OpenPurchaseCycleInput) (domain.PurchaseCycle, error) {
	switch in.PurchaserType {
	case domain.PurchaserAgency, domain.PurchaserClient:
	case domain.PurchaserInvestor:
		if err := domain.ValidateInvestorShares(in.Investors); err != nil {
			metrics.ShareValidationFailures.Inc()
			return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: open: %w", err)
		}
	default:
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: open: %w: %q", domain.ErrUnknownPurchaserType, in.PurchaserType)
	}
	if in.CommissionType == "" {
		in.CommissionType = domain.CommissionPercentage
	}

	now := time.Now().UTC()
	cycle := domain.PurchaseCycle{
		ID:               uuid.New().String(),
		PropertyID:       in.PropertyID,
		AgentID:          in.AgentID,
		AgentName:        in.AgentName,
		PurchaserType:    in.PurchaserType,
		BuyerID:          in.BuyerID,
		BuyerName:        in.BuyerName,
		OfferAmount:      in.OfferAmount,
		InvestmentBudget: in.InvestmentBudget,
		ExpectedROI:      in.ExpectedROI,
		Investors:        in.Investors,
		FacilitationFee:  in.FacilitationFee,
		CommissionRate:   in.CommissionRate,
		CommissionType:   in.CommissionType,
		CommissionAmount: in.CommissionAmount,
		BuyerBudget:      in.BuyerBudget,
		Status:           domain.PurchaseStatusProspecting,
		OpenedAt:         now,
		Notes:            []domain.CycleNote{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.properties.GetByID(ctx, in.PropertyID)
		if err != nil {
			return fmt.Errorf("get property %s: %w", in.PropertyID, err)
		}
		if err := s.purchases.Create(ctx, cycle); err != nil {
			return fmt.Errorf("create purchase cycle: %w", err)
		}
		p.ActivePurchaseCycleIDs = append(p.ActivePurchaseCycleIDs, cycle.ID)
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
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: open: %w", err)
	}

	metrics.CyclesCreated.WithLabelValues(string(domain.CycleTypePurchase)).Inc()
	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleCreated,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypePurchase,
		Status:     string(cycle.Status),
		At:         now,
	})

	s.logger.InfoContext(ctx, "purchase cycle opened",
		slog.String("cycle_id", cycle.ID),
		slog.String("property_id", cycle.PropertyID),
		slog.String("purchaser_type", string(cycle.PurchaserType)),
		slog.Float64("offer_amount", cycle.OfferAmount),
	)
	return cycle, nil
}

// UpdateStatus advances a purchase cycle to a new non-terminal status.
// Acquired is reached through the ownership engine, cancelled through Cancel.
func (s *PurchaseService) UpdateStatus(ctx context.Context, id string, status domain.PurchaseCycleStatus) (domain.PurchaseCycle, error) {
	if status.Terminal() {
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: status %q closes the cycle; use Cancel or the ownership engine", status)
	}

	var cycle domain.PurchaseCycle
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.purchases.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get purchase cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}
		cycle.Status = status
		cycle.UpdatedAt = time.Now().UTC()
		if err := s.purchases.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update purchase cycle %s: %w", id, err)
		}
		if _, err := s.sync.Resync(ctx, cycle.PropertyID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: update status: %w", err)
	}

	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleStatusChanged,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypePurchase,
		Status:     string(cycle.Status),
		At:         cycle.UpdatedAt,
	})
	return cycle, nil
}

// UpdateOffer changes the offer amount on an open purchase cycle.
func (s *PurchaseService) UpdateOffer(ctx context.Context, id string, offerAmount float64) (domain.PurchaseCycle, error) {
	if offerAmount <= 0 {
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: offer amount must be > 0")
	}

	var cycle domain.PurchaseCycle
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.purchases.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get purchase cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}
		cycle.OfferAmount = offerAmount
		cycle.UpdatedAt = time.Now().UTC()
		return s.purchases.Update(ctx, cycle)
	})
	if err != nil {
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: update offer: %w", err)
	}
	return cycle, nil
}

// UpdateInvestors replaces the share set on an open investor purchase cycle.
// The replacement set is validated before anything is written.
func (s *PurchaseService) UpdateInvestors(ctx context.Context, id string, shares []domain.InvestorShare) (domain.PurchaseCycle, error) {
	if err := domain.ValidateInvestorShares(shares); err != nil {
		metrics.ShareValidationFailures.Inc()
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: update investors: %w", err)
	}

	var cycle domain.PurchaseCycle
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.purchases.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get purchase cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}
		if cycle.PurchaserType != domain.PurchaserInvestor {
			return fmt.Errorf("%w: cycle %s is %q", domain.ErrUnknownPurchaserType, id, cycle.PurchaserType)
		}
		cycle.Investors = shares
		cycle.UpdatedAt = time.Now().UTC()
		return s.purchases.Update(ctx, cycle)
	})
	if err != nil {
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: update investors: %w", err)
	}
	return cycle, nil
}

// Cancel closes a purchase cycle without an acquisition.
func (s *PurchaseService) Cancel(ctx context.Context, id, reason string) (domain.PurchaseCycle, error) {
	var cycle domain.PurchaseCycle
	now := time.Now().UTC()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = s.purchases.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get purchase cycle %s: %w", id, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}

		cycle.Status = domain.PurchaseStatusCancelled
		cycle.ClosedAt = &now
		cycle.UpdatedAt = now
		if reason != "" {
			cycle.Notes = append(cycle.Notes, domain.CycleNote{Body: reason, At: now})
		}
		if err := s.purchases.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update purchase cycle %s: %w", id, err)
		}

		if _, err := detachClosedCycle(ctx, s.properties, cycle.PropertyID, domain.ClosedCycleRef{
			CycleID:   cycle.ID,
			CycleType: domain.CycleTypePurchase,
			Outcome:   string(domain.PurchaseStatusCancelled),
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
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: cancel: %w", err)
	}

	metrics.CyclesClosed.WithLabelValues(string(domain.CycleTypePurchase), string(domain.PurchaseStatusCancelled)).Inc()
	publishCycleEvent(ctx, s.bus, s.logger, domain.CycleEvent{
		Event:      domain.EventCycleCancelled,
		PropertyID: cycle.PropertyID,
		CycleID:    cycle.ID,
		CycleType:  domain.CycleTypePurchase,
		Status:     string(cycle.Status),
		At:         now,
	})
	return cycle, nil
}

// AddNote appends a communication log entry to an open purchase cycle.
func (s *PurchaseService) AddNote(ctx context.Context, id, authorID, body string) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cycle, err := s.purchases.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get purchase cycle %s: %w", id, err)
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
		return s.purchases.Update(ctx, cycle)
	})
	if err != nil {
		return fmt.Errorf("purchase_service: add note: %w", err)
	}
	return nil
}

// Get retrieves a purchase cycle by id.
func (s *PurchaseService) Get(ctx context.Context, id string) (domain.PurchaseCycle, error) {
	cycle, err := s.purchases.GetByID(ctx, id)
	if err != nil {
		return domain.PurchaseCycle{}, fmt.Errorf("purchase_service: get %s: %w", id, err)
	}
	return cycle, nil
}

// GetByProperty returns every purchase cycle ever opened against a property.
func (s *PurchaseService) GetByProperty(ctx context.Context, propertyID string) ([]domain.PurchaseCycle, error) {
	cycles, err := s.purchases.GetByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("purchase_service: get by property %s: %w", propertyID, err)
	}
	return cycles, nil
}

// ListByAgent returns purchase cycles handled by an agent.
func (s *PurchaseService) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.PurchaseCycle, error) {
	cycles, err := s.purchases.ListByAgent(ctx, agentID, opts)
	if err != nil {
		return nil, fmt.Errorf("purchase_service: list by agent %s: %w", agentID, err)
	}
	return cycles, nil
}
