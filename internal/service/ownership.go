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

// OwnershipEngine performs the validate-then-mutate completion of sell and
// purchase cycles: writing the immutable receipt, transferring title, and
// appending the ownership record. Every completion runs inside a single
// transaction so a concurrent reader never sees updated ownership next to a
// still-open cycle.
type OwnershipEngine struct {
	properties   domain.PropertyStore
	sells        domain.SellCycleStore
	purchases    domain.PurchaseCycleStore
	transactions domain.TransactionStore
	tx           domain.TxRunner
	sync         *StatusSynchronizer
	bus          domain.SignalBus
	logger       *slog.Logger

	// agencyID and agencyName identify the brokerage itself when it becomes
	// the owner of record on an agency purchase.
	agencyID   string
	agencyName string
}

// NewOwnershipEngine creates an OwnershipEngine with all required dependencies.
func NewOwnershipEngine(
	properties domain.PropertyStore,
	sells domain.SellCycleStore,
	purchases domain.PurchaseCycleStore,
	transactions domain.TransactionStore,
	tx domain.TxRunner,
	sync *StatusSynchronizer,
	bus domain.SignalBus,
	logger *slog.Logger,
	agencyID, agencyName string,
) *OwnershipEngine {
	return &OwnershipEngine{
		properties:   properties,
		sells:        sells,
		purchases:    purchases,
		transactions: transactions,
		tx:           tx,
		sync:         sync,
		bus:          bus,
		logger:       logger,
		agencyID:     agencyID,
		agencyName:   agencyName,
	}
}

// CompletePurchase closes a purchase cycle as acquired and transfers title to
// the purchaser. finalPrice overrides the cycle's offer amount when positive.
//
// All validation runs before any write: an invalid investor share set or an
// unknown purchaser type leaves the cycle, the property, and the receipt log
// untouched.
func (e *OwnershipEngine) CompletePurchase(ctx context.Context, cycleID string, finalPrice float64) (domain.Transaction, error) {
	var (
		cycle   domain.PurchaseCycle
		receipt domain.Transaction
	)
	now := time.Now().UTC()

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = e.purchases.GetByID(ctx, cycleID)
		if err != nil {
			return fmt.Errorf("get purchase cycle %s: %w", cycleID, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}

		ownerID, ownerName, ownerKind, err := e.resolveNewOwner(cycle)
		if err != nil {
			return err
		}

		price := finalPrice
		if price <= 0 {
			price = cycle.OfferAmount
		}
		commission := cycle.Commission(price)

		receipt = domain.Transaction{
			ID:              uuid.New().String(),
			PropertyID:      cycle.PropertyID,
			CycleID:         cycle.ID,
			CycleType:       domain.CycleTypePurchase,
			Type:            domain.TransactionPurchase,
			CounterpartID:   ownerID,
			CounterpartName: ownerName,
			Amount:          price,
			Commission:      commission,
			Date:            now,
			Status:          domain.TransactionStatusCompleted,
			CreatedAt:       now,
		}
		if err := e.transactions.Create(ctx, receipt); err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}

		cycle.Status = domain.PurchaseStatusAcquired
		cycle.FinalPrice = price
		cycle.ClosedAt = &now
		cycle.UpdatedAt = now
		if err := e.purchases.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update purchase cycle %s: %w", cycleID, err)
		}

		p, err := detachClosedCycle(ctx, e.properties, cycle.PropertyID, domain.ClosedCycleRef{
			CycleID:   cycle.ID,
			CycleType: domain.CycleTypePurchase,
			Outcome:   string(domain.PurchaseStatusAcquired),
			ClosedAt:  now,
		})
		if err != nil {
			return err
		}

		record := domain.OwnershipRecord{
			ID:                uuid.New().String(),
			PreviousOwnerID:   p.CurrentOwnerID,
			PreviousOwnerName: p.CurrentOwnerName,
			PreviousOwnerKind: p.CurrentOwnerKind,
			NewOwnerID:        ownerID,
			NewOwnerName:      ownerName,
			NewOwnerKind:      ownerKind,
			TransactionID:     receipt.ID,
			SalePrice:         price,
			TransferredAt:     now,
		}
		if cycle.PurchaserType == domain.PurchaserInvestor {
			record.InvestorShares = append([]domain.InvestorShare(nil), cycle.Investors...)
		}

		p.OwnershipHistory = append(p.OwnershipHistory, record)
		p.CurrentOwnerID = ownerID
		p.CurrentOwnerName = ownerName
		p.CurrentOwnerKind = ownerKind
		p.UpdatedAt = now
		if err := e.properties.Update(ctx, p); err != nil {
			return fmt.Errorf("update property %s: %w", p.ID, err)
		}

		if _, err := e.sync.Resync(ctx, p.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ownership: complete purchase: %w", err)
	}

	metrics.CyclesClosed.WithLabelValues(string(domain.CycleTypePurchase), string(domain.PurchaseStatusAcquired)).Inc()
	metrics.OwnershipTransfers.WithLabelValues(string(cycle.PurchaserType)).Inc()
	e.publishTransfer(ctx, cycle.PropertyID, receipt)

	e.logger.InfoContext(ctx, "purchase completed",
		slog.String("cycle_id", cycle.ID),
		slog.String("property_id", cycle.PropertyID),
		slog.String("purchaser_type", string(cycle.PurchaserType)),
		slog.Float64("price", receipt.Amount),
		slog.Float64("commission", receipt.Commission),
	)
	return receipt, nil
}

// resolveNewOwner maps a purchase cycle's purchaser to the owner of record.
// Investor purchases get a synthetic group owner so the property has a single
// title holder; the per-investor split lives in the ownership record.
func (e *OwnershipEngine) resolveNewOwner(cycle domain.PurchaseCycle) (id, name string, kind domain.OwnerKind, err error) {
	switch cycle.PurchaserType {
	case domain.PurchaserAgency:
		return e.agencyID, e.agencyName, domain.OwnerKindAgency, nil
	case domain.PurchaserClient:
		return cycle.BuyerID, cycle.BuyerName, domain.OwnerKindClient, nil
	case domain.PurchaserInvestor:
		if err := domain.ValidateInvestorShares(cycle.Investors); err != nil {
			metrics.ShareValidationFailures.Inc()
			return "", "", "", err
		}
		return "investor-group:" + cycle.ID,
			fmt.Sprintf("Investor Group (%d)", len(cycle.Investors)),
			domain.OwnerKindInvestor, nil
	default:
		return "", "", "", fmt.Errorf("%w: %q", domain.ErrUnknownPurchaserType, cycle.PurchaserType)
	}
}

// CompleteSellInput carries the closing terms for a sale. BuyerKind defaults
// to external when unset.
type CompleteSellInput struct {
	CycleID       string
	AcceptedPrice float64
	BuyerID       string
	BuyerName     string
	BuyerKind     domain.OwnerKind
}

// CompleteSell closes a sell cycle as sold and transfers title to the buyer.
// The accepted price overrides the asking price when positive.
func (e *OwnershipEngine) CompleteSell(ctx context.Context, in CompleteSellInput) (domain.Transaction, error) {
	var (
		cycle   domain.SellCycle
		receipt domain.Transaction
	)
	if in.BuyerID == "" {
		return domain.Transaction{}, fmt.Errorf("ownership: complete sell: %w: buyer", domain.ErrMissingCounterpart)
	}
	now := time.Now().UTC()
	buyerKind := in.BuyerKind
	if buyerKind == "" {
		buyerKind = domain.OwnerKindExternal
	}

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cycle, err = e.sells.GetByID(ctx, in.CycleID)
		if err != nil {
			return fmt.Errorf("get sell cycle %s: %w", in.CycleID, err)
		}
		if cycle.Status.Terminal() {
			return domain.ErrCycleClosed
		}

		price := in.AcceptedPrice
		if price <= 0 {
			price = cycle.AskingPrice
		}
		commission := cycle.Commission(price)

		receipt = domain.Transaction{
			ID:              uuid.New().String(),
			PropertyID:      cycle.PropertyID,
			CycleID:         cycle.ID,
			CycleType:       domain.CycleTypeSell,
			Type:            domain.TransactionSale,
			CounterpartID:   in.BuyerID,
			CounterpartName: in.BuyerName,
			Amount:          price,
			Commission:      commission,
			Date:            now,
			Status:          domain.TransactionStatusCompleted,
			CreatedAt:       now,
		}
		if err := e.transactions.Create(ctx, receipt); err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}

		cycle.Status = domain.SellStatusSold
		cycle.AcceptedPrice = price
		cycle.ClosedAt = &now
		cycle.UpdatedAt = now
		if err := e.sells.Update(ctx, cycle); err != nil {
			return fmt.Errorf("update sell cycle %s: %w", in.CycleID, err)
		}

		p, err := detachClosedCycle(ctx, e.properties, cycle.PropertyID, domain.ClosedCycleRef{
			CycleID:   cycle.ID,
			CycleType: domain.CycleTypeSell,
			Outcome:   string(domain.SellStatusSold),
			ClosedAt:  now,
		})
		if err != nil {
			return err
		}

		p.OwnershipHistory = append(p.OwnershipHistory, domain.OwnershipRecord{
			ID:                uuid.New().String(),
			PreviousOwnerID:   p.CurrentOwnerID,
			PreviousOwnerName: p.CurrentOwnerName,
			PreviousOwnerKind: p.CurrentOwnerKind,
			NewOwnerID:        in.BuyerID,
			NewOwnerName:      in.BuyerName,
			NewOwnerKind:      buyerKind,
			TransactionID:     receipt.ID,
			SalePrice:         price,
			TransferredAt:     now,
		})
		p.CurrentOwnerID = in.BuyerID
		p.CurrentOwnerName = in.BuyerName
		p.CurrentOwnerKind = buyerKind
		p.UpdatedAt = now
		if err := e.properties.Update(ctx, p); err != nil {
			return fmt.Errorf("update property %s: %w", p.ID, err)
		}

		if _, err := e.sync.Resync(ctx, p.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ownership: complete sell: %w", err)
	}

	metrics.CyclesClosed.WithLabelValues(string(domain.CycleTypeSell), string(domain.SellStatusSold)).Inc()
	metrics.OwnershipTransfers.WithLabelValues(string(buyerKind)).Inc()
	e.publishTransfer(ctx, cycle.PropertyID, receipt)

	e.logger.InfoContext(ctx, "sale completed",
		slog.String("cycle_id", cycle.ID),
		slog.String("property_id", cycle.PropertyID),
		slog.Float64("price", receipt.Amount),
		slog.Float64("commission", receipt.Commission),
	)
	return receipt, nil
}

func (e *OwnershipEngine) publishTransfer(ctx context.Context, propertyID string, receipt domain.Transaction) {
	publishPropertyEvent(ctx, e.bus, e.logger, domain.PropertyEvent{
		Event:         domain.EventOwnershipTransferred,
		PropertyID:    propertyID,
		OwnerID:       receipt.CounterpartID,
		TransactionID: receipt.ID,
		At:            receipt.Date,
	})
}
