package service

import (
	"context"
	"fmt"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// detachClosedCycle removes a freshly closed cycle from the property's active
// id set and appends the closure to the property's cycle history. The caller
// is responsible for persisting the cycle row itself and for running inside a
// transaction.
func detachClosedCycle(ctx context.Context, properties domain.PropertyStore, propertyID string, ref domain.ClosedCycleRef) (domain.Property, error) {
	p, err := properties.GetByID(ctx, propertyID)
	if err != nil {
		return domain.Property{}, fmt.Errorf("get property %s: %w", propertyID, err)
	}

	switch ref.CycleType {
	case domain.CycleTypeSell:
		p.ActiveSellCycleIDs = domain.RemoveID(p.ActiveSellCycleIDs, ref.CycleID)
	case domain.CycleTypePurchase:
		p.ActivePurchaseCycleIDs = domain.RemoveID(p.ActivePurchaseCycleIDs, ref.CycleID)
	case domain.CycleTypeRent:
		p.ActiveRentCycleIDs = domain.RemoveID(p.ActiveRentCycleIDs, ref.CycleID)
	}

	p.CycleHistory = append(p.CycleHistory, ref)
	p.UpdatedAt = time.Now().UTC()

	if err := properties.Update(ctx, p); err != nil {
		return domain.Property{}, fmt.Errorf("update property %s: %w", propertyID, err)
	}
	return p, nil
}
