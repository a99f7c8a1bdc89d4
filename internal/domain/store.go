package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PropertyStore persists the permanent asset records.
type PropertyStore interface {
	Create(ctx context.Context, p Property) error
	Update(ctx context.Context, p Property) error
	GetByID(ctx context.Context, id string) (Property, error)
	List(ctx context.Context, opts ListOpts) ([]Property, error)

	// ListWithOpenSellAndPurchase returns properties carrying at least one
	// active sell cycle id and at least one active purchase cycle id; the
	// candidate set for internal match detection.
	ListWithOpenSellAndPurchase(ctx context.Context) ([]Property, error)

	Count(ctx context.Context) (int64, error)
}

// SellCycleStore persists sell cycles. GetByProperty returns the entire
// history for the property, active and closed, preserving the asset-centric
// audit trail.
type SellCycleStore interface {
	Create(ctx context.Context, c SellCycle) error
	Update(ctx context.Context, c SellCycle) error
	GetByID(ctx context.Context, id string) (SellCycle, error)
	GetByProperty(ctx context.Context, propertyID string) ([]SellCycle, error)
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]SellCycle, error)
	CountByStatus(ctx context.Context) (map[SellCycleStatus]int64, error)
}

// PurchaseCycleStore persists purchase cycles.
type PurchaseCycleStore interface {
	Create(ctx context.Context, c PurchaseCycle) error
	Update(ctx context.Context, c PurchaseCycle) error
	GetByID(ctx context.Context, id string) (PurchaseCycle, error)
	GetByProperty(ctx context.Context, propertyID string) ([]PurchaseCycle, error)
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]PurchaseCycle, error)
	CountByStatus(ctx context.Context) (map[PurchaseCycleStatus]int64, error)
}

// RentCycleStore persists rent cycles.
type RentCycleStore interface {
	Create(ctx context.Context, c RentCycle) error
	Update(ctx context.Context, c RentCycle) error
	GetByID(ctx context.Context, id string) (RentCycle, error)
	GetByProperty(ctx context.Context, propertyID string) ([]RentCycle, error)
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]RentCycle, error)
	CountByStatus(ctx context.Context) (map[RentCycleStatus]int64, error)
}

// TransactionStore persists immutable receipts. There is deliberately no
// update operation.
type TransactionStore interface {
	Create(ctx context.Context, t Transaction) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	GetByProperty(ctx context.Context, propertyID string) ([]Transaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]Transaction, error)
}

// TxRunner provides the transactional boundary around validate-then-mutate
// sequences. Store operations invoked inside fn observe and join the same
// transaction, so a concurrent reader never sees a property with updated
// ownership but a still-open purchase cycle.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
