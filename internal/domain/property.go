// Package domain defines the core data model of the brokerage cycle engine:
// properties, the three transaction cycle types, ownership records, transaction
// receipts, and the store/bus interfaces implemented by the storage and cache
// layers.
package domain

import "time"

// OwnerKind classifies who currently holds title to a property.
type OwnerKind string

const (
	OwnerKindClient   OwnerKind = "client"
	OwnerKindAgency   OwnerKind = "agency"
	OwnerKindInvestor OwnerKind = "investor"
	OwnerKindExternal OwnerKind = "external"
)

// Property is the permanent asset record. It persists across unlimited
// sell/purchase/rent cycles; completing or cancelling a cycle only changes
// ownership and the active-cycle id sets, never deletes the property.
type Property struct {
	ID      string
	Address string

	// Ids of cycles currently open against this property, one set per type.
	ActiveSellCycleIDs     []string
	ActivePurchaseCycleIDs []string
	ActiveRentCycleIDs     []string

	// Status is the derived composite label ("For Sale & 2 Purchase Offers").
	// It is recomputed from the active sets on every cycle transition.
	Status string

	CurrentOwnerID   string
	CurrentOwnerName string
	CurrentOwnerKind OwnerKind

	// OwnershipHistory is append-only; one record per ownership change.
	OwnershipHistory []OwnershipRecord

	// CycleHistory records every cycle that has ever closed against this
	// property, regardless of outcome.
	CycleHistory []ClosedCycleRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveCycles reports whether any cycle of any type is open.
func (p *Property) HasActiveCycles() bool {
	return len(p.ActiveSellCycleIDs) > 0 ||
		len(p.ActivePurchaseCycleIDs) > 0 ||
		len(p.ActiveRentCycleIDs) > 0
}

// OwnershipRecord is appended to a property's ownership history on every
// ownership change.
type OwnershipRecord struct {
	ID                string
	PreviousOwnerID   string
	PreviousOwnerName string
	PreviousOwnerKind OwnerKind
	NewOwnerID        string
	NewOwnerName      string
	NewOwnerKind      OwnerKind

	// InvestorShares is set for fractional transfers and preserves each
	// investor's percentage at the time of transfer.
	InvestorShares []InvestorShare

	TransactionID string
	SalePrice     float64
	TransferredAt time.Time
	Note          string
}

// ClosedCycleRef is one entry in a property's cycle history.
type ClosedCycleRef struct {
	CycleID   string
	CycleType CycleType
	Outcome   string // terminal status the cycle closed with
	ClosedAt  time.Time
}

// RemoveID returns ids with the given id filtered out. The original slice is
// not modified.
func RemoveID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ContainsID reports whether id is present in ids.
func ContainsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
