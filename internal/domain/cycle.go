package domain

import (
	"fmt"
	"math"
	"time"
)

// CycleType identifies which of the three transaction cycle families a cycle
// belongs to.
type CycleType string

const (
	CycleTypeSell     CycleType = "sell"
	CycleTypePurchase CycleType = "purchase"
	CycleTypeRent     CycleType = "rent"
)

// CommissionType selects between percentage-of-price and fixed-amount
// commission models.
type CommissionType string

const (
	CommissionPercentage CommissionType = "percentage"
	CommissionFixed      CommissionType = "fixed"
)

// PurchaserType determines which optional fields of a purchase cycle are
// meaningful and how ownership transfers on completion.
type PurchaserType string

const (
	PurchaserAgency   PurchaserType = "agency"
	PurchaserInvestor PurchaserType = "investor"
	PurchaserClient   PurchaserType = "client"
)

// ---------------------------------------------------------------------------
// Sell cycles
// ---------------------------------------------------------------------------

// SellCycleStatus is the finite status vocabulary for sell cycles.
type SellCycleStatus string

const (
	SellStatusListed        SellCycleStatus = "listed"
	SellStatusOfferReceived SellCycleStatus = "offer-received"
	SellStatusNegotiation   SellCycleStatus = "negotiation"
	SellStatusUnderContract SellCycleStatus = "under-contract"
	SellStatusSold          SellCycleStatus = "sold"
	SellStatusCancelled     SellCycleStatus = "cancelled"
)

// Terminal reports whether the status closes the cycle.
func (s SellCycleStatus) Terminal() bool {
	return s == SellStatusSold || s == SellStatusCancelled
}

// SellCycle is one attempt to sell a property. The counterpart is the seller
// the agency represents; the buyer is external unless an internal match pairs
// this cycle with an agency purchase cycle.
type SellCycle struct {
	ID         string
	PropertyID string
	AgentID    string
	AgentName  string
	SellerID   string
	SellerName string

	AskingPrice   float64
	AcceptedPrice float64

	CommissionRate   float64
	CommissionType   CommissionType
	CommissionAmount float64

	Status   SellCycleStatus
	ListedAt time.Time
	ClosedAt *time.Time

	Notes []CycleNote

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Commission computes the seller-side commission for a closing price.
func (c *SellCycle) Commission(price float64) float64 {
	if c.CommissionType == CommissionFixed {
		return c.CommissionAmount
	}
	return price * c.CommissionRate / 100
}

// ---------------------------------------------------------------------------
// Purchase cycles
// ---------------------------------------------------------------------------

// PurchaseCycleStatus is the finite status vocabulary for purchase cycles.
// The happy path runs prospecting through acquired; cancelled is reachable
// from any non-terminal state.
type PurchaseCycleStatus string

const (
	PurchaseStatusProspecting  PurchaseCycleStatus = "prospecting"
	PurchaseStatusOfferMade    PurchaseCycleStatus = "offer-made"
	PurchaseStatusNegotiation  PurchaseCycleStatus = "negotiation"
	PurchaseStatusAccepted     PurchaseCycleStatus = "accepted"
	PurchaseStatusDueDiligence PurchaseCycleStatus = "due-diligence"
	PurchaseStatusFinancing    PurchaseCycleStatus = "financing"
	PurchaseStatusClosing      PurchaseCycleStatus = "closing"
	PurchaseStatusAcquired     PurchaseCycleStatus = "acquired"
	PurchaseStatusCancelled    PurchaseCycleStatus = "cancelled"
)

// Terminal reports whether the status closes the cycle.
func (s PurchaseCycleStatus) Terminal() bool {
	return s == PurchaseStatusAcquired || s == PurchaseStatusCancelled
}

// PurchaseCycle is one attempt to buy a property on behalf of the agency
// itself, an investor group, or a client buyer. PurchaserType selects which of
// the optional field groups apply.
type PurchaseCycle struct {
	ID         string
	PropertyID string
	AgentID    string
	AgentName  string

	PurchaserType PurchaserType
	BuyerID       string
	BuyerName     string

	OfferAmount float64
	FinalPrice  float64

	// Agency purchases: investment tracking, no commission.
	InvestmentBudget float64
	ExpectedROI      float64

	// Investor purchases: fractional shares and a fixed facilitation fee.
	Investors       []InvestorShare
	FacilitationFee float64

	// Client purchases: commission model and buyer budget.
	CommissionRate   float64
	CommissionType   CommissionType
	CommissionAmount float64
	BuyerBudget      float64

	Status   PurchaseCycleStatus
	OpenedAt time.Time
	ClosedAt *time.Time

	Notes []CycleNote

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Commission computes this cycle's commission contribution for a given price.
// Agency purchases earn nothing, investor purchases earn the flat facilitation
// fee, client purchases earn rate-of-price or a fixed amount.
func (c *PurchaseCycle) Commission(price float64) float64 {
	switch c.PurchaserType {
	case PurchaserAgency:
		return 0
	case PurchaserInvestor:
		return c.FacilitationFee
	case PurchaserClient:
		if c.CommissionType == CommissionFixed {
			return c.CommissionAmount
		}
		return price * c.CommissionRate / 100
	default:
		return 0
	}
}

// ---------------------------------------------------------------------------
// Rent cycles
// ---------------------------------------------------------------------------

// RentCycleStatus is the finite status vocabulary for rent cycles.
type RentCycleStatus string

const (
	RentStatusAdvertised          RentCycleStatus = "advertised"
	RentStatusApplicationReceived RentCycleStatus = "application-received"
	RentStatusLeased              RentCycleStatus = "leased"
	RentStatusEnded               RentCycleStatus = "ended"
	RentStatusCancelled           RentCycleStatus = "cancelled"
)

// Terminal reports whether the status closes the cycle. A leased cycle stays
// active so the property reads as "Leased" until the lease ends.
func (s RentCycleStatus) Terminal() bool {
	return s == RentStatusEnded || s == RentStatusCancelled
}

// RentCycle is one attempt to rent out a property.
type RentCycle struct {
	ID         string
	PropertyID string
	AgentID    string
	AgentName  string
	TenantID   string
	TenantName string

	MonthlyRent   float64
	DepositAmount float64
	LeaseStart    *time.Time
	LeaseEnd      *time.Time

	Status   RentCycleStatus
	OpenedAt time.Time
	ClosedAt *time.Time

	Notes []CycleNote

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CycleNote is a free-form communication log entry attached to a cycle.
type CycleNote struct {
	AuthorID string
	Body     string
	At       time.Time
}

// ---------------------------------------------------------------------------
// Investor shares
// ---------------------------------------------------------------------------

// shareTolerance is the permitted floating-point drift when checking that
// investor share percentages sum to 100.
const shareTolerance = 0.01

// InvestorShare is one investor's fractional stake in a purchase.
type InvestorShare struct {
	InvestorID       string
	InvestorName     string
	SharePercentage  float64
	InvestmentAmount float64
}

// ValidateInvestorShares checks that the share percentages sum to 100 within
// tolerance. It must pass before an investor purchase may be completed.
func ValidateInvestorShares(shares []InvestorShare) error {
	if len(shares) == 0 {
		return fmt.Errorf("%w: investor purchase requires at least one share", ErrInvalidShares)
	}
	var sum float64
	for _, s := range shares {
		sum += s.SharePercentage
	}
	if math.Abs(sum-100) > shareTolerance {
		return fmt.Errorf("%w: share percentages sum to %.4f, want 100", ErrInvalidShares, sum)
	}
	return nil
}
