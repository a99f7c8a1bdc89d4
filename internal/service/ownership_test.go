package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/brokercycle/internal/domain"
)

func TestCompletePurchaseAgency(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "88 Victoria Ave")

	cycle, err := e.purchases.Open(ctx, OpenPurchaseCycleInput{
		PropertyID:       p.ID,
		AgentID:          "a1",
		PurchaserType:    domain.PurchaserAgency,
		OfferAmount:      5_000_000,
		InvestmentBudget: 6_000_000,
	})
	require.NoError(t, err)

	receipt, err := e.ownership.CompletePurchase(ctx, cycle.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, 5_000_000.0, receipt.Amount, "offer amount is the price when no final price is given")
	assert.Equal(t, 0.0, receipt.Commission, "agency purchases earn no commission")
	assert.Equal(t, domain.TransactionPurchase, receipt.Type)
	assert.Equal(t, domain.TransactionStatusCompleted, receipt.Status)

	got, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "agency-1", got.CurrentOwnerID)
	assert.Equal(t, "Harbour Realty", got.CurrentOwnerName)
	assert.Equal(t, domain.OwnerKindAgency, got.CurrentOwnerKind)
	assert.Equal(t, NoActiveCycleStatus, got.Status)
	assert.Empty(t, got.ActivePurchaseCycleIDs)

	require.Len(t, got.OwnershipHistory, 1)
	rec := got.OwnershipHistory[0]
	assert.Equal(t, "owner-1", rec.PreviousOwnerID)
	assert.Equal(t, "agency-1", rec.NewOwnerID)
	assert.Equal(t, receipt.ID, rec.TransactionID)
	assert.Equal(t, 5_000_000.0, rec.SalePrice)

	closed, err := e.purchases.Get(ctx, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusAcquired, closed.Status)
	assert.Equal(t, 5_000_000.0, closed.FinalPrice)
	require.NotNil(t, closed.ClosedAt)
}

func TestCompletePurchaseInvestorGroup(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "5 Mill Rd")

	shares := []domain.InvestorShare{
		{InvestorID: "i1", SharePercentage: 60, InvestmentAmount: 1_200_000},
		{InvestorID: "i2", SharePercentage: 40, InvestmentAmount: 800_000},
	}
	cycle, err := e.purchases.Open(ctx, OpenPurchaseCycleInput{
		PropertyID:      p.ID,
		PurchaserType:   domain.PurchaserInvestor,
		OfferAmount:     2_000_000,
		Investors:       shares,
		FacilitationFee: 500_000,
	})
	require.NoError(t, err)

	receipt, err := e.ownership.CompletePurchase(ctx, cycle.ID, 2_100_000)
	require.NoError(t, err)

	assert.Equal(t, 2_100_000.0, receipt.Amount, "final price overrides the offer")
	assert.Equal(t, 500_000.0, receipt.Commission, "investor purchases earn the flat facilitation fee")

	got, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "investor-group:"+cycle.ID, got.CurrentOwnerID)
	assert.Equal(t, "Investor Group (2)", got.CurrentOwnerName)
	assert.Equal(t, domain.OwnerKindInvestor, got.CurrentOwnerKind)

	require.Len(t, got.OwnershipHistory, 1)
	assert.Equal(t, shares, got.OwnershipHistory[0].InvestorShares,
		"per-investor split is preserved on the ownership record")
}

func TestCompletePurchaseInvalidSharesLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "5 Mill Rd")

	cycle, err := e.purchases.Open(ctx, OpenPurchaseCycleInput{
		PropertyID:    p.ID,
		PurchaserType: domain.PurchaserInvestor,
		OfferAmount:   2_000_000,
		Investors: []domain.InvestorShare{
			{InvestorID: "i1", SharePercentage: 50},
			{InvestorID: "i2", SharePercentage: 50},
		},
	})
	require.NoError(t, err)

	// Degrade the share set after opening; completion must re-validate.
	_, err = e.purchases.UpdateInvestors(ctx, cycle.ID, []domain.InvestorShare{
		{InvestorID: "i1", SharePercentage: 70},
		{InvestorID: "i2", SharePercentage: 50},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidShares, "replacement set must sum to 100")

	broken := cycle
	broken.Investors = []domain.InvestorShare{
		{InvestorID: "i1", SharePercentage: 70},
		{InvestorID: "i2", SharePercentage: 50},
	}
	require.NoError(t, e.buyStore.Update(ctx, broken))

	_, err = e.ownership.CompletePurchase(ctx, cycle.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidShares)

	// Nothing was mutated: the cycle is still open, the property untouched.
	got, err := e.purchases.Get(ctx, cycle.ID)
	require.NoError(t, err)
	assert.False(t, got.Status.Terminal())

	prop, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", prop.CurrentOwnerID)
	assert.Empty(t, prop.OwnershipHistory)

	receipts, err := e.txStore.GetByProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, receipts, "no receipt is written for a failed completion")
}

func TestCompletePurchaseIsFinal(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "1 Main St")

	cycle, err := e.purchases.Open(ctx, OpenPurchaseCycleInput{
		PropertyID:    p.ID,
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c1",
		BuyerName:     "Chan",
		OfferAmount:   800_000,
	})
	require.NoError(t, err)

	_, err = e.ownership.CompletePurchase(ctx, cycle.ID, 0)
	require.NoError(t, err)

	_, err = e.ownership.CompletePurchase(ctx, cycle.ID, 0)
	assert.ErrorIs(t, err, domain.ErrCycleClosed)

	got, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.OwnershipHistory, 1, "a second completion never double-transfers")
	assert.Equal(t, "c1", got.CurrentOwnerID)
	assert.Equal(t, domain.OwnerKindClient, got.CurrentOwnerKind)
}

func TestCompleteSell(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "42 Ocean Dr")

	cycle, err := e.sells.Open(ctx, OpenSellCycleInput{
		PropertyID:     p.ID,
		AgentID:        "a1",
		AskingPrice:    10_000_000,
		CommissionRate: 2,
	})
	require.NoError(t, err)

	t.Run("buyer identity is required", func(t *testing.T) {
		_, err := e.ownership.CompleteSell(ctx, CompleteSellInput{CycleID: cycle.ID})
		assert.ErrorIs(t, err, domain.ErrMissingCounterpart)
	})

	receipt, err := e.ownership.CompleteSell(ctx, CompleteSellInput{
		CycleID:       cycle.ID,
		AcceptedPrice: 9_500_000,
		BuyerID:       "ext-1",
		BuyerName:     "External Buyer",
	})
	require.NoError(t, err)

	assert.Equal(t, 9_500_000.0, receipt.Amount)
	assert.Equal(t, 190_000.0, receipt.Commission, "2 percent of the accepted price")
	assert.Equal(t, domain.TransactionSale, receipt.Type)

	got, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", got.CurrentOwnerID)
	assert.Equal(t, domain.OwnerKindExternal, got.CurrentOwnerKind, "buyer kind defaults to external")
	assert.Equal(t, NoActiveCycleStatus, got.Status)
	require.Len(t, got.CycleHistory, 1)
	assert.Equal(t, string(domain.SellStatusSold), got.CycleHistory[0].Outcome)

	closed, err := e.sells.Get(ctx, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SellStatusSold, closed.Status)
	assert.Equal(t, 9_500_000.0, closed.AcceptedPrice)
}

func TestOwnershipHistoryAccumulates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "7 Cycle Ct")

	// Buy for the agency, then sell on: two transfers, two records.
	buy, err := e.purchases.Open(ctx, OpenPurchaseCycleInput{
		PropertyID:    p.ID,
		PurchaserType: domain.PurchaserAgency,
		OfferAmount:   1_000_000,
	})
	require.NoError(t, err)
	_, err = e.ownership.CompletePurchase(ctx, buy.ID, 0)
	require.NoError(t, err)

	sell, err := e.sells.Open(ctx, OpenSellCycleInput{
		PropertyID:     p.ID,
		AskingPrice:    1_400_000,
		CommissionRate: 2,
	})
	require.NoError(t, err)
	_, err = e.ownership.CompleteSell(ctx, CompleteSellInput{
		CycleID: sell.ID,
		BuyerID: "c9",
	})
	require.NoError(t, err)

	got, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.OwnershipHistory, 2)
	assert.Equal(t, "agency-1", got.OwnershipHistory[0].NewOwnerID)
	assert.Equal(t, "agency-1", got.OwnershipHistory[1].PreviousOwnerID)
	assert.Equal(t, "c9", got.CurrentOwnerID)
	assert.Len(t, got.CycleHistory, 2)
}
