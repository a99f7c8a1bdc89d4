package match

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/store/memory"
)

type fixture struct {
	properties *memory.PropertyStore
	sells      *memory.SellCycleStore
	purchases  *memory.PurchaseCycleStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		properties: memory.NewPropertyStore(),
		sells:      memory.NewSellCycleStore(),
		purchases:  memory.NewPurchaseCycleStore(),
	}
}

func (f *fixture) detector(maxGapPct float64) *Detector {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDetector(f.properties, f.sells, f.purchases, logger, maxGapPct)
}

func (f *fixture) addProperty(t *testing.T, p domain.Property) {
	t.Helper()
	require.NoError(t, f.properties.Create(context.Background(), p))
}

func (f *fixture) addSell(t *testing.T, c domain.SellCycle) {
	t.Helper()
	require.NoError(t, f.sells.Create(context.Background(), c))
}

func (f *fixture) addPurchase(t *testing.T, c domain.PurchaseCycle) {
	t.Helper()
	require.NoError(t, f.purchases.Create(context.Background(), c))
}

func TestDetectBuildsMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now().UTC()

	f.addProperty(t, domain.Property{
		ID:                     "p1",
		Address:                "88 Victoria Ave",
		ActiveSellCycleIDs:     []string{"s1"},
		ActivePurchaseCycleIDs: []string{"b1", "b2", "b3", "b4"},
	})
	f.addSell(t, domain.SellCycle{
		ID: "s1", PropertyID: "p1", AgentID: "a1",
		AskingPrice: 10_000_000, CommissionRate: 2,
		CommissionType: domain.CommissionPercentage,
		Status:         domain.SellStatusListed,
		CreatedAt:      now,
	})
	// Dual-rep investor offer: same agent as the sell side.
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b1", PropertyID: "p1", AgentID: "a1",
		PurchaserType: domain.PurchaserInvestor, FacilitationFee: 500_000,
		OfferAmount: 9_500_000, Status: domain.PurchaseStatusOfferMade,
		CreatedAt: now,
	})
	// Best offer: client through another agent.
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b2", PropertyID: "p1", AgentID: "a2",
		PurchaserType: domain.PurchaserClient, CommissionRate: 1,
		CommissionType: domain.CommissionPercentage,
		OfferAmount:    9_800_000, Status: domain.PurchaseStatusNegotiation,
		CreatedAt: now,
	})
	// Agency offer: contributes no commission.
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b3", PropertyID: "p1", AgentID: "a3",
		PurchaserType: domain.PurchaserAgency,
		OfferAmount:   9_000_000, Status: domain.PurchaseStatusAccepted,
		CreatedAt: now,
	})
	// Prospecting is not live yet; must not appear as a candidate.
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b4", PropertyID: "p1", AgentID: "a4",
		PurchaserType: domain.PurchaserClient,
		OfferAmount:   9_900_000, Status: domain.PurchaseStatusProspecting,
		CreatedAt: now,
	})

	matches, err := f.detector(0).Detect(ctx, Opts{})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "p1", m.PropertyID)
	assert.Equal(t, "88 Victoria Ave", m.PropertyAddress)
	assert.Equal(t, "s1", m.SellCycleID)
	assert.Equal(t, 200_000.0, m.SellCommission)
	require.Len(t, m.Candidates, 3)

	assert.Equal(t, 9_800_000.0, m.BestOffer)
	assert.Equal(t, 200_000.0, m.Gap)
	assert.InDelta(t, 2.0, m.GapPercentage, 0.001)
	// Sell commission plus every candidate's contribution: the investor's
	// facilitation fee, the client's 1% of its own offer, nothing from the
	// agency offer.
	assert.Equal(t, 200_000.0+500_000.0+98_000.0, m.PotentialRevenue)

	assert.True(t, m.HasDualRep)
	for _, c := range m.Candidates {
		switch c.PurchaseCycleID {
		case "b1":
			assert.True(t, c.IsDualRep)
			assert.Equal(t, 500_000.0, c.Commission, "investor candidates contribute the facilitation fee")
		case "b2":
			assert.False(t, c.IsDualRep)
			assert.Equal(t, 98_000.0, c.Commission)
		case "b3":
			assert.Equal(t, 0.0, c.Commission, "agency candidates contribute nothing")
		default:
			t.Fatalf("unexpected candidate %s", c.PurchaseCycleID)
		}
	}
}

func TestDetectSortsByAbsoluteGap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now().UTC()

	f.addProperty(t, domain.Property{
		ID: "wide", ActiveSellCycleIDs: []string{"s1"}, ActivePurchaseCycleIDs: []string{"b1"},
	})
	f.addSell(t, domain.SellCycle{
		ID: "s1", PropertyID: "wide", AskingPrice: 10_000_000,
		Status: domain.SellStatusListed, CreatedAt: now,
	})
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b1", PropertyID: "wide", PurchaserType: domain.PurchaserClient,
		OfferAmount: 9_800_000, Status: domain.PurchaseStatusOfferMade, CreatedAt: now,
	})

	f.addProperty(t, domain.Property{
		ID: "tight", ActiveSellCycleIDs: []string{"s2"}, ActivePurchaseCycleIDs: []string{"b2"},
	})
	f.addSell(t, domain.SellCycle{
		ID: "s2", PropertyID: "tight", AskingPrice: 1_000_000,
		Status: domain.SellStatusListed, CreatedAt: now,
	})
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b2", PropertyID: "tight", PurchaserType: domain.PurchaserClient,
		OfferAmount: 990_000, Status: domain.PurchaseStatusOfferMade, CreatedAt: now,
	})

	matches, err := f.detector(0).Detect(ctx, Opts{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "tight", matches[0].PropertyID, "smallest absolute gap first")
	assert.Equal(t, "wide", matches[1].PropertyID)
}

func TestDetectOldestLiveSellIsPrimary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now().UTC()

	f.addProperty(t, domain.Property{
		ID:                     "p1",
		ActiveSellCycleIDs:     []string{"old", "new"},
		ActivePurchaseCycleIDs: []string{"b1"},
	})
	f.addSell(t, domain.SellCycle{
		ID: "old", PropertyID: "p1", AskingPrice: 900_000,
		Status: domain.SellStatusListed, CreatedAt: now.Add(-time.Hour),
	})
	f.addSell(t, domain.SellCycle{
		ID: "new", PropertyID: "p1", AskingPrice: 950_000,
		Status: domain.SellStatusListed, CreatedAt: now,
	})
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b1", PropertyID: "p1", PurchaserType: domain.PurchaserClient,
		OfferAmount: 880_000, Status: domain.PurchaseStatusOfferMade, CreatedAt: now,
	})

	matches, err := f.detector(0).Detect(ctx, Opts{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "old", matches[0].SellCycleID)
}

func TestDetectMaxGapFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now().UTC()

	f.addProperty(t, domain.Property{
		ID: "p1", ActiveSellCycleIDs: []string{"s1"}, ActivePurchaseCycleIDs: []string{"low", "close"},
	})
	f.addSell(t, domain.SellCycle{
		ID: "s1", PropertyID: "p1", AskingPrice: 1_000_000,
		Status: domain.SellStatusListed, CreatedAt: now,
	})
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "low", PropertyID: "p1", PurchaserType: domain.PurchaserClient,
		OfferAmount: 700_000, Status: domain.PurchaseStatusOfferMade, CreatedAt: now,
	})
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "close", PropertyID: "p1", PurchaserType: domain.PurchaserClient,
		OfferAmount: 950_000, Status: domain.PurchaseStatusOfferMade, CreatedAt: now,
	})

	matches, err := f.detector(10).Detect(ctx, Opts{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Candidates, 1)
	assert.Equal(t, "close", matches[0].Candidates[0].PurchaseCycleID,
		"offers trailing asking by more than the threshold are dropped")
}

func TestDetectAgentFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now().UTC()

	f.addProperty(t, domain.Property{
		ID: "p1", ActiveSellCycleIDs: []string{"s1"}, ActivePurchaseCycleIDs: []string{"b1"},
	})
	f.addSell(t, domain.SellCycle{
		ID: "s1", PropertyID: "p1", AgentID: "a1", AskingPrice: 1_000_000,
		Status: domain.SellStatusListed, CreatedAt: now,
	})
	f.addPurchase(t, domain.PurchaseCycle{
		ID: "b1", PropertyID: "p1", AgentID: "a2", PurchaserType: domain.PurchaserClient,
		OfferAmount: 980_000, Status: domain.PurchaseStatusOfferMade, CreatedAt: now,
	})

	det := f.detector(0)

	matches, err := det.Detect(ctx, Opts{AgentID: "a1", Side: "sell"})
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = det.Detect(ctx, Opts{AgentID: "a1", Side: "purchase"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = det.Detect(ctx, Opts{AgentID: "a2"})
	require.NoError(t, err)
	assert.Len(t, matches, 1, "either side matches when no side is given")

	matches, err = det.Detect(ctx, Opts{AgentID: "a9"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}
