package manager

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/match"
	"github.com/estatedesk/brokercycle/internal/service"
	"github.com/estatedesk/brokercycle/internal/store/memory"
)

type fixture struct {
	manager   *Manager
	props     *service.PropertyService
	sells     *service.SellService
	purchases *service.PurchaseService
	rents     *service.RentService
	ownership *service.OwnershipEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	properties := memory.NewPropertyStore()
	sellStore := memory.NewSellCycleStore()
	buyStore := memory.NewPurchaseCycleStore()
	rentStore := memory.NewRentCycleStore()
	txStore := memory.NewTransactionStore()
	tx := memory.NewTxRunner()

	sync := service.NewStatusSynchronizer(properties, sellStore, buyStore, rentStore, nil, nil, logger)
	f := &fixture{
		props:     service.NewPropertyService(properties, nil, logger),
		sells:     service.NewSellService(properties, sellStore, tx, sync, nil, logger),
		purchases: service.NewPurchaseService(properties, buyStore, tx, sync, nil, logger),
		rents:     service.NewRentService(properties, rentStore, txStore, tx, sync, nil, logger),
		ownership: service.NewOwnershipEngine(
			properties, sellStore, buyStore, txStore, tx, sync, nil, logger,
			"agency-1", "Harbour Realty",
		),
	}
	detector := match.NewDetector(properties, sellStore, buyStore, logger, 0)

	f.manager = New(Deps{
		Properties:    f.props,
		Sells:         f.sells,
		Purchases:     f.purchases,
		Rents:         f.rents,
		Ownership:     f.ownership,
		Detector:      detector,
		Transactions:  txStore,
		SellStore:     sellStore,
		PurchaseStore: buyStore,
		RentStore:     rentStore,
		PropertyStore: properties,
		Logger:        logger,
	})
	return f
}

func (f *fixture) register(t *testing.T, address string) domain.Property {
	t.Helper()
	p, err := f.props.Register(context.Background(), service.RegisterPropertyInput{
		Address:   address,
		OwnerID:   "owner-1",
		OwnerName: "Original Owner",
		OwnerKind: domain.OwnerKindClient,
	})
	require.NoError(t, err)
	return p
}

func TestGetPropertyCycleTimeline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.register(t, "12 Harbour Rd")

	sell, err := f.sells.Open(ctx, service.OpenSellCycleInput{
		PropertyID: p.ID, AskingPrice: 1_000_000, CommissionRate: 2,
	})
	require.NoError(t, err)

	buy, err := f.purchases.Open(ctx, service.OpenPurchaseCycleInput{
		PropertyID:    p.ID,
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c1",
		OfferAmount:   950_000,
	})
	require.NoError(t, err)
	_, err = f.ownership.CompletePurchase(ctx, buy.ID, 0)
	require.NoError(t, err)

	entries, err := f.manager.GetPropertyCycleTimeline(ctx, p.ID)
	require.NoError(t, err)

	// Sell opened, purchase opened, purchase closed, receipt written.
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i-1].At.Before(entries[i].At), "timeline is newest-first")
	}

	kinds := make(map[string]int)
	for _, e := range entries {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds["cycle_opened"])
	assert.Equal(t, 1, kinds["cycle_closed"])
	assert.Equal(t, 1, kinds["transaction"])

	for _, e := range entries {
		if e.Kind == "cycle_closed" {
			assert.Equal(t, buy.ID, e.CycleID)
			assert.Equal(t, string(domain.PurchaseStatusAcquired), e.Detail)
		}
		if e.Kind == "cycle_opened" && e.Type == domain.CycleTypeSell {
			assert.Equal(t, sell.ID, e.CycleID)
		}
	}
}

func TestAcceptInternalMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p1 := f.register(t, "1 First St")
	p2 := f.register(t, "2 Second St")

	sell, err := f.sells.Open(ctx, service.OpenSellCycleInput{
		PropertyID: p1.ID, AskingPrice: 800_000,
	})
	require.NoError(t, err)
	buy, err := f.purchases.Open(ctx, service.OpenPurchaseCycleInput{
		PropertyID:    p1.ID,
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c1",
		OfferAmount:   780_000,
	})
	require.NoError(t, err)
	stray, err := f.purchases.Open(ctx, service.OpenPurchaseCycleInput{
		PropertyID:    p2.ID,
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c2",
		OfferAmount:   500_000,
	})
	require.NoError(t, err)

	err = f.manager.AcceptInternalMatch(ctx, sell.ID, stray.ID)
	assert.ErrorIs(t, err, domain.ErrPropertyMismatch)

	require.NoError(t, f.manager.AcceptInternalMatch(ctx, sell.ID, buy.ID))

	gotSell, err := f.sells.Get(ctx, sell.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SellStatusNegotiation, gotSell.Status)

	gotBuy, err := f.purchases.Get(ctx, buy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusNegotiation, gotBuy.Status)
}

func TestCheckAgentDualRepresentation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.register(t, "7 Dual Ct")

	sell, err := f.sells.Open(ctx, service.OpenSellCycleInput{
		PropertyID: p.ID, AgentID: "a1", AskingPrice: 1_000_000,
	})
	require.NoError(t, err)

	same, err := f.purchases.Open(ctx, service.OpenPurchaseCycleInput{
		PropertyID:    p.ID,
		AgentID:       "a1",
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c1",
		OfferAmount:   950_000,
	})
	require.NoError(t, err)
	other, err := f.purchases.Open(ctx, service.OpenPurchaseCycleInput{
		PropertyID:    p.ID,
		AgentID:       "a2",
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c2",
		OfferAmount:   940_000,
	})
	require.NoError(t, err)

	// Cycles open in prospecting; the detector only sees live offers.
	_, err = f.purchases.UpdateStatus(ctx, same.ID, domain.PurchaseStatusOfferMade)
	require.NoError(t, err)
	_, err = f.purchases.UpdateStatus(ctx, other.ID, domain.PurchaseStatusOfferMade)
	require.NoError(t, err)

	dual, err := f.manager.CheckAgentDualRepresentation(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, dual, 1)
	assert.Equal(t, p.ID, dual[0].PropertyID)
	assert.Equal(t, sell.ID, dual[0].SellCycleID)
	assert.Equal(t, same.ID, dual[0].PurchaseCycleID)

	dual, err = f.manager.CheckAgentDualRepresentation(ctx, "a2")
	require.NoError(t, err)
	assert.Empty(t, dual, "holding only the purchase side is not dual representation")
}

func TestGetAllCycleStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p1 := f.register(t, "1 Stat St")
	p2 := f.register(t, "2 Stat St")

	_, err := f.sells.Open(ctx, service.OpenSellCycleInput{
		PropertyID: p1.ID, AgentID: "a1", AskingPrice: 500_000,
	})
	require.NoError(t, err)
	buy, err := f.purchases.Open(ctx, service.OpenPurchaseCycleInput{
		PropertyID:    p1.ID,
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c1",
		OfferAmount:   480_000,
	})
	require.NoError(t, err)
	_, err = f.purchases.UpdateStatus(ctx, buy.ID, domain.PurchaseStatusOfferMade)
	require.NoError(t, err)
	_, err = f.rents.Open(ctx, service.OpenRentCycleInput{PropertyID: p2.ID, MonthlyRent: 2_000})
	require.NoError(t, err)

	stats, err := f.manager.GetAllCycleStats(ctx, match.Opts{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Properties)
	assert.Equal(t, int64(1), stats.SellByStatus[domain.SellStatusListed])
	assert.Equal(t, int64(1), stats.BuyByStatus[domain.PurchaseStatusOfferMade])
	assert.Equal(t, int64(1), stats.RentByStatus[domain.RentStatusAdvertised])
	assert.Equal(t, 1, stats.InternalMatches)

	scoped, err := f.manager.GetAllCycleStats(ctx, match.Opts{AgentID: "a9"})
	require.NoError(t, err)
	assert.Equal(t, 0, scoped.InternalMatches, "match count follows the agent filter")
	assert.Equal(t, int64(2), scoped.Properties, "per-status counts stay portfolio-wide")
}
