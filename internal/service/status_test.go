package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/store/memory"
)

// testEngine wires the full service graph over in-memory stores.
type testEngine struct {
	properties *memory.PropertyStore
	sellStore  *memory.SellCycleStore
	buyStore   *memory.PurchaseCycleStore
	rentStore  *memory.RentCycleStore
	txStore    *memory.TransactionStore

	sync      *StatusSynchronizer
	props     *PropertyService
	sells     *SellService
	purchases *PurchaseService
	rents     *RentService
	ownership *OwnershipEngine
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := &testEngine{
		properties: memory.NewPropertyStore(),
		sellStore:  memory.NewSellCycleStore(),
		buyStore:   memory.NewPurchaseCycleStore(),
		rentStore:  memory.NewRentCycleStore(),
		txStore:    memory.NewTransactionStore(),
	}
	tx := memory.NewTxRunner()

	e.sync = NewStatusSynchronizer(e.properties, e.sellStore, e.buyStore, e.rentStore, nil, nil, logger)
	e.props = NewPropertyService(e.properties, nil, logger)
	e.sells = NewSellService(e.properties, e.sellStore, tx, e.sync, nil, logger)
	e.purchases = NewPurchaseService(e.properties, e.buyStore, tx, e.sync, nil, logger)
	e.rents = NewRentService(e.properties, e.rentStore, e.txStore, tx, e.sync, nil, logger)
	e.ownership = NewOwnershipEngine(
		e.properties, e.sellStore, e.buyStore, e.txStore, tx, e.sync, nil, logger,
		"agency-1", "Harbour Realty",
	)
	return e
}

func (e *testEngine) register(t *testing.T, address string) domain.Property {
	t.Helper()
	p, err := e.props.Register(context.Background(), RegisterPropertyInput{
		Address:   address,
		OwnerID:   "owner-1",
		OwnerName: "Original Owner",
		OwnerKind: domain.OwnerKindClient,
	})
	require.NoError(t, err)
	return p
}

func TestComputeStatus(t *testing.T) {
	sell := func(s domain.SellCycleStatus) domain.SellCycle {
		return domain.SellCycle{Status: s}
	}
	buy := func(s domain.PurchaseCycleStatus) domain.PurchaseCycle {
		return domain.PurchaseCycle{Status: s}
	}
	rent := func(s domain.RentCycleStatus) domain.RentCycle {
		return domain.RentCycle{Status: s}
	}

	tests := []struct {
		name      string
		sells     []domain.SellCycle
		purchases []domain.PurchaseCycle
		rents     []domain.RentCycle
		want      string
	}{
		{
			name: "no cycles",
			want: NoActiveCycleStatus,
		},
		{
			name:  "single listing",
			sells: []domain.SellCycle{sell(domain.SellStatusListed)},
			want:  "For Sale",
		},
		{
			name:  "negotiation outranks listing",
			sells: []domain.SellCycle{sell(domain.SellStatusListed), sell(domain.SellStatusNegotiation)},
			want:  "Sale Negotiation",
		},
		{
			name:  "under contract outranks negotiation",
			sells: []domain.SellCycle{sell(domain.SellStatusNegotiation), sell(domain.SellStatusUnderContract)},
			want:  "Under Contract",
		},
		{
			name:      "single purchase offer",
			purchases: []domain.PurchaseCycle{buy(domain.PurchaseStatusOfferMade)},
			want:      "1 Purchase Offer",
		},
		{
			name: "only cycles with an offer are counted",
			purchases: []domain.PurchaseCycle{
				buy(domain.PurchaseStatusOfferMade),
				buy(domain.PurchaseStatusNegotiation),
				buy(domain.PurchaseStatusProspecting),
			},
			want: "2 Purchase Offers",
		},
		{
			name: "prospecting alone contributes no fragment",
			purchases: []domain.PurchaseCycle{
				buy(domain.PurchaseStatusProspecting),
			},
			want: NoActiveCycleStatus,
		},
		{
			name:  "rent applications",
			rents: []domain.RentCycle{rent(domain.RentStatusApplicationReceived)},
			want:  "Rental Applications Received",
		},
		{
			name:  "leased outranks applications",
			rents: []domain.RentCycle{rent(domain.RentStatusApplicationReceived), rent(domain.RentStatusLeased)},
			want:  "Leased",
		},
		{
			name:      "fragments join with ampersand",
			sells:     []domain.SellCycle{sell(domain.SellStatusListed)},
			purchases: []domain.PurchaseCycle{buy(domain.PurchaseStatusOfferMade), buy(domain.PurchaseStatusOfferMade)},
			rents:     []domain.RentCycle{rent(domain.RentStatusAdvertised)},
			want:      "For Sale & 2 Purchase Offers & For Rent",
		},
		{
			name:      "terminal cycles do not contribute",
			sells:     []domain.SellCycle{sell(domain.SellStatusSold)},
			purchases: []domain.PurchaseCycle{buy(domain.PurchaseStatusCancelled)},
			rents:     []domain.RentCycle{rent(domain.RentStatusEnded)},
			want:      NoActiveCycleStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStatus(tt.sells, tt.purchases, tt.rents)
			assert.Equal(t, tt.want, got)

			// Derivation is pure: a second pass over the same input agrees.
			assert.Equal(t, got, ComputeStatus(tt.sells, tt.purchases, tt.rents))
		})
	}
}

func TestResyncTracksCycleLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "12 Harbour Rd")

	assert.Equal(t, NoActiveCycleStatus, p.Status)

	sell, err := e.sells.Open(ctx, OpenSellCycleInput{
		PropertyID:     p.ID,
		AgentID:        "a1",
		AskingPrice:    1_000_000,
		CommissionRate: 2,
	})
	require.NoError(t, err)

	got, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "For Sale", got.Status)

	buy, err := e.purchases.Open(ctx, OpenPurchaseCycleInput{
		PropertyID:    p.ID,
		AgentID:       "a2",
		PurchaserType: domain.PurchaserClient,
		BuyerID:       "c1",
		OfferAmount:   900_000,
	})
	require.NoError(t, err)

	// Prospecting carries no offer, so only the sell side shows.
	got, err = e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "For Sale", got.Status)

	_, err = e.purchases.UpdateStatus(ctx, buy.ID, domain.PurchaseStatusOfferMade)
	require.NoError(t, err)

	got, err = e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "For Sale & 1 Purchase Offer", got.Status)

	// Resync with no changes leaves the status alone.
	status, err := e.sync.Resync(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "For Sale & 1 Purchase Offer", status)

	_, err = e.sells.Cancel(ctx, sell.ID, "seller withdrew")
	require.NoError(t, err)

	got, err = e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Purchase Offer", got.Status)
	assert.Empty(t, got.ActiveSellCycleIDs)
	require.Len(t, got.CycleHistory, 1)
	assert.Equal(t, sell.ID, got.CycleHistory[0].CycleID)
	assert.Equal(t, string(domain.SellStatusCancelled), got.CycleHistory[0].Outcome)
}

func TestCancelledCycleStaysQueryable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "3 Quay St")

	sell, err := e.sells.Open(ctx, OpenSellCycleInput{PropertyID: p.ID, AskingPrice: 500_000})
	require.NoError(t, err)
	_, err = e.sells.Cancel(ctx, sell.ID, "")
	require.NoError(t, err)

	got, err := e.sells.Get(ctx, sell.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SellStatusCancelled, got.Status)
	require.NotNil(t, got.ClosedAt)

	// Further mutations are rejected.
	_, err = e.sells.Cancel(ctx, sell.ID, "again")
	assert.ErrorIs(t, err, domain.ErrCycleClosed)
	err = e.sells.AddNote(ctx, sell.ID, "a1", "too late")
	assert.ErrorIs(t, err, domain.ErrCycleClosed)
}

func TestUpdateStatusRejectsTerminalTargets(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	p := e.register(t, "9 Hill Ln")

	sell, err := e.sells.Open(ctx, OpenSellCycleInput{PropertyID: p.ID, AskingPrice: 750_000})
	require.NoError(t, err)

	_, err = e.sells.UpdateStatus(ctx, sell.ID, domain.SellStatusSold)
	require.Error(t, err)

	_, err = e.sells.UpdateStatus(ctx, sell.ID, domain.SellStatusNegotiation)
	require.NoError(t, err)

	got, err := e.props.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sale Negotiation", got.Status)
}
