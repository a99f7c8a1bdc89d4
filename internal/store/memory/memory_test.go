package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/brokercycle/internal/domain"
)

func TestPropertyStore(t *testing.T) {
	ctx := context.Background()
	store := NewPropertyStore()

	prop := domain.Property{
		ID:        "p1",
		Address:   "12 Harbour Rd",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, prop))

	t.Run("duplicate create fails", func(t *testing.T) {
		assert.ErrorIs(t, store.Create(ctx, prop), domain.ErrAlreadyExists)
	})

	t.Run("missing id returns not found", func(t *testing.T) {
		_, err := store.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		got, err := store.GetByID(ctx, "p1")
		require.NoError(t, err)
		got.ActiveSellCycleIDs = append(got.ActiveSellCycleIDs, "s1")
		got.Address = "mutated"

		again, err := store.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, again.ActiveSellCycleIDs)
		assert.Equal(t, "12 Harbour Rd", again.Address)
	})

	t.Run("open sell and purchase filter", func(t *testing.T) {
		both := domain.Property{
			ID:                     "p2",
			ActiveSellCycleIDs:     []string{"s1"},
			ActivePurchaseCycleIDs: []string{"b1"},
		}
		sellOnly := domain.Property{
			ID:                 "p3",
			ActiveSellCycleIDs: []string{"s2"},
		}
		require.NoError(t, store.Create(ctx, both))
		require.NoError(t, store.Create(ctx, sellOnly))

		got, err := store.ListWithOpenSellAndPurchase(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "p2", got[0].ID)
	})
}

func TestPurchaseCycleStoreKeepsHistory(t *testing.T) {
	ctx := context.Background()
	store := NewPurchaseCycleStore()

	open := domain.PurchaseCycle{
		ID:         "b1",
		PropertyID: "p1",
		Status:     domain.PurchaseStatusOfferMade,
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	closed := domain.PurchaseCycle{
		ID:         "b2",
		PropertyID: "p1",
		Status:     domain.PurchaseStatusCancelled,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Create(ctx, open))
	require.NoError(t, store.Create(ctx, closed))

	got, err := store.GetByProperty(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, got, 2, "closed cycles stay queryable as history")
	assert.Equal(t, "b2", got[0].ID, "newest first")
}

func TestTransactionStoreImmutable(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore()

	tx := domain.Transaction{ID: "t1", PropertyID: "p1", Date: time.Now()}
	require.NoError(t, store.Create(ctx, tx))
	assert.ErrorIs(t, store.Create(ctx, tx), domain.ErrAlreadyExists)
}

func TestSignalBus(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, domain.ChannelCycles)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelCycles, []byte(`{"event":"cycle_created"}`)))

	select {
	case payload := <-ch:
		assert.JSONEq(t, `{"event":"cycle_created"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published payload")
	}

	// Other channels do not receive the payload.
	other, err := bus.Subscribe(ctx, domain.ChannelMatches)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, domain.ChannelCycles, []byte(`x`)))
	select {
	case <-other:
		t.Fatal("matches channel should not receive cycle payloads")
	case <-time.After(50 * time.Millisecond):
	}
}
