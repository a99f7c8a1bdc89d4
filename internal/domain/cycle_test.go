package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInvestorShares(t *testing.T) {
	t.Run("exact hundred passes", func(t *testing.T) {
		shares := []InvestorShare{
			{InvestorID: "i1", SharePercentage: 60},
			{InvestorID: "i2", SharePercentage: 40},
		}
		require.NoError(t, ValidateInvestorShares(shares))
	})

	t.Run("within tolerance passes", func(t *testing.T) {
		shares := []InvestorShare{
			{InvestorID: "i1", SharePercentage: 33.33},
			{InvestorID: "i2", SharePercentage: 33.33},
			{InvestorID: "i3", SharePercentage: 33.34},
		}
		require.NoError(t, ValidateInvestorShares(shares))
	})

	t.Run("under a hundred fails", func(t *testing.T) {
		shares := []InvestorShare{
			{InvestorID: "i1", SharePercentage: 50},
			{InvestorID: "i2", SharePercentage: 40},
		}
		err := ValidateInvestorShares(shares)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidShares)
	})

	t.Run("over a hundred fails", func(t *testing.T) {
		shares := []InvestorShare{
			{InvestorID: "i1", SharePercentage: 70},
			{InvestorID: "i2", SharePercentage: 40},
		}
		assert.ErrorIs(t, ValidateInvestorShares(shares), ErrInvalidShares)
	})

	t.Run("empty fails", func(t *testing.T) {
		assert.ErrorIs(t, ValidateInvestorShares(nil), ErrInvalidShares)
	})
}

func TestPurchaseCommission(t *testing.T) {
	t.Run("client percentage", func(t *testing.T) {
		c := PurchaseCycle{
			PurchaserType:  PurchaserClient,
			CommissionType: CommissionPercentage,
			CommissionRate: 2,
		}
		assert.InDelta(t, 200_000.0, c.Commission(10_000_000), 1e-9)
	})

	t.Run("client fixed", func(t *testing.T) {
		c := PurchaseCycle{
			PurchaserType:    PurchaserClient,
			CommissionType:   CommissionFixed,
			CommissionAmount: 150_000,
		}
		assert.InDelta(t, 150_000.0, c.Commission(10_000_000), 1e-9)
	})

	t.Run("investor facilitation fee ignores price", func(t *testing.T) {
		c := PurchaseCycle{PurchaserType: PurchaserInvestor, FacilitationFee: 500_000}
		assert.InDelta(t, 500_000.0, c.Commission(1), 1e-9)
		assert.InDelta(t, 500_000.0, c.Commission(99_000_000), 1e-9)
	})

	t.Run("agency earns nothing", func(t *testing.T) {
		c := PurchaseCycle{PurchaserType: PurchaserAgency}
		assert.Zero(t, c.Commission(10_000_000))
	})
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, PurchaseStatusAcquired.Terminal())
	assert.True(t, PurchaseStatusCancelled.Terminal())
	assert.False(t, PurchaseStatusClosing.Terminal())

	assert.True(t, SellStatusSold.Terminal())
	assert.True(t, SellStatusCancelled.Terminal())
	assert.False(t, SellStatusUnderContract.Terminal())

	assert.True(t, RentStatusEnded.Terminal())
	assert.True(t, RentStatusCancelled.Terminal())
	assert.False(t, RentStatusLeased.Terminal())
}

func TestRemoveID(t *testing.T) {
	ids := []string{"a", "b", "c"}
	got := RemoveID(ids, "b")
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, []string{"a", "b", "c"}, ids, "original slice must not change")
	assert.Equal(t, []string{"a", "b", "c"}, RemoveID(ids, "zz"))
}
