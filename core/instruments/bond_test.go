package instruments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerforge/core"
)

func newBondLedger(t *testing.T) (*core.Ledger, time.Time, []time.Time, time.Time) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := core.New("bond-ledger", start, core.Config{})
	l.RegisterWallet(core.SystemWallet)
	l.RegisterWallet("issuer")
	l.RegisterWallet("holder")

	cash := core.NewUnit("USD", "US Dollar", core.KindCash, decimal.New(-1, 12), decimal.New(1, 12), 2, nil, nil)
	require.NoError(t, l.RegisterUnit(cash))

	couponDates := []time.Time{start.AddDate(0, 6, 0), start.AddDate(1, 0, 0)}
	maturity := start.AddDate(1, 0, 0)
	bondState := map[string]any{
		"issuer":        "issuer",
		"holder":        "holder",
		"currency":      "USD",
		"face_value":    d("1000"),
		"coupon_rate":   d("0.05"),
		"coupon_dates":  couponDates,
		"maturity_date": maturity,
		"redeemed":      false,
	}
	bond := core.NewUnit("BOND-1", "Acme 5y bond", core.KindBond, decimal.Zero, decimal.New(1, 12), 0, nil, bondState)
	require.NoError(t, l.RegisterUnit(bond))

	_, _, err := l.SetBalance("holder", "BOND-1", decimal.NewFromInt(1))
	require.NoError(t, err)

	return l, couponDates[0], couponDates, maturity
}

func TestBondPaysScheduledCoupon(t *testing.T) {
	l, firstCoupon, _, _ := newBondLedger(t)

	_, result, err := l.ExecuteContract("BOND-1", "BOND-1", func(view core.LedgerView) core.PendingTransaction {
		return BondContract(view, "BOND-1", firstCoupon, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	holderCash, err := l.GetBalance("holder", "USD")
	require.NoError(t, err)
	assert.True(t, holderCash.Equal(d("25")), "face_value * coupon_rate / 2 coupon dates")

	state, err := l.GetUnitState("BOND-1")
	require.NoError(t, err)
	assert.False(t, state["redeemed"].(bool))
}

func TestBondRedeemsAtMaturity(t *testing.T) {
	l, _, _, maturity := newBondLedger(t)

	_, result, err := l.ExecuteContract("BOND-1", "BOND-1", func(view core.LedgerView) core.PendingTransaction {
		return BondContract(view, "BOND-1", maturity, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	holderCash, err := l.GetBalance("holder", "USD")
	require.NoError(t, err)
	assert.True(t, holderCash.Equal(d("1075")), "both unpaid coupons (25 each) plus principal redemption (1000) land together at maturity")

	holderBond, err := l.GetBalance("holder", "BOND-1")
	require.NoError(t, err)
	assert.True(t, holderBond.IsZero(), "bond position closes on redemption")

	state, err := l.GetUnitState("BOND-1")
	require.NoError(t, err)
	assert.True(t, state["redeemed"].(bool))
}
