package instruments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerforge/core"
)

func TestDeferredCashSettlesTradeObligationHeldByPayer(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := core.New("deferred-cash-ledger", start, core.Config{})
	l.RegisterWallet(core.SystemWallet)
	l.RegisterWallet("buyer")
	l.RegisterWallet("seller")

	cash := core.NewUnit("USD", "US Dollar", core.KindCash, decimal.New(-1, 12), decimal.New(1, 12), 2, nil, nil)
	require.NoError(t, l.RegisterUnit(cash))

	paymentDate := start.AddDate(0, 0, 10)
	obligationState := map[string]any{
		"amount":       d("5000"),
		"currency":     "USD",
		"payment_date": paymentDate,
		"payer":        "buyer",
		"payee":        "seller",
		"settled":      false,
	}
	obligation := core.NewUnit("TRADE-001", "Settlement obligation", core.KindDeferredCash, decimal.Zero, decimal.New(1, 12), 0, nil, obligationState)
	require.NoError(t, l.RegisterUnit(obligation))

	// Here it's the payer, not the payee, who carries the entitlement unit
	// (a trade-settlement obligation rather than a dividend entitlement).
	_, _, err := l.SetBalance("buyer", "TRADE-001", decimal.NewFromInt(1))
	require.NoError(t, err)

	contract := func(view core.LedgerView) core.PendingTransaction {
		return DeferredCashContract(view, "TRADE-001", paymentDate.AddDate(0, 0, -1), nil)
	}
	_, resultEarly, err := l.ExecuteContract("TRADE-001", "too-early", contract)
	require.NoError(t, err)
	assert.Equal(t, core.AlreadyApplied, resultEarly, "ExecuteContract treats an empty pending transaction as a no-op")

	sellerCashBefore, err := l.GetBalance("seller", "USD")
	require.NoError(t, err)
	assert.True(t, sellerCashBefore.IsZero(), "nothing settles before payment_date")

	_, result, err := l.ExecuteContract("TRADE-001", "TRADE-001", func(view core.LedgerView) core.PendingTransaction {
		return DeferredCashContract(view, "TRADE-001", paymentDate, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	sellerCash, err := l.GetBalance("seller", "USD")
	require.NoError(t, err)
	assert.True(t, sellerCash.Equal(d("5000")))

	buyerCash, err := l.GetBalance("buyer", "USD")
	require.NoError(t, err)
	assert.True(t, buyerCash.Equal(d("-5000")))

	buyerObligation, err := l.GetBalance("buyer", "TRADE-001")
	require.NoError(t, err)
	assert.True(t, buyerObligation.IsZero(), "the obligation unit extinguishes back to SYSTEM on settlement")

	state, err := l.GetUnitState("TRADE-001")
	require.NoError(t, err)
	assert.True(t, getBool(state, "settled"))

	_, resultAgain, err := l.ExecuteContract("TRADE-001", "TRADE-001-again", func(view core.LedgerView) core.PendingTransaction {
		return DeferredCashContract(view, "TRADE-001", paymentDate, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, core.AlreadyApplied, resultAgain, "a settled obligation produces an empty pending transaction on the next poll")
	sellerCashAfterSecondPoll, err := l.GetBalance("seller", "USD")
	require.NoError(t, err)
	assert.True(t, sellerCashAfterSecondPoll.Equal(d("5000")), "a settled obligation contributes an empty pending transaction")
}
