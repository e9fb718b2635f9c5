package instruments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerforge/core"
)

func newBorrowRecordLedger(t *testing.T) (*core.Ledger, time.Time, time.Time) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := core.New("borrow-ledger", start, core.Config{})
	l.RegisterWallet(core.SystemWallet)
	l.RegisterWallet("lender")
	l.RegisterWallet("borrower")

	cash := core.NewUnit("USD", "US Dollar", core.KindCash, decimal.New(-1, 12), decimal.New(1, 12), 2, nil, nil)
	require.NoError(t, l.RegisterUnit(cash))
	stock := core.NewUnit("ACME", "Acme Corp", core.KindStock, decimal.New(-1, 12), decimal.New(1, 12), 0, nil, nil)
	require.NoError(t, l.RegisterUnit(stock))

	termEnd := start.AddDate(0, 0, 30)
	borrowState := map[string]any{
		"lender":        "lender",
		"borrower":      "borrower",
		"stock":         "ACME",
		"quantity":      decimal.NewFromInt(100),
		"rate_bps":      decimal.NewFromInt(50),
		"fee_currency":  "USD",
		"start_date":    start,
		"term_end":      termEnd,
		"recalled":      false,
		"recall_date":   time.Time{},
		"last_fee_date": time.Time{},
		"returned":      false,
	}
	record := core.NewUnit("BORROW-1", "Acme borrow record", core.KindBorrowRecord, decimal.Zero, decimal.New(1, 12), 0, nil, borrowState)
	require.NoError(t, l.RegisterUnit(record))

	_, _, err := l.SetBalance("borrower", "ACME", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, _, err = l.SetBalance("borrower", "BORROW-1", decimal.NewFromInt(1))
	require.NoError(t, err)

	return l, start, termEnd
}

func TestBorrowRecordReturnsStockAtTermEnd(t *testing.T) {
	l, _, termEnd := newBorrowRecordLedger(t)

	_, result, err := l.ExecuteContract("BORROW-1", "BORROW-1", func(view core.LedgerView) core.PendingTransaction {
		return BorrowRecordContract(view, "BORROW-1", termEnd, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	lenderStock, err := l.GetBalance("lender", "ACME")
	require.NoError(t, err)
	assert.True(t, lenderStock.Equal(decimal.NewFromInt(100)), "borrowed shares return to the lender at term end")

	borrowerStock, err := l.GetBalance("borrower", "ACME")
	require.NoError(t, err)
	assert.True(t, borrowerStock.IsZero())

	borrowerRecord, err := l.GetBalance("borrower", "BORROW-1")
	require.NoError(t, err)
	assert.True(t, borrowerRecord.IsZero(), "the borrow-record unit is extinguished on return")

	state, err := l.GetUnitState("BORROW-1")
	require.NoError(t, err)
	assert.True(t, state["returned"].(bool))
}

func TestBorrowRecordMintsFeeEntitlementOnReturn(t *testing.T) {
	l, _, termEnd := newBorrowRecordLedger(t)

	_, result, err := l.ExecuteContract("BORROW-1", "BORROW-1", func(view core.LedgerView) core.PendingTransaction {
		return BorrowRecordContract(view, "BORROW-1", termEnd, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	var feeSymbol string
	for _, u := range l.ListUnits() {
		if u != "BORROW-1" && u != "USD" && u != "ACME" {
			feeSymbol = u
		}
	}
	require.NotEmpty(t, feeSymbol, "a deferred-cash fee entitlement is minted for the lender")

	lenderFee, err := l.GetBalance("lender", feeSymbol)
	require.NoError(t, err)
	assert.True(t, lenderFee.Equal(decimal.NewFromInt(1)))

	feeState, err := l.GetUnitState(feeSymbol)
	require.NoError(t, err)
	fee := ComputeBorrowFee(decimal.NewFromInt(100), decimal.NewFromInt(50), 30)
	assert.True(t, feeState["amount"].(decimal.Decimal).Equal(fee))
}

func TestBorrowRecordRecallTriggersEarlyReturn(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := core.New("borrow-recall-ledger", start, core.Config{})
	l.RegisterWallet(core.SystemWallet)
	l.RegisterWallet("lender")
	l.RegisterWallet("borrower")

	cash := core.NewUnit("USD", "US Dollar", core.KindCash, decimal.New(-1, 12), decimal.New(1, 12), 2, nil, nil)
	require.NoError(t, l.RegisterUnit(cash))
	stock := core.NewUnit("ACME", "Acme Corp", core.KindStock, decimal.New(-1, 12), decimal.New(1, 12), 0, nil, nil)
	require.NoError(t, l.RegisterUnit(stock))

	recallDate := start.AddDate(0, 0, 10)
	borrowState := map[string]any{
		"lender":        "lender",
		"borrower":      "borrower",
		"stock":         "ACME",
		"quantity":      decimal.NewFromInt(50),
		"rate_bps":      decimal.NewFromInt(25),
		"fee_currency":  "USD",
		"start_date":    start,
		"term_end":      time.Time{},
		"recalled":      true,
		"recall_date":   recallDate,
		"last_fee_date": time.Time{},
		"returned":      false,
	}
	record := core.NewUnit("BORROW-2", "Acme borrow record", core.KindBorrowRecord, decimal.Zero, decimal.New(1, 12), 0, nil, borrowState)
	require.NoError(t, l.RegisterUnit(record))
	_, _, err := l.SetBalance("borrower", "ACME", decimal.NewFromInt(50))
	require.NoError(t, err)
	_, _, err = l.SetBalance("borrower", "BORROW-2", decimal.NewFromInt(1))
	require.NoError(t, err)

	_, result, err := l.ExecuteContract("BORROW-2", "BORROW-2", func(view core.LedgerView) core.PendingTransaction {
		return BorrowRecordContract(view, "BORROW-2", recallDate, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	state, err := l.GetUnitState("BORROW-2")
	require.NoError(t, err)
	assert.True(t, state["returned"].(bool))
}

func TestComputeAvailablePositionAndValidateShortSale(t *testing.T) {
	l, _, _ := newBorrowRecordLedger(t)

	available, err := ComputeAvailablePosition(l, "borrower", "ACME", decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.True(t, available.Equal(d("70")), "100 owned minus 30 already-borrowed-out")

	ok, err := ValidateShortSale(l, "borrower", "ACME", d("50"), decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateShortSale(l, "borrower", "ACME", d("90"), decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.False(t, ok)
}
