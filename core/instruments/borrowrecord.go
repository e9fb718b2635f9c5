package instruments

import (
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

// BorrowRecordContract implements a securities-borrowing liability: the
// borrower holds shares received from the lender against an obligation to
// return them (on recall, or at term end) plus an accrued borrow fee.
// State: {lender, borrower, stock, quantity, rate_bps, fee_currency,
// start_date, term_end, recalled, recall_date, last_fee_date, returned}.
// On return: the stock moves borrower -> lender, the borrow-record unit is
// extinguished (borrower -> SYSTEM), and a freshly-registered DEFERRED_CASH
// entitlement is minted for the accrued fee (payer=borrower, payee=lender),
// mirroring the dividend-entitlement pattern in stock.go.
func BorrowRecordContract(view core.LedgerView, symbol string, t time.Time, _ core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "returned") {
		return core.EmptyPendingTransaction()
	}

	termEnd := getTime(state, "term_end")
	recalled := getBool(state, "recalled")
	recallDate := getTime(state, "recall_date")

	due := (!termEnd.IsZero() && !t.Before(termEnd)) || (recalled && !t.Before(recallDate))
	if !due {
		return core.EmptyPendingTransaction()
	}

	borrower := getString(state, "borrower")
	lender := getString(state, "lender")
	stock := getString(state, "stock")
	feeCurrency := getString(state, "fee_currency")
	quantity := getDecimal(state, "quantity")
	rateBps := getDecimal(state, "rate_bps")
	lastFeeDate := getTime(state, "last_fee_date")
	if lastFeeDate.IsZero() {
		lastFeeDate = getTime(state, "start_date")
	}

	holderBalance, err := view.GetBalance(borrower, symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}

	var moves []core.Move
	var newUnits []*core.Unit

	if holderBalance.Sign() > 0 {
		returnMove, merr := core.NewMove(borrower, lender, stock, quantity, symbol)
		if merr == nil {
			moves = append(moves, returnMove)
		}
		extinguish, merr := core.NewMove(borrower, core.SystemWallet, symbol, holderBalance, symbol)
		if merr == nil {
			moves = append(moves, extinguish)
		}
	}

	days := t.Sub(lastFeeDate).Hours() / 24
	fee := ComputeBorrowFee(quantity, rateBps, days)
	if fee.Sign() > 0 {
		entitlementSymbol := symbol + "-FEE-" + t.Format(time.RFC3339)
		entitlementState := map[string]any{
			"amount":       fee,
			"currency":     feeCurrency,
			"payment_date": t,
			"payer":        borrower,
			"payee":        lender,
			"settled":      false,
		}
		unit := core.NewUnit(entitlementSymbol, symbol+" borrow fee entitlement",
			core.KindDeferredCash, decimal.Zero, decimal.NewFromInt(1), core.Unrounded, nil, entitlementState)
		newUnits = append(newUnits, unit)
		m, merr := core.NewMove(core.SystemWallet, lender, entitlementSymbol, decimal.NewFromInt(1), symbol)
		if merr == nil {
			moves = append(moves, m)
		}
	}

	newState := cloneState(state)
	newState["returned"] = true
	newState["last_fee_date"] = t

	return core.PendingTransaction{
		Moves:        moves,
		StateUpdates: single(symbol, newState),
		NewUnits:     newUnits,
	}
}

// ComputeAvailablePosition returns a wallet's sellable position in stock:
// owned shares minus outstanding borrow obligations against it, the
// invariant that prevents naked short selling (Available = Owned - Borrowed
// >= 0 for a valid short sale).
func ComputeAvailablePosition(view core.LedgerView, wallet, stock string, borrowedQty decimal.Decimal) (decimal.Decimal, error) {
	owned, err := view.GetBalance(wallet, stock)
	if err != nil {
		return decimal.Zero, err
	}
	return owned.Sub(borrowedQty), nil
}

// ComputeBorrowFee computes the simple accrued borrow fee for quantity
// shares borrowed at an annualized rate of rateBps basis points over the
// given number of days (Actual/360).
func ComputeBorrowFee(quantity, rateBps decimal.Decimal, days float64) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	annualRate := rateBps.Div(decimal.NewFromInt(10000))
	dayFraction := decimal.NewFromFloat(days / 360)
	return quantity.Mul(annualRate).Mul(dayFraction)
}

// ValidateShortSale reports whether wallet may sell qty shares of stock
// without going short of its available (owned-minus-borrowed) position.
func ValidateShortSale(view core.LedgerView, wallet, stock string, qty, borrowedQty decimal.Decimal) (bool, error) {
	available, err := ComputeAvailablePosition(view, wallet, stock, borrowedQty)
	if err != nil {
		return false, err
	}
	return available.GreaterThanOrEqual(qty), nil
}
