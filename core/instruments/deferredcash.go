package instruments

import (
	"time"

	"ledgerforge/core"
)

// DeferredCashContract settles a deferred-cash obligation once its
// payment_date has arrived: it pays the amount from payer to payee and
// extinguishes the entitlement unit by returning the holder's balance to
// SYSTEM. The holder is whichever party actually carries the unit --
// typically the payee for a dividend entitlement, or the payer in a
// trade-settlement deferred obligation.
func DeferredCashContract(view core.LedgerView, symbol string, t time.Time, _ core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "settled") {
		return core.EmptyPendingTransaction()
	}
	paymentDate := getTime(state, "payment_date")
	if t.Before(paymentDate) {
		return core.EmptyPendingTransaction()
	}

	payer := getString(state, "payer")
	payee := getString(state, "payee")
	currency := getString(state, "currency")
	amount := getDecimal(state, "amount")

	holder := payee
	holderBalance, err := view.GetBalance(payee, symbol)
	if err != nil || holderBalance.Sign() <= 0 {
		holder = payer
		holderBalance, err = view.GetBalance(payer, symbol)
		if err != nil || holderBalance.Sign() <= 0 {
			return core.EmptyPendingTransaction()
		}
	}

	cashMove, err := core.NewMove(payer, payee, currency, amount, symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	extinguish, err := core.NewMove(holder, core.SystemWallet, symbol, holderBalance, symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}

	newState := cloneState(state)
	newState["settled"] = true

	return core.PendingTransaction{
		Moves:        []core.Move{cashMove, extinguish},
		StateUpdates: single(symbol, newState),
	}
}
