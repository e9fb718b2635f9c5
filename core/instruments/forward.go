package instruments

import (
	"time"

	"ledgerforge/core"
)

// ForwardContract settles a bilateral forward unconditionally at its
// delivery_date: the long side pays the forward price for the
// underlying, the short side delivers it, and the forward position is
// closed.
func ForwardContract(view core.LedgerView, symbol string, t time.Time, _ core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "settled") {
		return core.EmptyPendingTransaction()
	}
	deliveryDate := getTime(state, "delivery_date")
	if t.Before(deliveryDate) {
		return core.EmptyPendingTransaction()
	}

	long := getString(state, "long_wallet")
	short := getString(state, "short_wallet")
	underlying := getString(state, "underlying")
	currency := getString(state, "currency")
	forwardPrice := getDecimal(state, "forward_price")
	qtyPerContract := getDecimal(state, "quantity_per_contract")

	position, err := view.GetBalance(long, symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	newState := cloneState(state)
	newState["settled"] = true

	if position.Sign() <= 0 {
		return core.PendingTransaction{StateUpdates: single(symbol, newState)}
	}

	notional := position.Mul(qtyPerContract)
	cashMove, err := core.NewMove(long, short, currency, notional.Mul(forwardPrice), symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	underlyingMove, err := core.NewMove(short, long, underlying, notional, symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	closeMove, err := core.NewMove(long, short, symbol, position, symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}

	return core.PendingTransaction{
		Moves:        []core.Move{cashMove, underlyingMove, closeMove},
		StateUpdates: single(symbol, newState),
	}
}
