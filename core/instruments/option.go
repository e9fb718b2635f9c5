package instruments

import (
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

// OptionContract implements the bilateral option lifecycle: at maturity,
// settles in cash-against-underlying (call: long pays strike, receives
// underlying; put: long delivers underlying, receives strike) and closes
// the option position, or lets it expire worthless out-of-the-money.
func OptionContract(view core.LedgerView, symbol string, t time.Time, prices core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "settled") {
		return core.EmptyPendingTransaction()
	}
	maturity := getTime(state, "maturity")
	if t.Before(maturity) {
		return core.EmptyPendingTransaction()
	}
	spot, err := prices.Price(getString(state, "underlying"), t)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	return computeOptionSettlement(view, symbol, state, spot, false)
}

// ComputeOptionSettlement exposes early settlement: callers may force
// settlement ahead of maturity by supplying the current spot price.
func ComputeOptionSettlement(view core.LedgerView, symbol string, spot decimal.Decimal, forceSettlement bool) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "settled") && !forceSettlement {
		return core.EmptyPendingTransaction()
	}
	return computeOptionSettlement(view, symbol, state, spot, forceSettlement)
}

func computeOptionSettlement(view core.LedgerView, symbol string, state map[string]any, spot decimal.Decimal, force bool) core.PendingTransaction {
	long := getString(state, "long_wallet")
	short := getString(state, "short_wallet")
	underlying := getString(state, "underlying")
	currency := getString(state, "currency")
	strike := getDecimal(state, "strike")
	qtyPerContract := getDecimal(state, "quantity_per_contract")
	optType := getString(state, "type")

	n, err := view.GetBalance(long, symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if n.Sign() <= 0 {
		newState := cloneState(state)
		newState["settled"] = true
		newState["exercised"] = false
		newState["settlement_price"] = spot
		return core.PendingTransaction{StateUpdates: single(symbol, newState)}
	}

	shares := n.Mul(qtyPerContract)
	var moves []core.Move
	exercised := false

	switch optType {
	case "call":
		if spot.GreaterThan(strike) {
			exercised = true
			cash, _ := core.NewMove(long, short, currency, shares.Mul(strike), symbol)
			underlyingMove, _ := core.NewMove(short, long, underlying, shares, symbol)
			moves = append(moves, cash, underlyingMove)
		}
	case "put":
		if spot.LessThan(strike) {
			exercised = true
			underlyingMove, _ := core.NewMove(long, short, underlying, shares, symbol)
			cash, _ := core.NewMove(short, long, currency, shares.Mul(strike), symbol)
			moves = append(moves, underlyingMove, cash)
		}
	}

	closeMove, err := core.NewMove(long, short, symbol, n, symbol)
	if err == nil {
		moves = append(moves, closeMove)
	}

	newState := cloneState(state)
	newState["settled"] = true
	newState["exercised"] = exercised
	newState["settlement_price"] = spot

	return core.PendingTransaction{
		Moves:        moves,
		StateUpdates: single(symbol, newState),
	}
}
