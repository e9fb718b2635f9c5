package instruments

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

// StrategyFunc computes a QIS's target holdings vector (symbol -> units)
// given the current view and time; the QIS contract rebalances toward it
// self-financing, with no external cash flows.
type StrategyFunc func(view core.LedgerView, t time.Time) map[string]decimal.Decimal

var strategyRegistry = map[string]StrategyFunc{}

// RegisterStrategy binds a named strategy function for QIS units whose
// state carries that name under "strategy_name". QIS state cannot itself
// hold a Go function value across the deep-copy/canonicalization boundary
// used elsewhere in this package, so strategies are looked up by name.
func RegisterStrategy(name string, fn StrategyFunc) {
	strategyRegistry[name] = fn
}

// QISContract rebalances a quantitative investment strategy's holdings
// toward its strategy function's target daily, and settles its
// performance swap against payer/receiver at maturity. NAV is
// V(t) = Σ φᵢ·Pᵢ(t) + C; cash accrues daily at the funding rate;
// rebalances are self-financing (cash absorbs the cost of any holdings
// change so NAV is preserved); conservation holds through settlement.
func QISContract(view core.LedgerView, symbol string, t time.Time, prices core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "settled") {
		return core.EmptyPendingTransaction()
	}

	holdings, _ := state["holdings"].(map[string]decimal.Decimal)
	cash := getDecimal(state, "cash")
	lastAccrual := getTime(state, "last_accrual_date")
	fundingRate := getDecimal(state, "funding_rate")
	maturity := getTime(state, "maturity_date")
	notional := getDecimal(state, "notional")
	initialNAV := getDecimal(state, "initial_nav")
	payer := getString(state, "payer_wallet")
	receiver := getString(state, "receiver_wallet")
	currency := getString(state, "currency")
	strategyName := getString(state, "strategy_name")

	if !lastAccrual.IsZero() && t.After(lastAccrual) {
		years := t.Sub(lastAccrual).Hours() / (24 * 365)
		cash = accrue(cash, fundingRate, years)
	}

	nav, err := computeNAV(holdings, cash, prices, t)
	if err != nil {
		return core.EmptyPendingTransaction()
	}

	if !t.Before(maturity) {
		settlement := notional.Mul(nav.Div(initialNAV).Sub(decimal.NewFromInt(1)))
		var moves []core.Move
		if settlement.Abs().GreaterThan(core.QuantityEpsilon) {
			var m core.Move
			var merr error
			if settlement.IsPositive() {
				m, merr = core.NewMove(payer, receiver, currency, settlement, symbol)
			} else {
				m, merr = core.NewMove(receiver, payer, currency, settlement.Neg(), symbol)
			}
			if merr == nil {
				moves = append(moves, m)
			}
		}
		newState := cloneState(state)
		newState["settled"] = true
		newState["cash"] = cash
		return core.PendingTransaction{Moves: moves, StateUpdates: single(symbol, newState)}
	}

	strategy, ok := strategyRegistry[strategyName]
	if !ok {
		newState := cloneState(state)
		newState["cash"] = cash
		newState["last_accrual_date"] = t
		return core.PendingTransaction{StateUpdates: single(symbol, newState)}
	}

	target := strategy(view, t)
	newHoldings := make(map[string]decimal.Decimal, len(target))
	cost := decimal.Zero
	for sym, targetQty := range target {
		price, perr := prices.Price(sym, t)
		if perr != nil {
			continue
		}
		current := holdings[sym]
		delta := targetQty.Sub(current)
		cost = cost.Add(delta.Mul(price))
		newHoldings[sym] = targetQty
	}
	for sym, qty := range holdings {
		if _, ok := newHoldings[sym]; !ok {
			newHoldings[sym] = qty
		}
	}

	newState := cloneState(state)
	newState["holdings"] = newHoldings
	newState["cash"] = cash.Sub(cost)
	newState["last_accrual_date"] = t

	return core.PendingTransaction{StateUpdates: single(symbol, newState)}
}

func computeNAV(holdings map[string]decimal.Decimal, cash decimal.Decimal, prices core.PricingSource, t time.Time) (decimal.Decimal, error) {
	nav := cash
	for sym, qty := range holdings {
		price, err := prices.Price(sym, t)
		if err != nil {
			return decimal.Zero, err
		}
		nav = nav.Add(qty.Mul(price))
	}
	return nav, nil
}

func accrue(cash, rate decimal.Decimal, years float64) decimal.Decimal {
	r, _ := rate.Float64()
	factor := math.Exp(r * years)
	return cash.Mul(decimal.NewFromFloat(factor))
}
