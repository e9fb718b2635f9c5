package instruments

import (
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

// FutureContract runs a future's daily mark-to-market against the
// lifecycle engine's price source and, once the step time reaches expiry,
// performs a final mark and marks the future settled. Conservation:
// Σ positions == 0 and Σ virtual_cash == 0 across all wallets (including
// the clearinghouse) at every point -- the clearinghouse never receives a
// Move for its own notional share, since a Move requires source != dest,
// but the bilateral trader-side settlement alone keeps both sums at zero.
func FutureContract(view core.LedgerView, symbol string, t time.Time, prices core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "settled") {
		return core.EmptyPendingTransaction()
	}
	expiry := getTime(state, "expiry")
	price, err := prices.Price(getString(state, "underlying"), t)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if t.Before(expiry) {
		return MarkToMarket(view, symbol, price, t)
	}
	pending := MarkToMarket(view, symbol, price, t)
	newState := cloneState(state)
	if pending.StateUpdates[symbol] != nil {
		newState = pending.StateUpdates[symbol]
	}
	newState["settled"] = true
	return core.PendingTransaction{Moves: pending.Moves, StateUpdates: single(symbol, newState)}
}

// MarkToMarket performs one daily settlement pass for a future at price P
// on date d: idempotent per (symbol, settle_date) via last_settle_date.
func MarkToMarket(view core.LedgerView, symbol string, price decimal.Decimal, settleDate time.Time) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	lastSettle := getTime(state, "last_settle_date")
	if !lastSettle.IsZero() && !lastSettle.Before(settleDate) {
		return core.EmptyPendingTransaction()
	}

	clearinghouse := getString(state, "clearinghouse")
	currency := getString(state, "currency")
	multiplier := getDecimal(state, "multiplier")
	wallets, _ := state["wallets"].(map[string]map[string]decimal.Decimal)

	var moves []core.Move
	updated := make(map[string]map[string]decimal.Decimal, len(wallets))
	for wallet, pos := range wallets {
		position := pos["position"]
		vcash := pos["virtual_cash"]
		if position.IsZero() && vcash.IsZero() {
			updated[wallet] = pos
			continue
		}
		target := position.Neg().Mul(price).Mul(multiplier)
		vm := vcash.Sub(target)
		if wallet != clearinghouse && vm.Abs().GreaterThan(core.QuantityEpsilon) {
			if vm.IsPositive() {
				m, merr := core.NewMove(clearinghouse, wallet, currency, vm, symbol)
				if merr == nil {
					moves = append(moves, m)
				}
			} else {
				m, merr := core.NewMove(wallet, clearinghouse, currency, vm.Neg(), symbol)
				if merr == nil {
					moves = append(moves, m)
				}
			}
		}
		updated[wallet] = map[string]decimal.Decimal{"position": position, "virtual_cash": target}
	}

	newState := cloneState(state)
	newState["wallets"] = updated
	newState["last_settle_price"] = price
	newState["last_settle_date"] = settleDate

	return core.PendingTransaction{Moves: moves, StateUpdates: single(symbol, newState)}
}

// Transact records a trade of qty futures contracts (positive = buy,
// negative = sell) at price, updating both the wallet's and the
// clearinghouse's virtual cash by the equal-and-opposite amount and
// emitting the corresponding futures-unit Move. The per-wallet tracked
// position in state must equal the ledger's own balance for wallet before
// the trade -- this is defense-in-depth against state and balance
// drifting apart.
func Transact(view core.LedgerView, symbol, wallet string, qty, price decimal.Decimal) (core.PendingTransaction, error) {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction(), err
	}
	clearinghouse := getString(state, "clearinghouse")
	currency := getString(state, "currency")
	multiplier := getDecimal(state, "multiplier")
	wallets, _ := state["wallets"].(map[string]map[string]decimal.Decimal)
	if wallets == nil {
		wallets = map[string]map[string]decimal.Decimal{}
	}

	ledgerBal, err := view.GetBalance(wallet, symbol)
	if err != nil {
		return core.EmptyPendingTransaction(), err
	}
	tracked := wallets[wallet]["position"]
	if !tracked.Equal(ledgerBal) {
		return core.EmptyPendingTransaction(), &core.BalanceConstraintViolationError{
			Wallet: wallet, Unit: symbol, Projected: tracked, Bound: ledgerBal,
		}
	}

	cashDelta := qty.Mul(price).Mul(multiplier).Neg()

	updated := cloneWallets(wallets)
	walletPos := positionOf(updated, wallet)
	walletPos["position"] = walletPos["position"].Add(qty)
	walletPos["virtual_cash"] = walletPos["virtual_cash"].Add(cashDelta)
	updated[wallet] = walletPos

	chPos := positionOf(updated, clearinghouse)
	chPos["position"] = chPos["position"].Sub(qty)
	chPos["virtual_cash"] = chPos["virtual_cash"].Sub(cashDelta)
	updated[clearinghouse] = chPos

	var move core.Move
	if qty.IsPositive() {
		move, err = core.NewMove(clearinghouse, wallet, symbol, qty, symbol)
	} else {
		move, err = core.NewMove(wallet, clearinghouse, symbol, qty.Neg(), symbol)
	}
	if err != nil {
		return core.EmptyPendingTransaction(), err
	}

	newState := cloneState(state)
	newState["wallets"] = updated
	return core.PendingTransaction{Moves: []core.Move{move}, StateUpdates: single(symbol, newState)}, nil
}

func cloneWallets(wallets map[string]map[string]decimal.Decimal) map[string]map[string]decimal.Decimal {
	out := make(map[string]map[string]decimal.Decimal, len(wallets))
	for w, pos := range wallets {
		cp := make(map[string]decimal.Decimal, len(pos))
		for k, v := range pos {
			cp[k] = v
		}
		out[w] = cp
	}
	return out
}

// positionOf returns wallet's position/virtual_cash entry in wallets,
// creating a zeroed one if absent.
func positionOf(wallets map[string]map[string]decimal.Decimal, wallet string) map[string]decimal.Decimal {
	pos, ok := wallets[wallet]
	if !ok {
		pos = map[string]decimal.Decimal{"position": decimal.Zero, "virtual_cash": decimal.Zero}
	}
	return pos
}
