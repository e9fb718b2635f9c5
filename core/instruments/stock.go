package instruments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

// Dividend describes one scheduled distribution on a dividend-paying
// stock.
type Dividend struct {
	ExDate         time.Time
	PaymentDate    time.Time
	AmountPerShare decimal.Decimal
	Currency       string
}

// StockContract processes a dividend-paying stock's schedule: for each
// unprocessed dividend whose ex_date has arrived, it snapshots holders
// (excluding the issuer) and mints a fresh DEFERRED_CASH entitlement unit
// per (dividend, holder) pair, handing one unit of it to the holder. The
// actual cash payment happens later, when that deferred-cash unit's own
// contract fires at its payment_date.
func StockContract(view core.LedgerView, symbol string, t time.Time, _ core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	schedule, _ := state["dividend_schedule"].([]Dividend)
	if len(schedule) == 0 {
		return core.EmptyPendingTransaction()
	}
	processed := getStringSet(state, "processed_dividends")
	issuer := getString(state, "issuer")

	var moves []core.Move
	var newUnits []*core.Unit
	newlyProcessed := false

	for idx, div := range schedule {
		key := fmt.Sprintf("%s:%d", div.ExDate.Format(time.RFC3339), idx)
		if _, done := processed[key]; done {
			continue
		}
		if t.Before(div.ExDate) {
			continue
		}
		positions, err := view.GetPositions(symbol)
		if err != nil {
			continue
		}
		for holder, shares := range positions {
			if holder == issuer || shares.Sign() <= 0 {
				continue
			}
			entitlementSymbol := fmt.Sprintf("%s-DIV-%s-%s", symbol, key, holder)
			entitlementState := map[string]any{
				"amount":       shares.Mul(div.AmountPerShare),
				"currency":     div.Currency,
				"payment_date": div.PaymentDate,
				"payer":        issuer,
				"payee":        holder,
				"settled":      false,
			}
			unit := core.NewUnit(entitlementSymbol, fmt.Sprintf("%s dividend entitlement", symbol),
				core.KindDeferredCash, decimal.Zero, decimal.NewFromInt(1), core.Unrounded, nil, entitlementState)
			newUnits = append(newUnits, unit)
			m, merr := core.NewMove(core.SystemWallet, holder, entitlementSymbol, decimal.NewFromInt(1), symbol)
			if merr == nil {
				moves = append(moves, m)
			}
		}
		processed[key] = struct{}{}
		newlyProcessed = true
	}

	if !newlyProcessed {
		return core.EmptyPendingTransaction()
	}

	newState := cloneState(state)
	newState["processed_dividends"] = processed

	return core.PendingTransaction{
		Moves:        moves,
		StateUpdates: single(symbol, newState),
		NewUnits:     newUnits,
	}
}
