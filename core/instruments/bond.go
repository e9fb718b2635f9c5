package instruments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

// BondContract pays scheduled coupons as they come due and redeems the
// principal at maturity. State: {issuer, holder, currency, face_value,
// coupon_rate, coupon_dates, maturity_date, processed_coupons, redeemed}.
// coupon_rate is an annualized rate; each coupon pays
// face_value * coupon_rate / len(coupon_dates) per scheduled date.
func BondContract(view core.LedgerView, symbol string, t time.Time, _ core.PricingSource) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "redeemed") {
		return core.EmptyPendingTransaction()
	}

	issuer := getString(state, "issuer")
	holder := getString(state, "holder")
	currency := getString(state, "currency")
	faceValue := getDecimal(state, "face_value")
	couponRate := getDecimal(state, "coupon_rate")
	maturity := getTime(state, "maturity_date")
	couponDates, _ := state["coupon_dates"].([]time.Time)
	processed := getStringSet(state, "processed_coupons")

	var moves []core.Move
	changed := false

	if len(couponDates) > 0 {
		perCoupon := faceValue.Mul(couponRate).Div(decimal.NewFromInt(int64(len(couponDates))))
		for idx, cd := range couponDates {
			key := fmt.Sprintf("%d", idx)
			if _, done := processed[key]; done {
				continue
			}
			if t.Before(cd) {
				continue
			}
			m, merr := core.NewMove(issuer, holder, currency, perCoupon, symbol)
			if merr == nil {
				moves = append(moves, m)
			}
			processed[key] = struct{}{}
			changed = true
		}
	}

	redeemed := false
	if !t.Before(maturity) {
		principal, err := view.GetBalance(holder, symbol)
		if err == nil && principal.Sign() > 0 {
			cashMove, merr := core.NewMove(issuer, holder, currency, faceValue, symbol)
			if merr == nil {
				moves = append(moves, cashMove)
			}
			closeMove, merr := core.NewMove(holder, core.SystemWallet, symbol, principal, symbol)
			if merr == nil {
				moves = append(moves, closeMove)
			}
		}
		redeemed = true
		changed = true
	}

	if !changed {
		return core.EmptyPendingTransaction()
	}

	newState := cloneState(state)
	newState["processed_coupons"] = processed
	newState["redeemed"] = redeemed

	return core.PendingTransaction{Moves: moves, StateUpdates: single(symbol, newState)}
}
