package core

import (
	"maps"

	"github.com/shopspring/decimal"
)

// Kind tags a unit's asset family.
type Kind string

const (
	KindCash               Kind = "CASH"
	KindStock              Kind = "STOCK"
	KindBilateralOption    Kind = "BILATERAL_OPTION"
	KindBilateralForward   Kind = "BILATERAL_FORWARD"
	KindFuture             Kind = "FUTURE"
	KindDeferredCash       Kind = "DEFERRED_CASH"
	KindBond               Kind = "BOND"
	KindBorrowRecord       Kind = "BORROW_RECORD"
	KindDeltaHedgeStrategy Kind = "DELTA_HEDGE_STRATEGY"
	KindStructuredNote     Kind = "STRUCTURED_NOTE"
	KindQIS                Kind = "QIS"
)

// TransferRule is a pure predicate invoked with the current ledger view and
// a proposed move; it returns a *TransferRuleViolationError if the move is
// not permitted, or nil otherwise.
type TransferRule func(view LedgerView, move Move) error

// Unrounded marks a unit as carrying no fixed decimal precision; rounding
// is a no-op.
const Unrounded = -1

// Unit is the registered descriptor for a fungible ledger asset class.
// Registration is one-shot; the Ledger's unit registry rejects
// re-registration of an existing symbol. State is a mutable, kind-dependent
// attribute bag mutated only through StateDelta application inside the
// executor (or, for seeding, directly before any transaction references it).
type Unit struct {
	Symbol        string
	Name          string
	Kind          Kind
	MinBalance    decimal.Decimal
	MaxBalance    decimal.Decimal
	DecimalPlaces int32 // Unrounded (-1) disables rounding
	TransferRule  TransferRule

	state map[string]any
}

// NewUnit constructs a Unit descriptor with the given bounds and optional
// transfer rule. state may be nil.
func NewUnit(symbol, name string, kind Kind, minBalance, maxBalance decimal.Decimal, decimalPlaces int32, rule TransferRule, state map[string]any) *Unit {
	return &Unit{
		Symbol:        symbol,
		Name:          name,
		Kind:          kind,
		MinBalance:    minBalance,
		MaxBalance:    maxBalance,
		DecimalPlaces: decimalPlaces,
		TransferRule:  rule,
		state:         deepCopyState(state),
	}
}

// Round applies the unit's fixed decimal precision using banker's rounding
// (half-to-even) at write time.
func (u *Unit) Round(v decimal.Decimal) decimal.Decimal {
	if u.DecimalPlaces == Unrounded {
		return v
	}
	return v.RoundBank(u.DecimalPlaces)
}

// State returns a deep copy of the unit's internal state.
func (u *Unit) State() map[string]any {
	return deepCopyState(u.state)
}

// cloneDescriptor returns an independent copy of the unit, including a deep
// copy of its state, for use by Clone/CloneAt.
func (u *Unit) cloneDescriptor() *Unit {
	return &Unit{
		Symbol:        u.Symbol,
		Name:          u.Name,
		Kind:          u.Kind,
		MinBalance:    u.MinBalance,
		MaxBalance:    u.MaxBalance,
		DecimalPlaces: u.DecimalPlaces,
		TransferRule:  u.TransferRule,
		state:         deepCopyState(u.state),
	}
}

// replayDescriptor returns a copy of the unit with empty state, used by
// Replay (state is rebuilt from the log's state deltas).
func (u *Unit) replayDescriptor() *Unit {
	d := u.cloneDescriptor()
	d.state = map[string]any{}
	return d
}

func deepCopyState(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	out := make(map[string]any, len(state))
	maps.Copy(out, state)
	for k, v := range out {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopyState(nested)
		}
	}
	return out
}

// BilateralTransferRule restricts moves to the pair of counterparties
// recorded in the unit's state under "long_wallet"/"short_wallet", plus an
// optional "novation_from" wallet admitted during a novation.
func BilateralTransferRule(view LedgerView, move Move) error {
	unit, err := view.GetUnit(move.Unit)
	if err != nil {
		return err
	}
	state := unit.State()
	allowed := map[string]struct{}{}
	if long, ok := state["long_wallet"].(string); ok {
		allowed[long] = struct{}{}
	}
	if short, ok := state["short_wallet"].(string); ok {
		allowed[short] = struct{}{}
	}
	if novation, ok := state["novation_from"].(string); ok && novation != "" {
		allowed[novation] = struct{}{}
	}
	if _, ok := allowed[move.Source]; !ok {
		return &TransferRuleViolationError{Detail: "bilateral unit: source " + move.Source + " is not a counterparty"}
	}
	if _, ok := allowed[move.Dest]; !ok {
		return &TransferRuleViolationError{Detail: "bilateral unit: dest " + move.Dest + " is not a counterparty"}
	}
	return nil
}

// Cash constructs a standard 2-decimal-place cash unit with a minimum
// balance of zero (no overdraft) and a maximum of 10^12; SystemWallet is
// exempt from both bounds.
func Cash(symbol, name string) *Unit {
	return NewUnit(symbol, name, KindCash,
		decimal.New(0, 0), decimal.New(1_000_000_000_000, 0), 2, nil, nil)
}
