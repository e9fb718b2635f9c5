package core

import (
	"time"
)

// DefaultMaxPasses bounds the number of cascading polling passes a single
// Step performs before giving up on reaching a fixed point.
const DefaultMaxPasses = 10

// Contract is a pure function mapping the current view, a unit's symbol,
// the step time, and a price lookup to a proposed transaction.
type Contract func(view LedgerView, symbol string, t time.Time, prices PricingSource) PendingTransaction

// EventHandler reacts to a due scheduled Event, returning a proposed
// transaction.
type EventHandler func(view LedgerView, e Event) (PendingTransaction, error)

// LifecycleEngine drives a Ledger forward in time: at each Step it repeats
// a scheduled phase (dispatch due events) and a polling phase (call the
// contract registered for every unit's kind) until a fixed point.
type LifecycleEngine struct {
	ledger    *Ledger
	contracts map[Kind]Contract
	handlers  map[string]EventHandler
	MaxPasses int
}

// NewLifecycleEngine constructs an engine bound to ledger, with MaxPasses
// defaulted to DefaultMaxPasses.
func NewLifecycleEngine(ledger *Ledger) *LifecycleEngine {
	return &LifecycleEngine{
		ledger:    ledger,
		contracts: make(map[Kind]Contract),
		handlers:  make(map[string]EventHandler),
		MaxPasses: DefaultMaxPasses,
	}
}

// Register binds a contract function to every unit of the given kind; it
// is polled, once per unit of that kind, on every pass of every Step.
func (e *LifecycleEngine) Register(kind Kind, c Contract) {
	e.contracts[kind] = c
}

// RegisterHandler binds an EventHandler to a scheduled event Action name.
func (e *LifecycleEngine) RegisterHandler(action string, h EventHandler) {
	e.handlers[action] = h
}

// Schedule enqueues a single event on the ledger's scheduler.
func (e *LifecycleEngine) Schedule(ev Event) {
	e.ledger.Scheduler().Schedule(ev)
}

// ScheduleMany enqueues a batch of events on the ledger's scheduler.
func (e *LifecycleEngine) ScheduleMany(evs []Event) {
	e.ledger.Scheduler().ScheduleMany(evs)
}

// Step advances the ledger's clock to t, then repeats, up to MaxPasses
// times, a scheduled phase (drain and dispatch every event due at or
// before t, in scheduler order) followed by a polling phase (iterate
// every registered unit in symbol-sorted order and invoke the contract
// bound to its kind, executing any non-empty result). A pass that
// executes nothing in either phase ends the step; a cascade that still
// has work left when MaxPasses is reached is not an error -- it simply
// rolls into the next Step.
func (e *LifecycleEngine) Step(t time.Time, prices PricingSource) error {
	if err := e.ledger.AdvanceTime(t); err != nil {
		return err
	}

	for pass := 0; pass < e.MaxPasses; pass++ {
		appliedAny := false
		symbols := e.ledger.ListUnits()

		for _, ev := range e.ledger.Scheduler().Drain(t) {
			handler, ok := e.handlers[ev.Action]
			if !ok {
				return &UnknownActionError{Action: ev.Action}
			}
			pending, err := handler(e.ledger, ev)
			if err != nil {
				return err
			}
			if pending.IsEmpty() {
				continue
			}
			applied, err := e.applyPending(pending, ev.Symbol)
			if err != nil {
				return err
			}
			appliedAny = appliedAny || applied
		}

		for _, sym := range symbols {
			u, err := e.ledger.GetUnit(sym)
			if err != nil {
				continue
			}
			contract, ok := e.contracts[u.Kind]
			if !ok {
				continue
			}
			pending := contract(e.ledger, sym, t, prices)
			if pending.IsEmpty() {
				continue
			}
			applied, err := e.applyPending(pending, sym)
			if err != nil {
				return err
			}
			appliedAny = appliedAny || applied
		}

		if !appliedAny {
			break
		}
	}

	return nil
}

// Run steps the engine once per timestamp in order, fetching a
// PricingSource snapshot per step via priceFn.
func (e *LifecycleEngine) Run(timestamps []time.Time, priceFn func(t time.Time) PricingSource) error {
	for _, t := range timestamps {
		if err := e.Step(t, priceFn(t)); err != nil {
			return err
		}
	}
	return nil
}

// applyPending routes an already-computed PendingTransaction through
// ExecuteContract (the same path ledger.ExecuteContract uses for a freshly
// invoked contract), so registration of new units, state-delta construction,
// and the empty-moves synthetic tx_id all stay in one place. It reports
// whether the transaction was newly applied (an AlreadyApplied result is
// not).
func (e *LifecycleEngine) applyPending(pending PendingTransaction, symbol string) (bool, error) {
	if pending.IsEmpty() {
		return false, nil
	}
	_, result, err := e.ledger.ExecuteContract(symbol, symbol, func(view LedgerView) PendingTransaction {
		return pending
	})
	if err != nil {
		return false, err
	}
	if result == Rejected {
		return false, newLedgerError("lifecycle: contract for %s produced a rejected transaction", symbol)
	}
	return result == Applied, nil
}
