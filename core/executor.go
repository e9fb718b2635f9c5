package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Execute validates and, if valid, atomically applies tx: every move is
// rounded and posted, every state delta is written, and (unless NoLog is
// set) the transaction is appended to the log. Idempotent by tx.TxID: a
// transaction whose id has already been applied returns AlreadyApplied
// without re-validating or re-applying.
func (l *Ledger) Execute(tx Transaction) (Transaction, ExecuteResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.seenTxIDs[tx.TxID]; seen {
		l.logResult(tx, AlreadyApplied)
		return tx, AlreadyApplied, nil
	}

	if err := l.validate(tx); err != nil {
		l.logResult(tx, Rejected)
		return tx, Rejected, err
	}

	for _, m := range tx.Moves {
		l.applyMoveRaw(m)
	}
	for _, d := range tx.StateDeltas {
		if err := l.updateUnitStateLocked(d.Unit, d.NewState); err != nil {
			return tx, Rejected, err
		}
	}

	tx.ExecutionTime = l.currentTime
	l.seenTxIDs[tx.TxID] = struct{}{}
	if !l.cfg.NoLog {
		l.log = append(l.log, tx)
	}

	l.logResult(tx, Applied)
	return tx, Applied, nil
}

// ExecuteContract runs contract (a pure function of the current view) and,
// unless its result is empty, builds and executes the resulting
// transaction with contractID stamped onto every move that carries no
// ContractID of its own. An empty result executes nothing and returns
// AlreadyApplied. Each state delta pairs the referenced unit's current
// state (old) with that state overlaid by the contract's StateUpdates
// entry (new). New units the result carries are registered first and
// unregistered again if the transaction is rejected.
func (l *Ledger) ExecuteContract(symbol string, contractID string, contract func(view LedgerView) PendingTransaction) (Transaction, ExecuteResult, error) {
	pending := contract(l)

	if pending.IsEmpty() {
		return Transaction{}, AlreadyApplied, nil
	}

	moves := make([]Move, len(pending.Moves))
	for i, m := range pending.Moves {
		if m.ContractID == "" {
			m.ContractID = contractID
		}
		moves[i] = m
	}

	var registered []string
	unregister := func() {
		l.mu.Lock()
		for _, sym := range registered {
			delete(l.units, sym)
			delete(l.positionsByUnit, sym)
		}
		l.mu.Unlock()
	}
	for _, u := range pending.NewUnits {
		l.mu.RLock()
		_, exists := l.units[u.Symbol]
		l.mu.RUnlock()
		if exists {
			continue
		}
		if err := l.RegisterUnit(u); err != nil {
			unregister()
			return Transaction{}, Rejected, err
		}
		registered = append(registered, u.Symbol)
	}

	units := make([]string, 0, len(pending.StateUpdates))
	for unit := range pending.StateUpdates {
		units = append(units, unit)
	}
	sort.Strings(units)

	l.mu.RLock()
	deltas := make([]StateDelta, 0, len(units))
	for _, unit := range units {
		u, err := l.getUnitLocked(unit)
		if err != nil {
			l.mu.RUnlock()
			unregister()
			return Transaction{}, Rejected, err
		}
		newState := u.State()
		if newState == nil {
			newState = map[string]any{}
		}
		for k, v := range pending.StateUpdates[unit] {
			newState[k] = v
		}
		deltas = append(deltas, StateDelta{Unit: unit, OldState: u.State(), NewState: newState})
	}

	var txID string
	if len(moves) == 0 {
		txID = hashHex(fmt.Sprintf("%s:%s:state:%s", l.currentTime.Format(time.RFC3339Nano), l.name, strings.Join(units, ",")))
	} else {
		txID = l.deterministicTxID(moves, deltas)
	}

	tx := Transaction{
		TxID:        txID,
		LedgerName:  l.name,
		Timestamp:   l.currentTime,
		Moves:       moves,
		StateDeltas: deltas,
	}
	l.mu.RUnlock()

	out, result, err := l.Execute(tx)
	if result == Rejected {
		unregister()
	}
	return out, result, err
}

func (l *Ledger) logResult(tx Transaction, result ExecuteResult) {
	if !l.cfg.Verbose {
		return
	}
	l.logger.WithFields(map[string]any{
		"tx_id":  tx.TxID,
		"moves":  len(tx.Moves),
		"result": result.String(),
	}).Info("execute")
}
