package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Clone returns an independent, deep copy of the ledger: units, wallets,
// balances, the position index, seen-tx set, and log are all copied so
// mutating the clone never affects the original.
func (l *Ledger) Clone() *Ledger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cloneLocked()
}

func (l *Ledger) cloneLocked() *Ledger {
	clone := New(l.name, l.currentTime, l.cfg)

	for sym, u := range l.units {
		clone.units[sym] = u.cloneDescriptor()
	}
	for w := range l.wallets {
		clone.wallets[w] = struct{}{}
	}
	for w, bals := range l.balances {
		cp := make(map[string]decimal.Decimal, len(bals))
		for u, v := range bals {
			cp[u] = v
		}
		clone.balances[w] = cp
	}
	for sym, holders := range l.positionsByUnit {
		cp := make(map[string]decimal.Decimal, len(holders))
		for w, v := range holders {
			cp[w] = v
		}
		clone.positionsByUnit[sym] = cp
	}
	for id := range l.seenTxIDs {
		clone.seenTxIDs[id] = struct{}{}
	}
	clone.log = append(clone.log, l.log...)

	return clone
}

// CloneAt returns a deep copy of the ledger as it stood at time t,
// reconstructed by reverse-walking the log from the current state and
// undoing every transaction with ExecutionTime after t. SetBalance seeds
// are logged transactions like any other, so seeds made after t are
// unwound as well. Unavailable (LogUnavailableError) when NoLog is set;
// fails if t is after the ledger's current time.
func (l *Ledger) CloneAt(t time.Time) (*Ledger, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.cfg.NoLog {
		return nil, &LogUnavailableError{Operation: "CloneAt"}
	}
	if t.After(l.currentTime) {
		return nil, newValidationError("CloneAt: target time %s is after current time %s", t, l.currentTime)
	}

	clone := l.cloneLocked()
	clone.currentTime = t

	cut := len(clone.log)
	for i := len(clone.log) - 1; i >= 0; i-- {
		tx := clone.log[i]
		if !tx.ExecutionTime.After(t) {
			break
		}
		for _, m := range tx.Moves {
			reverse := Move{Source: m.Dest, Dest: m.Source, Unit: m.Unit, Quantity: m.Quantity, ContractID: m.ContractID}
			clone.applyMoveRaw(reverse)
		}
		for _, d := range tx.StateDeltas {
			u, ok := clone.units[d.Unit]
			if !ok {
				return nil, newLedgerError("CloneAt: unit %s missing while unwinding tx %s", d.Unit, tx.TxID)
			}
			u.state = deepCopyState(d.OldState)
		}
		delete(clone.seenTxIDs, tx.TxID)
		cut = i
	}
	clone.log = clone.log[:cut]

	return clone, nil
}

// Replay rebuilds a fresh ledger from scratch, re-registering every unit
// and wallet this ledger itself has registered (state is rebuilt from the
// log's state deltas, not carried over), then replaying the log from index
// fromTx onward by re-executing every logged transaction through Execute,
// in fast_mode, in order. Returns ReplayFailureError if any logged
// transaction is rejected on replay, which indicates log corruption.
func (l *Ledger) Replay(fromTx int) (*Ledger, error) {
	l.mu.RLock()
	if l.cfg.NoLog {
		l.mu.RUnlock()
		return nil, &LogUnavailableError{Operation: "Replay"}
	}
	logCopy := make([]Transaction, len(l.log))
	copy(logCopy, l.log)
	name := l.name
	cfg := l.cfg
	cfg.FastMode = true
	units := make([]*Unit, 0, len(l.units))
	for _, u := range l.units {
		units = append(units, u)
	}
	wallets := make([]string, 0, len(l.wallets))
	for w := range l.wallets {
		wallets = append(wallets, w)
	}
	l.mu.RUnlock()

	if fromTx < 0 {
		fromTx = 0
	}
	if fromTx > len(logCopy) {
		fromTx = len(logCopy)
	}
	logCopy = logCopy[fromTx:]

	var start time.Time
	if len(logCopy) > 0 {
		start = logCopy[0].Timestamp
	}
	fresh := New(name, start, cfg)

	for _, u := range units {
		if err := fresh.RegisterUnit(u.replayDescriptor()); err != nil {
			return nil, err
		}
	}
	for _, w := range wallets {
		fresh.RegisterWallet(w)
	}
	fresh.RegisterWallet(SystemWallet)

	for _, tx := range logCopy {
		if err := fresh.AdvanceTime(tx.Timestamp); err != nil {
			return nil, &ReplayFailureError{TxID: tx.TxID}
		}
		replayed := Transaction{
			TxID:        tx.TxID,
			LedgerName:  tx.LedgerName,
			Timestamp:   tx.Timestamp,
			Moves:       tx.Moves,
			StateDeltas: tx.StateDeltas,
		}
		_, result, err := fresh.Execute(replayed)
		if err != nil || result == Rejected {
			return nil, &ReplayFailureError{TxID: tx.TxID}
		}
	}

	return fresh, nil
}
