package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RegisterWallet adds wallet to the registry. Idempotent: registering an
// already-known wallet is a no-op.
func (l *Ledger) RegisterWallet(wallet string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registerWalletLocked(wallet)
}

func (l *Ledger) registerWalletLocked(wallet string) {
	if _, ok := l.wallets[wallet]; ok {
		return
	}
	l.wallets[wallet] = struct{}{}
	l.balances[wallet] = make(map[string]decimal.Decimal)
}

// IsRegistered implements LedgerView.
func (l *Ledger) IsRegistered(wallet string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.wallets[wallet]
	return ok
}

// ListWallets implements LedgerView: every registered wallet id, sorted.
func (l *Ledger) ListWallets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.wallets))
	for w := range l.wallets {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// GetBalance implements LedgerView. A wallet with no recorded balance for
// unit holds zero.
func (l *Ledger) GetBalance(wallet, unit string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getBalanceLocked(wallet, unit)
}

func (l *Ledger) getBalanceLocked(wallet, unit string) (decimal.Decimal, error) {
	if _, ok := l.wallets[wallet]; !ok {
		return decimal.Zero, &WalletNotRegisteredError{Wallet: wallet}
	}
	if _, ok := l.units[unit]; !ok {
		return decimal.Zero, &UnitNotRegisteredError{Symbol: unit}
	}
	if bal, ok := l.balances[wallet][unit]; ok {
		return bal, nil
	}
	return decimal.Zero, nil
}

// GetWalletBalances implements LedgerView: every non-dust balance held by
// wallet.
func (l *Ledger) GetWalletBalances(wallet string) (map[string]decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.wallets[wallet]; !ok {
		return nil, &WalletNotRegisteredError{Wallet: wallet}
	}
	out := make(map[string]decimal.Decimal)
	for unit, qty := range l.balances[wallet] {
		if qty.Abs().GreaterThan(QuantityEpsilon) {
			out[unit] = qty
		}
	}
	return out, nil
}

// GetPositions implements LedgerView via the inverted unit->holders index,
// giving O(holders) enumeration rather than a scan of every wallet.
func (l *Ledger) GetPositions(unit string) (map[string]decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.units[unit]; !ok {
		return nil, &UnitNotRegisteredError{Symbol: unit}
	}
	out := make(map[string]decimal.Decimal)
	for wallet, qty := range l.positionsByUnit[unit] {
		out[wallet] = qty
	}
	return out, nil
}

// TotalSupply implements LedgerView, summing holders in sorted-wallet order
// so float-free decimal summation is reproducible.
func (l *Ledger) TotalSupply(unit string) (decimal.Decimal, error) {
	positions, err := l.GetPositions(unit)
	if err != nil {
		return decimal.Zero, err
	}
	wallets := make([]string, 0, len(positions))
	for w := range positions {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	total := decimal.Zero
	for _, w := range wallets {
		total = total.Add(positions[w])
	}
	return total, nil
}

// setBalanceRaw writes wallet's balance of unit directly and maintains the
// inverted unit->holders index, dropping dust-level holders from it. It
// does not register the wallet/unit, enforce bounds, or log anything --
// callers (the executor, SetBalance) are responsible for those concerns.
func (l *Ledger) setBalanceRaw(wallet, unit string, qty decimal.Decimal) {
	if l.balances[wallet] == nil {
		l.balances[wallet] = make(map[string]decimal.Decimal)
	}
	l.balances[wallet][unit] = qty

	if l.positionsByUnit[unit] == nil {
		l.positionsByUnit[unit] = make(map[string]decimal.Decimal)
	}
	if qty.Abs().GreaterThan(QuantityEpsilon) {
		l.positionsByUnit[unit][wallet] = qty
	} else {
		delete(l.positionsByUnit[unit], wallet)
	}
}

// applyMoveRaw debits source and credits dest by quantity, rounding to the
// unit's fixed precision. Callers must already hold l.mu and must have
// validated the move.
func (l *Ledger) applyMoveRaw(m Move) {
	unit := l.units[m.Unit]
	srcBal := l.balances[m.Source][m.Unit]
	dstBal := l.balances[m.Dest][m.Unit]
	newSrc := unit.Round(srcBal.Sub(m.Quantity))
	newDst := unit.Round(dstBal.Add(m.Quantity))
	l.setBalanceRaw(m.Source, m.Unit, newSrc)
	l.setBalanceRaw(m.Dest, m.Unit, newDst)
}

// SetBalance seeds wallet's balance of unit to qty by executing a single
// logged transaction against SystemWallet, so the seed survives Replay and
// conservation (I1) holds unconditionally -- see Open Question 1 in
// SPEC_FULL.md. Both wallet and SystemWallet are auto-registered if
// unknown.
func (l *Ledger) SetBalance(wallet, unit string, qty decimal.Decimal) (Transaction, ExecuteResult, error) {
	l.mu.Lock()
	l.registerWalletLocked(wallet)
	l.registerWalletLocked(SystemWallet)
	current, err := l.getBalanceLocked(wallet, unit)
	l.mu.Unlock()
	if err != nil {
		return Transaction{}, Rejected, err
	}

	delta := qty.Sub(current)
	if delta.Abs().LessThanOrEqual(QuantityEpsilon) {
		return Transaction{}, AlreadyApplied, nil
	}

	var move Move
	if delta.IsPositive() {
		move, err = NewMove(SystemWallet, wallet, unit, delta, "")
	} else {
		move, err = NewMove(wallet, SystemWallet, unit, delta.Neg(), "")
	}
	if err != nil {
		return Transaction{}, Rejected, err
	}
	tx := l.CreateTransaction([]Move{move}, "")
	return l.Execute(tx)
}
