package core

// validate runs the four-step check sequence against a proposed
// transaction. Step 1 (registration) runs unconditionally, even in
// FastMode; steps 2-4 (timestamp, transfer rule, balance bounds) are
// skipped when cfg.FastMode is set. Callers must already hold l.mu for
// reading.
func (l *Ledger) validate(tx Transaction) error {
	if err := l.checkRegistrationLocked(tx); err != nil {
		return err
	}
	if l.cfg.FastMode {
		return nil
	}
	if err := l.checkTimestampLocked(tx); err != nil {
		return err
	}
	if err := l.checkTransferRulesLocked(tx); err != nil {
		return err
	}
	if err := l.checkBalanceBoundsLocked(tx); err != nil {
		return err
	}
	return nil
}

// checkRegistrationLocked verifies every move references a registered unit
// and registered source/dest wallets.
func (l *Ledger) checkRegistrationLocked(tx Transaction) error {
	for _, m := range tx.Moves {
		if _, ok := l.units[m.Unit]; !ok {
			return &UnitNotRegisteredError{Symbol: m.Unit}
		}
		if _, ok := l.wallets[m.Source]; !ok {
			return &WalletNotRegisteredError{Wallet: m.Source}
		}
		if _, ok := l.wallets[m.Dest]; !ok {
			return &WalletNotRegisteredError{Wallet: m.Dest}
		}
	}
	for _, d := range tx.StateDeltas {
		if _, ok := l.units[d.Unit]; !ok {
			return &UnitNotRegisteredError{Symbol: d.Unit}
		}
	}
	return nil
}

// checkTimestampLocked rejects a transaction stamped after the ledger's
// current time.
func (l *Ledger) checkTimestampLocked(tx Transaction) error {
	if tx.Timestamp.After(l.currentTime) {
		return &FutureTimestampError{}
	}
	return nil
}

// checkTransferRulesLocked runs each move's unit's TransferRule, when one
// is registered.
func (l *Ledger) checkTransferRulesLocked(tx Transaction) error {
	for _, m := range tx.Moves {
		unit := l.units[m.Unit]
		if unit.TransferRule == nil {
			continue
		}
		if err := unit.TransferRule(l, m); err != nil {
			return err
		}
	}
	return nil
}

// checkBalanceBoundsLocked projects every affected (wallet, unit) balance
// and rejects the transaction if any projected balance would fall outside
// [MinBalance, MaxBalance]. SystemWallet is exempt from bounds checking.
func (l *Ledger) checkBalanceBoundsLocked(tx Transaction) error {
	projected := make(map[string]map[string]struct{})
	touch := func(wallet, unit string) {
		if projected[wallet] == nil {
			projected[wallet] = make(map[string]struct{})
		}
		projected[wallet][unit] = struct{}{}
	}
	for _, m := range tx.Moves {
		touch(m.Source, m.Unit)
		touch(m.Dest, m.Unit)
	}

	for wallet, units := range projected {
		if wallet == SystemWallet {
			continue
		}
		for unit := range units {
			newBal := l.balances[wallet][unit]
			for _, m := range tx.Moves {
				if m.Unit != unit {
					continue
				}
				if m.Source == wallet {
					newBal = newBal.Sub(m.Quantity)
				}
				if m.Dest == wallet {
					newBal = newBal.Add(m.Quantity)
				}
			}
			u := l.units[unit]
			newBal = u.Round(newBal)
			if newBal.LessThan(u.MinBalance) {
				if u.Kind == KindCash {
					return &InsufficientFundsError{Wallet: wallet, Unit: unit}
				}
				return &BalanceConstraintViolationError{Wallet: wallet, Unit: unit, Projected: newBal, Bound: u.MinBalance}
			}
			if newBal.GreaterThan(u.MaxBalance) {
				return &BalanceConstraintViolationError{Wallet: wallet, Unit: unit, Projected: newBal, Bound: u.MaxBalance}
			}
		}
	}
	return nil
}
