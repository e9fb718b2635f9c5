package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy. Each kind is a distinct, comparable type so callers can
// discriminate with errors.As. Registration, timestamp, transfer rule, and
// balance-bound failures are reported by Execute as a Rejected result
// together with the error value that names the failure.

// UnitNotRegisteredError is returned when a move references an unknown unit
// symbol. This check is never bypassed, even in FastMode.
type UnitNotRegisteredError struct{ Symbol string }

func (e *UnitNotRegisteredError) Error() string {
	return fmt.Sprintf("ledgerforge: unit not registered: %s", e.Symbol)
}

// WalletNotRegisteredError is returned when a move references an unknown
// wallet. This check is never bypassed, even in FastMode.
type WalletNotRegisteredError struct{ Wallet string }

func (e *WalletNotRegisteredError) Error() string {
	return fmt.Sprintf("ledgerforge: wallet not registered: %s", e.Wallet)
}

// FutureTimestampError is returned when a transaction's timestamp is after
// the ledger's current time.
type FutureTimestampError struct{}

func (e *FutureTimestampError) Error() string {
	return "ledgerforge: transaction timestamp is in the future"
}

// TransferRuleViolationError is returned when a unit's transfer rule
// rejects a move.
type TransferRuleViolationError struct{ Detail string }

func (e *TransferRuleViolationError) Error() string {
	return fmt.Sprintf("ledgerforge: transfer rule violation: %s", e.Detail)
}

// BalanceConstraintViolationError is returned when a projected balance
// would fall outside a unit's [min_balance, max_balance] bounds.
type BalanceConstraintViolationError struct {
	Wallet    string
	Unit      string
	Projected decimal.Decimal
	Bound     decimal.Decimal
}

func (e *BalanceConstraintViolationError) Error() string {
	return fmt.Sprintf("ledgerforge: %s %s: projected %s violates bound %s",
		e.Wallet, e.Unit, e.Projected, e.Bound)
}

// InsufficientFundsError specializes BalanceConstraintViolationError for
// cash-like units going below their minimum balance.
type InsufficientFundsError struct {
	Wallet string
	Unit   string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledgerforge: insufficient funds: %s has insufficient %s", e.Wallet, e.Unit)
}

// LogUnavailableError is returned by CloneAt/Replay when NoLog is set.
type LogUnavailableError struct{ Operation string }

func (e *LogUnavailableError) Error() string {
	return fmt.Sprintf("ledgerforge: %s unavailable: no_log=true", e.Operation)
}

// BackwardsTimeError is returned when AdvanceTime targets a time before the
// ledger's current time.
type BackwardsTimeError struct{}

func (e *BackwardsTimeError) Error() string {
	return "ledgerforge: cannot advance time backwards"
}

// ReplayFailureError is returned when a replayed transaction is rejected,
// indicating log corruption.
type ReplayFailureError struct{ TxID string }

func (e *ReplayFailureError) Error() string {
	return fmt.Sprintf("ledgerforge: replay failed at tx %s: log corruption", e.TxID)
}

// UnknownActionError is returned by LifecycleEngine.Step when a due Event's
// Action has no registered handler.
type UnknownActionError struct{ Action string }

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("ledgerforge: unknown scheduled event action: %s", e.Action)
}

// validationError is a lightweight internal error for construction-time
// invariant violations (Move/Transaction/Unit constructors).
type validationError struct{ msg string }

func (e *validationError) Error() string { return "ledgerforge: " + e.msg }

func newValidationError(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// LedgerError is a generic fatal ledger-integrity error (distinct from the
// recoverable ExecuteResult.Rejected outcome), used for programming/data
// errors such as an unreachable unit during CloneAt unwinding.
type LedgerError struct{ msg string }

func (e *LedgerError) Error() string { return "ledgerforge: " + e.msg }

func newLedgerError(format string, args ...any) error {
	return &LedgerError{msg: fmt.Sprintf(format, args...)}
}
