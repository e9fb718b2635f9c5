package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerView is the read-only capability exposed to pure functions and
// smart contracts. Implementations MUST NOT be mutated through this
// interface; *Ledger satisfies it directly.
type LedgerView interface {
	// CurrentTime returns the ledger's logical clock.
	CurrentTime() time.Time
	// GetBalance returns the wallet's balance of unit, or zero if absent.
	GetBalance(wallet, unit string) (decimal.Decimal, error)
	// GetUnitState returns a deep copy of unit's internal state.
	GetUnitState(unit string) (map[string]any, error)
	// GetPositions returns every holder of unit with |qty| > epsilon.
	GetPositions(unit string) (map[string]decimal.Decimal, error)
	// ListWallets returns every registered wallet id.
	ListWallets() []string
	// ListUnits returns every registered unit symbol, sorted.
	ListUnits() []string
	// GetWalletBalances returns every non-zero balance held by wallet.
	GetWalletBalances(wallet string) (map[string]decimal.Decimal, error)
	// TotalSupply sums a unit's balance across every wallet in
	// deterministic (sorted-wallet) order.
	TotalSupply(unit string) (decimal.Decimal, error)
	// IsRegistered reports whether wallet has been registered.
	IsRegistered(wallet string) bool
	// GetUnit returns the registered descriptor for symbol.
	GetUnit(symbol string) (*Unit, error)
}
