// Package core implements an in-process, deterministic double-entry
// financial ledger: an atomic transactional state machine, a time-driven
// lifecycle engine, and the protocol that pluggable smart contracts consume.
package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// SystemWallet is the reserved wallet identifier exempt from per-unit
// min/max balance bounds. It represents the mint/sink for issuance and
// redemption, and is the contra side for every seeded balance (see
// SetBalance).
const SystemWallet = "system"

// QuantityEpsilon is the dust threshold below which a balance is treated as
// zero for the purposes of the inverted unit->holders index.
var QuantityEpsilon = decimal.New(1, -12)

// ExecuteResult is the terminal state of a submitted transaction.
type ExecuteResult int

const (
	// Applied means every move and state delta in the transaction was
	// committed and, if logging is enabled, appended to the log.
	Applied ExecuteResult = iota
	// AlreadyApplied means a transaction with the same tx_id had already
	// been committed; no observable side effect occurred.
	AlreadyApplied
	// Rejected means validation failed; no observable side effect occurred.
	Rejected
)

func (r ExecuteResult) String() string {
	switch r {
	case Applied:
		return "APPLIED"
	case AlreadyApplied:
		return "ALREADY_APPLIED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Move is an immutable signed transfer of a quantity of a unit from one
// wallet to another.
type Move struct {
	Source     string
	Dest       string
	Unit       string
	Quantity   decimal.Decimal
	ContractID string
	Metadata   map[string]string
}

// NewMove constructs a Move, enforcing that source and dest differ and
// that the quantity is finite and exceeds the dust threshold.
func NewMove(source, dest, unit string, quantity decimal.Decimal, contractID string) (Move, error) {
	if source == dest {
		return Move{}, newValidationError("move source and dest must differ, got %q", source)
	}
	f, _ := quantity.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Move{}, newValidationError("move quantity must be finite, got %s", quantity)
	}
	if quantity.Abs().LessThanOrEqual(QuantityEpsilon) {
		return Move{}, newValidationError("move quantity must exceed dust epsilon, got %s", quantity)
	}
	return Move{
		Source:     source,
		Dest:       dest,
		Unit:       unit,
		Quantity:   quantity,
		ContractID: contractID,
	}, nil
}

// StateDelta captures a unit's internal state immediately before and after
// a transaction, as full deep snapshots, so the log is self-contained for
// reversal.
type StateDelta struct {
	Unit     string
	OldState map[string]any
	NewState map[string]any
}

// Transaction is an immutable, atomically-applied bundle of moves and state
// deltas.
type Transaction struct {
	TxID          string
	LedgerName    string
	Timestamp     time.Time
	ExecutionTime time.Time
	Moves         []Move
	StateDeltas   []StateDelta
}

// IsEmpty reports whether the transaction carries no moves and no state
// deltas.
func (tx Transaction) IsEmpty() bool {
	return len(tx.Moves) == 0 && len(tx.StateDeltas) == 0
}

// ContractIDs returns the distinct, non-empty ContractID values carried by
// the transaction's moves, useful for audit display.
func (tx Transaction) ContractIDs() []string {
	seen := make(map[string]struct{}, len(tx.Moves))
	var ids []string
	for _, m := range tx.Moves {
		if m.ContractID == "" {
			continue
		}
		if _, ok := seen[m.ContractID]; ok {
			continue
		}
		seen[m.ContractID] = struct{}{}
		ids = append(ids, m.ContractID)
	}
	return ids
}

// PendingTransaction is the pure-function return shape used by smart
// contracts and event handlers: zero or more proposed moves, a per-unit
// state patch, and optionally new unit descriptors those moves reference
// (e.g. a dividend contract minting one freshly-registered DEFERRED_CASH
// entitlement unit per holder) -- registered atomically with the rest of
// the pending transaction, before its moves are validated.
type PendingTransaction struct {
	Moves        []Move
	StateUpdates map[string]map[string]any
	NewUnits     []*Unit
}

// IsEmpty reports whether the pending transaction would be a no-op.
func (p PendingTransaction) IsEmpty() bool {
	return len(p.Moves) == 0 && len(p.StateUpdates) == 0 && len(p.NewUnits) == 0
}

// EmptyPendingTransaction is the canonical no-op result.
func EmptyPendingTransaction() PendingTransaction {
	return PendingTransaction{}
}

// Config holds per-ledger performance/behavior switches.
type Config struct {
	// Verbose logs one line per execute()/execute_contract() call.
	Verbose bool
	// FastMode skips steps 2-4 of validation (timestamp, transfer rule,
	// balance bounds). Registration checks are never skipped. Unsafe for
	// untrusted input.
	FastMode bool
	// NoLog disables the append-only transaction log. Disables CloneAt and
	// Replay, but Clone remains available.
	NoLog bool
}
