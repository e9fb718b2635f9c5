package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Ledger is the aggregate owning the unit registry, position store, seen-tx
// set, append-only transaction log, current logical time, and
// configuration. Each exported method locks the ledger's own mutex
// internally; callers composing several calls into one logical operation
// should not assume atomicity across calls.
type Ledger struct {
	mu sync.RWMutex

	name        string
	currentTime time.Time
	cfg         Config
	logger      *logrus.Logger

	units   map[string]*Unit
	wallets map[string]struct{}

	balances        map[string]map[string]decimal.Decimal
	positionsByUnit map[string]map[string]decimal.Decimal

	seenTxIDs map[string]struct{}
	log       []Transaction

	scheduler *EventScheduler
}

// New constructs an empty Ledger named name, with its logical clock
// starting at initialTime, under the given configuration.
func New(name string, initialTime time.Time, cfg Config) *Ledger {
	logger := logrus.New()
	if !cfg.Verbose {
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Ledger{
		name:            name,
		currentTime:     initialTime,
		cfg:             cfg,
		logger:          logger,
		units:           make(map[string]*Unit),
		wallets:         make(map[string]struct{}),
		balances:        make(map[string]map[string]decimal.Decimal),
		positionsByUnit: make(map[string]map[string]decimal.Decimal),
		seenTxIDs:       make(map[string]struct{}),
		scheduler:       NewEventScheduler(),
	}
}

// Name returns the ledger's name, folded into every tx_id hash.
func (l *Ledger) Name() string { return l.name }

// GetConfig returns a copy of the ledger's configuration.
func (l *Ledger) GetConfig() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Scheduler returns the ledger's event scheduler, shared by every
// LifecycleEngine built against this ledger.
func (l *Ledger) Scheduler() *EventScheduler { return l.scheduler }

// CurrentTime implements LedgerView.
func (l *Ledger) CurrentTime() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentTime
}

// AdvanceTime moves the logical clock forward. Fails if target precedes
// the current time.
func (l *Ledger) AdvanceTime(t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.Before(l.currentTime) {
		return &BackwardsTimeError{}
	}
	l.currentTime = t
	return nil
}

// ListUnits implements LedgerView: every registered unit symbol, sorted.
func (l *Ledger) ListUnits() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.units))
	for sym := range l.units {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// GetUnit implements LedgerView.
func (l *Ledger) GetUnit(symbol string) (*Unit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getUnitLocked(symbol)
}

func (l *Ledger) getUnitLocked(symbol string) (*Unit, error) {
	u, ok := l.units[symbol]
	if !ok {
		return nil, &UnitNotRegisteredError{Symbol: symbol}
	}
	return u, nil
}

// GetUnitState implements LedgerView.
func (l *Ledger) GetUnitState(symbol string) (map[string]any, error) {
	u, err := l.GetUnit(symbol)
	if err != nil {
		return nil, err
	}
	return u.State(), nil
}

// RegisterUnit adds a new unit descriptor to the registry. Fails if the
// symbol is already taken.
func (l *Ledger) RegisterUnit(u *Unit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.units[u.Symbol]; exists {
		return newValidationError("unit %s already registered", u.Symbol)
	}
	l.units[u.Symbol] = u
	if l.positionsByUnit[u.Symbol] == nil {
		l.positionsByUnit[u.Symbol] = make(map[string]decimal.Decimal)
	}
	if l.cfg.Verbose {
		l.logger.Infof("registered unit %s (%s) [%s]", u.Symbol, u.Name, u.Kind)
	}
	return nil
}

// updateUnitStateLocked merges patch into the unit's existing state.
// Callers must already hold l.mu for writing.
func (l *Ledger) updateUnitStateLocked(symbol string, patch map[string]any) error {
	u, err := l.getUnitLocked(symbol)
	if err != nil {
		return err
	}
	if u.state == nil {
		u.state = map[string]any{}
	}
	for k, v := range patch {
		u.state[k] = v
	}
	return nil
}

// deterministicTxID computes tx_id: a SHA-256 hash of (ledger_name,
// timestamp, canonicalized moves, canonicalized state deltas), truncated
// to 16 hex characters. Callers must already hold l.mu for reading.
func (l *Ledger) deterministicTxID(moves []Move, deltas []StateDelta) string {
	content := fmt.Sprintf("%s:%s:%s|%s", l.currentTime.Format(time.RFC3339Nano), l.name,
		canonicalizeMoves(moves), canonicalizeStateDeltas(deltas))
	return hashHex(content)
}

// IntentID computes the content-only identifier (excludes timestamp and
// ledger name) usable by callers to dedup retried submissions across a
// time advance; it is not consulted internally by Execute.
func (l *Ledger) IntentID(moves []Move, deltas []StateDelta) string {
	return intentID(moves, deltas)
}

// CreateTransaction builds a Transaction stamped with the ledger's current
// time. If txID is empty, a deterministic id is generated from the moves.
func (l *Ledger) CreateTransaction(moves []Move, txID string) Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if txID == "" {
		txID = l.deterministicTxID(moves, nil)
	}
	return Transaction{
		TxID:       txID,
		LedgerName: l.name,
		Timestamp:  l.currentTime,
		Moves:      moves,
	}
}

// Log returns a copy of the append-only transaction log. Empty if NoLog is
// set.
func (l *Ledger) Log() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.log))
	copy(out, l.log)
	return out
}
