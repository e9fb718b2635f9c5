// Package instruments provides representative smart-contract
// implementations for the instrument kinds a Ledger can register: each
// contract is a pure function (view, symbol, time, prices) that reads a
// unit's state and positions and proposes a PendingTransaction for the
// lifecycle engine to execute. Contracts never mutate anything directly;
// every state change flows back through the ledger's executor.
package instruments

import (
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

func getDecimal(state map[string]any, key string) decimal.Decimal {
	v, ok := state[key]
	if !ok {
		return decimal.Zero
	}
	switch d := v.(type) {
	case decimal.Decimal:
		return d
	case int:
		return decimal.NewFromInt(int64(d))
	case float64:
		return decimal.NewFromFloat(d)
	default:
		return decimal.Zero
	}
}

func getString(state map[string]any, key string) string {
	s, _ := state[key].(string)
	return s
}

func getBool(state map[string]any, key string) bool {
	b, _ := state[key].(bool)
	return b
}

func getTime(state map[string]any, key string) time.Time {
	t, _ := state[key].(time.Time)
	return t
}

func cloneState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// getStringSet keys a set as a map for membership state fields (e.g.
// processed-dividend tracking), preserving insertion-independent lookup.
func getStringSet(state map[string]any, key string) map[string]struct{} {
	raw, _ := state[key].(map[string]struct{})
	if raw == nil {
		return map[string]struct{}{}
	}
	out := make(map[string]struct{}, len(raw))
	for k := range raw {
		out[k] = struct{}{}
	}
	return out
}

func single(unit string, newState map[string]any) map[string]map[string]any {
	return map[string]map[string]any{unit: newState}
}
