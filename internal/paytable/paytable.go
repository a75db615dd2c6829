// Package paytable maps resolved reel outcomes to credit payouts.
//
// The table is data-driven: a symbol→value mapping plus a base multiplier,
// both supplied by configuration. The payout rule is fixed: all reels equal
// pays value × base, anything else pays nothing. New symbols and values are
// added in configuration, never here.
package paytable

import (
	"fmt"

	"github.com/tgslot/game-engine/internal/model"
)

// Table evaluates outcomes against a declared symbol set.
type Table struct {
	values map[model.Symbol]int64
	base   int64
}

// New builds a paytable from the declared symbol enumeration, the per-symbol
// values, and the base multiplier. Every declared symbol must have a value
// and every value must belong to a declared symbol; a mismatch is a
// configuration error.
func New(symbols []model.Symbol, values map[model.Symbol]int64, base int64) (*Table, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("paytable: empty symbol set")
	}
	if base <= 0 {
		return nil, fmt.Errorf("paytable: base multiplier must be positive, got %d", base)
	}

	declared := make(map[model.Symbol]bool, len(symbols))
	for _, s := range symbols {
		declared[s] = true
	}

	for sym := range values {
		if !declared[sym] {
			return nil, fmt.Errorf("paytable: value for unknown symbol %q", sym)
		}
	}
	for _, s := range symbols {
		v, ok := values[s]
		if !ok {
			return nil, fmt.Errorf("paytable: symbol %q has no value", s)
		}
		if v <= 0 {
			return nil, fmt.Errorf("paytable: symbol %q value must be positive, got %d", s, v)
		}
	}

	table := &Table{values: make(map[model.Symbol]int64, len(values)), base: base}
	for sym, v := range values {
		table.values[sym] = v
	}
	return table, nil
}

// Evaluate returns the payout for an outcome: value × base when every reel
// resolved to the same symbol, zero otherwise.
func (t *Table) Evaluate(outcome model.ReelOutcome) int64 {
	if !outcome.AllEqual() {
		return 0
	}
	return t.values[outcome[0]] * t.base
}

// Value returns the configured value of a symbol (0 for unknown symbols).
func (t *Table) Value(sym model.Symbol) int64 {
	return t.values[sym]
}

// Base returns the base multiplier.
func (t *Table) Base() int64 {
	return t.base
}
