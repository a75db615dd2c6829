// Package spin resolves bets into outcomes.
//
// The resolver is pure with respect to ledger state: it draws symbols,
// evaluates the paytable, and returns an immutable SpinResult. Each spin is
// resolved exactly once — the reveal layer sequences how the result becomes
// visible but can never produce a different one.
package spin

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tgslot/game-engine/internal/model"
	"github.com/tgslot/game-engine/internal/paytable"
	"github.com/tgslot/game-engine/internal/rng"
)

// Resolver draws outcomes for a fixed reel count and symbol set.
type Resolver struct {
	src       rng.Source
	table     *paytable.Table
	symbols   []model.Symbol
	reelCount int
}

// NewResolver builds a resolver. reelCount must be positive and the symbol
// set non-empty; both come from validated configuration.
func NewResolver(src rng.Source, table *paytable.Table, symbols []model.Symbol, reelCount int) (*Resolver, error) {
	if reelCount <= 0 {
		return nil, fmt.Errorf("spin: reel count must be positive, got %d", reelCount)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("spin: empty symbol set")
	}
	return &Resolver{
		src:       src,
		table:     table,
		symbols:   append([]model.Symbol(nil), symbols...),
		reelCount: reelCount,
	}, nil
}

// ReelCount returns the number of reels a resolved outcome spans.
func (r *Resolver) ReelCount() int {
	return r.reelCount
}

// Resolve draws one independent symbol per reel and evaluates the payout.
// It does not touch any balance; charging the bet and applying the payout
// are the ledger's business. spinID ties the result to the already-debited
// bet; pass "" to mint a fresh id.
func (r *Resolver) Resolve(spinID, playerID string, betCost int64) (*model.SpinResult, error) {
	if betCost <= 0 {
		return nil, fmt.Errorf("spin: bet cost must be positive, got %d", betCost)
	}
	if spinID == "" {
		spinID = uuid.New().String()
	}

	outcome := make(model.ReelOutcome, r.reelCount)
	for i := range outcome {
		outcome[i] = r.symbols[r.src.Next(len(r.symbols))]
	}

	payout := r.table.Evaluate(outcome)
	return &model.SpinResult{
		ID:         spinID,
		PlayerID:   playerID,
		Outcome:    outcome,
		BetCost:    betCost,
		Payout:     payout,
		IsWin:      payout > 0,
		ResolvedAt: time.Now().UTC(),
	}, nil
}
