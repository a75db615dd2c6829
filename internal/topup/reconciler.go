// Package topup converts wallet-payment confirmations into ledger credits,
// exactly once per transaction id.
//
// The reconciler never talks to a wallet network. The payment collaborator
// validates transactions out-of-band and hands in TopUpEvents; delivery is
// at-least-once and may be out of order, so everything here is idempotent.
package topup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tgslot/game-engine/internal/ledger"
	"github.com/tgslot/game-engine/internal/metrics"
	"github.com/tgslot/game-engine/internal/model"
)

// ErrMalformedEvent marks a confirmation that cannot be credited: missing
// transaction id, missing player, or non-positive credits. Logged and
// discarded; never crashes the reconciler or touches any balance.
var ErrMalformedEvent = errors.New("topup: malformed event")

// Result of reconciling one confirmation.
type Result struct {
	Applied bool  // false when the transaction id was already credited
	Balance int64 // post-operation balance
}

// Reconciler applies payment confirmations to the ledger.
type Reconciler struct {
	ledger *ledger.Ledger
}

// NewReconciler creates a reconciler over the given ledger.
func NewReconciler(l *ledger.Ledger) *Reconciler {
	return &Reconciler{ledger: l}
}

// OnPaymentConfirmed validates and applies one confirmation. Duplicate
// delivery returns Applied=false with the balance untouched.
func (r *Reconciler) OnPaymentConfirmed(ctx context.Context, evt model.TopUpEvent) (Result, error) {
	if err := validate(evt); err != nil {
		slog.Warn("top-up discarded",
			"player", evt.PlayerID,
			"tx", evt.TransactionID,
			"credits", evt.CreditsGranted,
			"err", err,
		)
		metrics.TopUpsTotal.WithLabelValues("malformed").Inc()
		return Result{}, err
	}

	balance, applied, err := r.ledger.ApplyTopUp(ctx, evt.PlayerID, evt.TransactionID, evt.CreditsGranted)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile top-up %s: %w", evt.TransactionID, err)
	}

	if applied {
		slog.Info("top-up credited",
			"player", evt.PlayerID,
			"tx", evt.TransactionID,
			"credits", evt.CreditsGranted,
			"ton", evt.SourceAmount.String(),
			"balance", balance,
		)
		metrics.TopUpsTotal.WithLabelValues("applied").Inc()
	} else {
		// At-least-once delivery: a repeat is expected, not an error.
		slog.Info("top-up already applied", "player", evt.PlayerID, "tx", evt.TransactionID)
		metrics.TopUpsTotal.WithLabelValues("duplicate").Inc()
	}
	return Result{Applied: applied, Balance: balance}, nil
}

func validate(evt model.TopUpEvent) error {
	if evt.TransactionID == "" {
		return fmt.Errorf("%w: empty transaction id", ErrMalformedEvent)
	}
	if evt.PlayerID == "" {
		return fmt.Errorf("%w: empty player id", ErrMalformedEvent)
	}
	if evt.CreditsGranted <= 0 {
		return fmt.Errorf("%w: credits must be positive, got %d", ErrMalformedEvent, evt.CreditsGranted)
	}
	return nil
}
