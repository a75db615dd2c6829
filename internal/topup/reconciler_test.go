package topup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tgslot/game-engine/internal/ledger"
	"github.com/tgslot/game-engine/internal/model"
	"github.com/tgslot/game-engine/internal/store"
	"github.com/tgslot/game-engine/internal/topup"
)

func newReconciler(t *testing.T, initial int64) (*topup.Reconciler, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(store.NewMemoryStore(), initial)
	return topup.NewReconciler(l), l
}

func confirmation(player, tx string, credits int64) model.TopUpEvent {
	return model.TopUpEvent{
		PlayerID:       player,
		TransactionID:  tx,
		CreditsGranted: credits,
		SourceAmount:   decimal.NewFromFloat(0.45),
	}
}

func TestOnPaymentConfirmed_Applies(t *testing.T) {
	r, _ := newReconciler(t, 100)

	res, err := r.OnPaymentConfirmed(context.Background(), confirmation("player-1", "tx-1", 500))
	if err != nil {
		t.Fatalf("OnPaymentConfirmed failed: %v", err)
	}
	if !res.Applied {
		t.Error("first delivery must apply")
	}
	if res.Balance != 600 {
		t.Errorf("balance = %d, want 600", res.Balance)
	}
}

func TestOnPaymentConfirmed_DuplicateDelivery(t *testing.T) {
	r, l := newReconciler(t, 100)
	ctx := context.Background()
	evt := confirmation("player-1", "tx-1", 500)

	if _, err := r.OnPaymentConfirmed(ctx, evt); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	res, err := r.OnPaymentConfirmed(ctx, evt)
	if err != nil {
		t.Fatalf("redelivery must not error: %v", err)
	}
	if res.Applied {
		t.Error("redelivery must not apply")
	}
	if res.Balance != 600 {
		t.Errorf("balance after redelivery = %d, want 600", res.Balance)
	}

	balance, err := l.Balance(ctx, "player-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 600 {
		t.Errorf("ledger balance = %d, want 600", balance)
	}
}

func TestOnPaymentConfirmed_Malformed(t *testing.T) {
	r, l := newReconciler(t, 100)
	ctx := context.Background()

	tests := []struct {
		name string
		evt  model.TopUpEvent
	}{
		{"missing transaction id", confirmation("player-1", "", 500)},
		{"missing player id", confirmation("", "tx-1", 500)},
		{"zero credits", confirmation("player-1", "tx-1", 0)},
		{"negative credits", confirmation("player-1", "tx-1", -500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.OnPaymentConfirmed(ctx, tt.evt)
			if !errors.Is(err, topup.ErrMalformedEvent) {
				t.Errorf("err = %v, want ErrMalformedEvent", err)
			}
		})
	}

	// No malformed event touched the balance.
	balance, err := l.Balance(ctx, "player-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance = %d, want 100 untouched", balance)
	}
}

func TestOnPaymentConfirmed_IndependentTransactions(t *testing.T) {
	r, _ := newReconciler(t, 0)
	ctx := context.Background()

	if _, err := r.OnPaymentConfirmed(ctx, confirmation("player-1", "tx-1", 100)); err != nil {
		t.Fatalf("tx-1 failed: %v", err)
	}
	res, err := r.OnPaymentConfirmed(ctx, confirmation("player-1", "tx-2", 1000))
	if err != nil {
		t.Fatalf("tx-2 failed: %v", err)
	}
	if !res.Applied || res.Balance != 1100 {
		t.Errorf("(applied, balance) = (%v, %d), want (true, 1100)", res.Applied, res.Balance)
	}
}
