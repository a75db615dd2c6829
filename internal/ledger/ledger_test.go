package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/tgslot/game-engine/internal/ledger"
	"github.com/tgslot/game-engine/internal/model"
	"github.com/tgslot/game-engine/internal/store"
)

func newLedger(t *testing.T, initial int64) *ledger.Ledger {
	t.Helper()
	return ledger.New(store.NewMemoryStore(), initial)
}

func TestBalance_ProvisionsAccount(t *testing.T) {
	l := newLedger(t, 1000)

	balance, err := l.Balance(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 1000 {
		t.Errorf("new account balance = %d, want 1000", balance)
	}
}

func TestTryDebit_Sufficient(t *testing.T) {
	l := newLedger(t, 100)
	ctx := context.Background()

	balance, err := l.TryDebit(ctx, "player-1", 10, "spin-1")
	if err != nil {
		t.Fatalf("TryDebit failed: %v", err)
	}
	if balance != 90 {
		t.Errorf("balance after debit = %d, want 90", balance)
	}
}

func TestTryDebit_Insufficient(t *testing.T) {
	l := newLedger(t, 5)
	ctx := context.Background()

	_, err := l.TryDebit(ctx, "player-1", 10, "spin-1")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	balance, err := l.Balance(ctx, "player-1")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 5 {
		t.Errorf("balance after rejected debit = %d, want 5 unchanged", balance)
	}
}

func TestTryDebit_ExactBalance(t *testing.T) {
	l := newLedger(t, 10)

	balance, err := l.TryDebit(context.Background(), "player-1", 10, "spin-1")
	if err != nil {
		t.Fatalf("debit of exact balance must succeed: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestSpinSettlement_WinScenario(t *testing.T) {
	// Balance 100, bet 10, winning payout 100: debit first, payout after.
	l := newLedger(t, 100)
	ctx := context.Background()

	mid, err := l.TryDebit(ctx, "player-1", 10, "spin-1")
	if err != nil {
		t.Fatalf("TryDebit failed: %v", err)
	}
	if mid != 90 {
		t.Errorf("balance after bet = %d, want 90", mid)
	}

	final, err := l.Credit(ctx, "player-1", 100, model.EntryPayout, "spin-1")
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if final != 190 {
		t.Errorf("balance after payout = %d, want 190", final)
	}
}

func TestApplyTopUp_ExactlyOnce(t *testing.T) {
	l := newLedger(t, 100)
	ctx := context.Background()

	balance, applied, err := l.ApplyTopUp(ctx, "player-1", "tx-1", 500)
	if err != nil {
		t.Fatalf("ApplyTopUp failed: %v", err)
	}
	if !applied {
		t.Error("first delivery must apply")
	}
	if balance != 600 {
		t.Errorf("balance = %d, want 600", balance)
	}

	// Redelivery of the same transaction id is a silent no-op.
	balance, applied, err = l.ApplyTopUp(ctx, "player-1", "tx-1", 500)
	if err != nil {
		t.Fatalf("ApplyTopUp redelivery failed: %v", err)
	}
	if applied {
		t.Error("redelivery must not apply")
	}
	if balance != 600 {
		t.Errorf("balance after redelivery = %d, want 600 unchanged", balance)
	}

	// A different transaction id applies normally.
	balance, applied, err = l.ApplyTopUp(ctx, "player-1", "tx-2", 100)
	if err != nil {
		t.Fatalf("ApplyTopUp failed: %v", err)
	}
	if !applied || balance != 700 {
		t.Errorf("(balance, applied) = (%d, %v), want (700, true)", balance, applied)
	}
}

func TestInvalidAmounts(t *testing.T) {
	l := newLedger(t, 100)
	ctx := context.Background()

	if _, err := l.TryDebit(ctx, "player-1", 0, "r"); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("TryDebit(0) err = %v, want ErrInvalidAmount", err)
	}
	if _, err := l.Credit(ctx, "player-1", -1, model.EntryPayout, "r"); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("Credit(-1) err = %v, want ErrInvalidAmount", err)
	}
	if _, _, err := l.ApplyTopUp(ctx, "player-1", "tx", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("ApplyTopUp(0) err = %v, want ErrInvalidAmount", err)
	}
}

func TestBeginSpin_SingleInFlight(t *testing.T) {
	l := newLedger(t, 100)

	if err := l.BeginSpin("player-1"); err != nil {
		t.Fatalf("BeginSpin failed: %v", err)
	}
	if err := l.BeginSpin("player-1"); !errors.Is(err, ledger.ErrSpinInFlight) {
		t.Errorf("second BeginSpin err = %v, want ErrSpinInFlight", err)
	}

	// Other players are unaffected.
	if err := l.BeginSpin("player-2"); err != nil {
		t.Errorf("BeginSpin for other player failed: %v", err)
	}

	l.EndSpin("player-1")
	if err := l.BeginSpin("player-1"); err != nil {
		t.Errorf("BeginSpin after EndSpin failed: %v", err)
	}
}

func TestObservers_SeePostOperationBalances(t *testing.T) {
	l := newLedger(t, 100)
	ctx := context.Background()

	var updates []ledger.BalanceUpdate
	l.OnBalanceChange(func(u ledger.BalanceUpdate) {
		updates = append(updates, u)
	})

	if _, err := l.TryDebit(ctx, "player-1", 10, "spin-1"); err != nil {
		t.Fatalf("TryDebit failed: %v", err)
	}
	if _, err := l.Credit(ctx, "player-1", 100, model.EntryPayout, "spin-1"); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if _, _, err := l.ApplyTopUp(ctx, "player-1", "tx-1", 500); err != nil {
		t.Fatalf("ApplyTopUp failed: %v", err)
	}

	want := []ledger.BalanceUpdate{
		{PlayerID: "player-1", Balance: 90, Delta: -10, Kind: model.EntryBet, RefID: "spin-1"},
		{PlayerID: "player-1", Balance: 190, Delta: 100, Kind: model.EntryPayout, RefID: "spin-1"},
		{PlayerID: "player-1", Balance: 690, Delta: 500, Kind: model.EntryTopUp, RefID: "tx-1"},
	}
	if len(updates) != len(want) {
		t.Fatalf("got %d updates, want %d", len(updates), len(want))
	}
	for i, u := range updates {
		if u != want[i] {
			t.Errorf("update %d = %+v, want %+v", i, u, want[i])
		}
	}
}

func TestHistory_RecordsMutations(t *testing.T) {
	l := newLedger(t, 100)
	ctx := context.Background()

	if _, err := l.TryDebit(ctx, "player-1", 10, "spin-1"); err != nil {
		t.Fatalf("TryDebit failed: %v", err)
	}
	if _, err := l.Credit(ctx, "player-1", 100, model.EntryPayout, "spin-1"); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	entries, err := l.History(ctx, "player-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Kind != model.EntryBet || entries[0].Amount != -10 || entries[0].Balance != 90 {
		t.Errorf("entry 0 = %+v, want bet of -10 leaving 90", entries[0])
	}
	if entries[1].Kind != model.EntryPayout || entries[1].Amount != 100 || entries[1].Balance != 190 {
		t.Errorf("entry 1 = %+v, want payout of 100 leaving 190", entries[1])
	}
}

// Property: no interleaving of debits, credits, and top-ups can drive a
// balance negative, and a model of the expected balance always agrees.
func TestLedger_BalanceNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		initial := rapid.Int64Range(0, 200).Draw(t, "initial")
		l := ledger.New(store.NewMemoryStore(), initial)

		expected := initial
		seenTx := make(map[string]bool)
		ops := rapid.IntRange(1, 60).Draw(t, "ops")

		for i := 0; i < ops; i++ {
			amount := rapid.Int64Range(1, 150).Draw(t, "amount")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				balance, err := l.TryDebit(ctx, "p", amount, fmt.Sprintf("spin-%d", i))
				switch {
				case err == nil:
					if expected < amount {
						t.Fatalf("debit of %d accepted with balance %d", amount, expected)
					}
					expected -= amount
					if balance != expected {
						t.Fatalf("debit returned %d, model says %d", balance, expected)
					}
				case errors.Is(err, ledger.ErrInsufficientBalance):
					if expected >= amount {
						t.Fatalf("debit of %d rejected with balance %d", amount, expected)
					}
				default:
					t.Fatalf("TryDebit failed: %v", err)
				}
			case 1:
				balance, err := l.Credit(ctx, "p", amount, model.EntryPayout, fmt.Sprintf("spin-%d", i))
				if err != nil {
					t.Fatalf("Credit failed: %v", err)
				}
				expected += amount
				if balance != expected {
					t.Fatalf("credit returned %d, model says %d", balance, expected)
				}
			case 2:
				tx := fmt.Sprintf("tx-%d", rapid.IntRange(0, 5).Draw(t, "tx"))
				balance, applied, err := l.ApplyTopUp(ctx, "p", tx, amount)
				if err != nil {
					t.Fatalf("ApplyTopUp failed: %v", err)
				}
				if applied == seenTx[tx] {
					t.Fatalf("tx %s applied=%v, already seen=%v", tx, applied, seenTx[tx])
				}
				if applied {
					seenTx[tx] = true
					expected += amount
				}
				if balance != expected {
					t.Fatalf("top-up returned %d, model says %d", balance, expected)
				}
			}

			balance, err := l.Balance(ctx, "p")
			if err != nil {
				t.Fatalf("Balance failed: %v", err)
			}
			if balance < 0 {
				t.Fatalf("balance went negative: %d", balance)
			}
			if balance != expected {
				t.Fatalf("balance = %d, model says %d", balance, expected)
			}
		}
	})
}

// Property: however many times a confirmation is redelivered, the credit
// lands exactly once.
func TestLedger_TopUpIdempotence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		l := ledger.New(store.NewMemoryStore(), 100)

		credits := rapid.Int64Range(1, 10000).Draw(t, "credits")
		deliveries := rapid.IntRange(1, 10).Draw(t, "deliveries")

		var appliedCount int
		for i := 0; i < deliveries; i++ {
			_, applied, err := l.ApplyTopUp(ctx, "p", "tx-1", credits)
			if err != nil {
				t.Fatalf("ApplyTopUp failed: %v", err)
			}
			if applied {
				appliedCount++
			}
		}

		if appliedCount != 1 {
			t.Fatalf("credit applied %d times over %d deliveries", appliedCount, deliveries)
		}
		balance, err := l.Balance(ctx, "p")
		if err != nil {
			t.Fatalf("Balance failed: %v", err)
		}
		if want := 100 + credits; balance != want {
			t.Fatalf("balance = %d, want %d", balance, want)
		}
	})
}
