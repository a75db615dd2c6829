// Package ledger holds the authoritative credit balances.
//
// Every mutation — bet debits, payout credits, top-up credits — runs under
// one mutex, so check-and-apply is indivisible and the balance can never be
// observed negative or half-updated. The spin pipeline additionally holds a
// per-player in-flight reservation: a second spin request while one is
// unresolved is rejected, not queued.
//
// The ledger lives server-side on purpose: the presentation layer only
// observes balances and requests operations, it can never mutate them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgslot/game-engine/internal/model"
	"github.com/tgslot/game-engine/internal/store"
)

var (
	// ErrInsufficientBalance rejects a debit that would take the balance
	// below zero. Recoverable; nothing changes.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrSpinInFlight rejects a spin while another is unresolved for the
	// same player. The caller must not retry without user action.
	ErrSpinInFlight = errors.New("ledger: spin already in flight")

	// ErrInvalidAmount rejects non-positive debit/credit amounts.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// BalanceUpdate notifies observers of a completed mutation. Balance is the
// post-operation value — observers never see intermediate state.
type BalanceUpdate struct {
	PlayerID string
	Balance  int64
	Delta    int64
	Kind     string // "bet", "payout", "topup"
	RefID    string // spin id or top-up transaction id
}

// Ledger serializes all balance mutations over a Store.
type Ledger struct {
	store          store.Store
	initialBalance int64

	mu        sync.Mutex
	inFlight  map[string]bool
	observers []func(BalanceUpdate)
}

// New creates a ledger. Unknown players are provisioned with
// initialBalance on first contact.
func New(st store.Store, initialBalance int64) *Ledger {
	return &Ledger{
		store:          st,
		initialBalance: initialBalance,
		inFlight:       make(map[string]bool),
	}
}

// OnBalanceChange registers an observer, called synchronously after every
// successful mutation with the post-operation balance. Register observers
// before serving traffic; they must not block.
func (l *Ledger) OnBalanceChange(fn func(BalanceUpdate)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Balance returns the player's current balance, provisioning the account
// if this is the first contact.
func (l *Ledger) Balance(ctx context.Context, playerID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, err := l.loadOrCreate(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// History returns the player's audit entries oldest-first.
func (l *Ledger) History(ctx context.Context, playerID string) ([]model.LedgerEntry, error) {
	return l.store.GetLedgerEntriesByPlayer(ctx, playerID)
}

// BeginSpin reserves the player's single spin slot. Callers must pair it
// with EndSpin once the spin fully settles.
func (l *Ledger) BeginSpin(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[playerID] {
		return ErrSpinInFlight
	}
	l.inFlight[playerID] = true
	return nil
}

// EndSpin releases the spin slot.
func (l *Ledger) EndSpin(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, playerID)
}

// TryDebit atomically checks and subtracts amount. Returns the new balance,
// or ErrInsufficientBalance with nothing changed.
func (l *Ledger) TryDebit(ctx context.Context, playerID string, amount int64, refID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	account, err := l.loadOrCreate(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if account.Balance < amount {
		return account.Balance, ErrInsufficientBalance
	}

	balance := account.Balance - amount
	if err := l.store.UpdateBalance(ctx, playerID, balance); err != nil {
		return 0, fmt.Errorf("debit %s: %w", playerID, err)
	}

	l.committed(ctx, BalanceUpdate{
		PlayerID: playerID,
		Balance:  balance,
		Delta:    -amount,
		Kind:     model.EntryBet,
		RefID:    refID,
	})
	return balance, nil
}

// Credit unconditionally adds amount to the balance.
func (l *Ledger) Credit(ctx context.Context, playerID string, amount int64, kind, refID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	account, err := l.loadOrCreate(ctx, playerID)
	if err != nil {
		return 0, err
	}

	balance := account.Balance + amount
	if err := l.store.UpdateBalance(ctx, playerID, balance); err != nil {
		return 0, fmt.Errorf("credit %s: %w", playerID, err)
	}

	l.committed(ctx, BalanceUpdate{
		PlayerID: playerID,
		Balance:  balance,
		Delta:    amount,
		Kind:     kind,
		RefID:    refID,
	})
	return balance, nil
}

// ApplyTopUp credits amount exactly once per transaction id. A repeated id
// is a no-op, not an error — confirmations are delivered at least once.
// Returns the (possibly unchanged) balance and whether the credit applied.
func (l *Ledger) ApplyTopUp(ctx context.Context, playerID, txID string, amount int64) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	account, err := l.loadOrCreate(ctx, playerID)
	if err != nil {
		return 0, false, err
	}
	if account.AppliedTopUps[txID] {
		return account.Balance, false, nil
	}

	applied, err := l.store.MarkTopUpApplied(ctx, playerID, txID)
	if err != nil {
		return 0, false, fmt.Errorf("mark top-up %s: %w", txID, err)
	}
	if !applied {
		return account.Balance, false, nil
	}

	balance := account.Balance + amount
	if err := l.store.UpdateBalance(ctx, playerID, balance); err != nil {
		return 0, false, fmt.Errorf("apply top-up %s: %w", txID, err)
	}

	l.committed(ctx, BalanceUpdate{
		PlayerID: playerID,
		Balance:  balance,
		Delta:    amount,
		Kind:     model.EntryTopUp,
		RefID:    txID,
	})
	return balance, true, nil
}

// loadOrCreate fetches the account, provisioning it with the initial
// balance on first contact. Callers hold l.mu.
func (l *Ledger) loadOrCreate(ctx context.Context, playerID string) (*model.Account, error) {
	account, err := l.store.GetAccount(ctx, playerID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		return nil, fmt.Errorf("load account %s: %w", playerID, err)
	}

	account = &model.Account{
		PlayerID:      playerID,
		Balance:       l.initialBalance,
		AppliedTopUps: make(map[string]bool),
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account %s: %w", playerID, err)
	}
	slog.Info("account provisioned", "player", playerID, "balance", account.Balance)
	return account, nil
}

// committed appends the audit entry and notifies observers. The balance is
// already durable at this point; an audit failure is logged, never rolled
// back into the operation. Callers hold l.mu, so observers see updates in
// commit order.
func (l *Ledger) committed(ctx context.Context, u BalanceUpdate) {
	entry := &model.LedgerEntry{
		ID:        uuid.New().String(),
		PlayerID:  u.PlayerID,
		Kind:      u.Kind,
		RefID:     u.RefID,
		Amount:    u.Delta,
		Balance:   u.Balance,
		Timestamp: time.Now().UTC(),
	}
	if err := l.store.InsertLedgerEntry(ctx, entry); err != nil {
		slog.Error("audit entry insert failed", "player", u.PlayerID, "kind", u.Kind, "err", err)
	}

	for _, fn := range l.observers {
		fn(u)
	}
}
