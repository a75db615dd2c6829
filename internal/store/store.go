// Package store defines the persistence interface for player accounts and
// the audit ledger. Implementations include PostgreSQL (source of truth),
// Redis (read-through cache), and in-memory (for testing and single-node
// development).
package store

import (
	"context"
	"errors"

	"github.com/tgslot/game-engine/internal/model"
)

// ErrAccountNotFound is returned when a player id has no account yet.
var ErrAccountNotFound = errors.New("store: account not found")

// Store is the persistence interface. It carries no business rules: every
// mutation is invoked under the ledger's serialization lock, which is the
// atomicity boundary the balance invariants depend on.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account.
	CreateAccount(ctx context.Context, account *model.Account) error

	// GetAccount retrieves an account, including its applied top-up ids.
	GetAccount(ctx context.Context, playerID string) (*model.Account, error)

	// UpdateBalance sets an account's balance.
	UpdateBalance(ctx context.Context, playerID string, balance int64) error

	// MarkTopUpApplied records a top-up transaction id against an account.
	// Returns false (and no error) when the id was already recorded.
	MarkTopUpApplied(ctx context.Context, playerID, txID string) (bool, error)

	// --- Immutable audit ledger ---

	// InsertLedgerEntry appends an immutable balance-mutation record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// GetLedgerEntriesByPlayer returns a player's entries oldest-first.
	GetLedgerEntriesByPlayer(ctx context.Context, playerID string) ([]model.LedgerEntry, error)
}
