package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgslot/game-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Top-up dedup rides on the applied_topups primary key: a duplicate insert
// is ON CONFLICT DO NOTHING, detected via the affected-row count.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (player_id, balance, created_at)
		 VALUES ($1, $2, $3)`,
		a.PlayerID, a.Balance, a.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, playerID string) (*model.Account, error) {
	var a model.Account
	err := s.pool.QueryRow(ctx,
		`SELECT player_id, balance, created_at FROM accounts WHERE player_id = $1`,
		playerID).
		Scan(&a.PlayerID, &a.Balance, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", playerID, err)
	}

	a.AppliedTopUps = make(map[string]bool)
	rows, err := s.pool.Query(ctx,
		`SELECT tx_id FROM applied_topups WHERE player_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("get applied top-ups for %s: %w", playerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var txID string
		if err := rows.Scan(&txID); err != nil {
			return nil, err
		}
		a.AppliedTopUps[txID] = true
	}
	return &a, rows.Err()
}

func (s *PostgresStore) UpdateBalance(ctx context.Context, playerID string, balance int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET balance = $2 WHERE player_id = $1`,
		playerID, balance,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) MarkTopUpApplied(ctx context.Context, playerID, txID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO applied_topups (player_id, tx_id)
		 VALUES ($1, $2)
		 ON CONFLICT (player_id, tx_id) DO NOTHING`,
		playerID, txID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, player_id, kind, ref_id, amount, balance, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PlayerID, e.Kind, e.RefID, e.Amount, e.Balance, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetLedgerEntriesByPlayer(ctx context.Context, playerID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player_id, kind, ref_id, amount, balance, timestamp
		 FROM ledger_entries WHERE player_id = $1 ORDER BY timestamp`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.Kind, &e.RefID,
			&e.Amount, &e.Balance, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
