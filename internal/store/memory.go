package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tgslot/game-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. The default when no
// DATABASE_URL is configured; balances do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	ledger   []model.LedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.PlayerID]; ok {
		return fmt.Errorf("account %s already exists", a.PlayerID)
	}
	s.accounts[a.PlayerID] = copyAccount(a)
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, playerID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[playerID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (s *MemoryStore) UpdateBalance(_ context.Context, playerID string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[playerID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Balance = balance
	return nil
}

func (s *MemoryStore) MarkTopUpApplied(_ context.Context, playerID, txID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[playerID]
	if !ok {
		return false, ErrAccountNotFound
	}
	if a.AppliedTopUps[txID] {
		return false, nil
	}
	if a.AppliedTopUps == nil {
		a.AppliedTopUps = make(map[string]bool)
	}
	a.AppliedTopUps[txID] = true
	return true, nil
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) GetLedgerEntriesByPlayer(_ context.Context, playerID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.PlayerID == playerID {
			result = append(result, e)
		}
	}
	return result, nil
}

// copyAccount deep-copies an account so callers never share the stored maps.
func copyAccount(a *model.Account) *model.Account {
	cp := *a
	cp.AppliedTopUps = make(map[string]bool, len(a.AppliedTopUps))
	for id := range a.AppliedTopUps {
		cp.AppliedTopUps[id] = true
	}
	return &cp
}
