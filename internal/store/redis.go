package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tgslot/game-engine/internal/model"
)

// cachedAccount is the Redis representation of an account; the applied
// top-up set is flattened so it round-trips through JSON.
type cachedAccount struct {
	PlayerID      string    `json:"player_id"`
	Balance       int64     `json:"balance"`
	AppliedTopUps []string  `json:"applied_topups"`
	CreatedAt     time.Time `json:"created_at"`
}

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for account lookups. Writes go to the primary store and invalidate
// the cache; reads check Redis first then fall back to the primary. Audit
// queries pass through uncached.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := s.primary.CreateAccount(ctx, a); err != nil {
		return err
	}
	s.cacheAccount(ctx, a)
	return nil
}

func (s *CachedStore) UpdateBalance(ctx context.Context, playerID string, balance int64) error {
	if err := s.primary.UpdateBalance(ctx, playerID, balance); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, accountKey(playerID))
	return nil
}

func (s *CachedStore) MarkTopUpApplied(ctx context.Context, playerID, txID string) (bool, error) {
	applied, err := s.primary.MarkTopUpApplied(ctx, playerID, txID)
	if err != nil {
		return false, err
	}
	if applied {
		s.rdb.Del(ctx, accountKey(playerID))
	}
	return applied, nil
}

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.primary.InsertLedgerEntry(ctx, entry)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, playerID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(playerID)).Bytes()
	if err == nil {
		var ca cachedAccount
		if json.Unmarshal(data, &ca) == nil {
			return ca.toAccount(), nil
		}
	}

	// Cache miss: read from primary.
	a, err := s.primary.GetAccount(ctx, playerID)
	if err != nil {
		return nil, err
	}

	s.cacheAccount(ctx, a)
	return a, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetLedgerEntriesByPlayer(ctx context.Context, playerID string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByPlayer(ctx, playerID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAccount(ctx context.Context, a *model.Account) {
	ca := cachedAccount{
		PlayerID:  a.PlayerID,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
	}
	for id := range a.AppliedTopUps {
		ca.AppliedTopUps = append(ca.AppliedTopUps, id)
	}
	if data, err := json.Marshal(ca); err == nil {
		s.rdb.Set(ctx, accountKey(a.PlayerID), data, s.ttl)
	}
}

func (ca *cachedAccount) toAccount() *model.Account {
	a := &model.Account{
		PlayerID:      ca.PlayerID,
		Balance:       ca.Balance,
		AppliedTopUps: make(map[string]bool, len(ca.AppliedTopUps)),
		CreatedAt:     ca.CreatedAt,
	}
	for _, id := range ca.AppliedTopUps {
		a.AppliedTopUps[id] = true
	}
	return a
}

func accountKey(playerID string) string { return fmt.Sprintf("account:%s", playerID) }
