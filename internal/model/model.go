// Package model defines the core domain types shared across the game engine.
// In-game credits are int64; real-currency amounts (TON) use
// shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Symbol is one face on a reel. The full set is declared in configuration
// at startup and is immutable afterwards.
type Symbol string

// ReelOutcome is the ordered set of resolved symbols for one spin, one per
// reel. Immutable once created.
type ReelOutcome []Symbol

// AllEqual reports whether every reel resolved to the same symbol.
func (o ReelOutcome) AllEqual() bool {
	if len(o) == 0 {
		return false
	}
	for _, s := range o[1:] {
		if s != o[0] {
			return false
		}
	}
	return true
}

// SpinResult is the single authoritative outcome of one resolved spin.
// It is created by the resolver and never mutated; the reveal controller
// and the ledger both consume this exact value.
type SpinResult struct {
	ID         string      `json:"id"`
	PlayerID   string      `json:"player_id"`
	Outcome    ReelOutcome `json:"outcome"`
	BetCost    int64       `json:"bet_cost"`
	Payout     int64       `json:"payout"` // 0 if no win
	IsWin      bool        `json:"is_win"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// Account holds one player's authoritative credit balance and the set of
// top-up transaction ids already applied to it. Mutated only through
// ledger operations.
type Account struct {
	PlayerID      string          `json:"player_id" db:"player_id"`
	Balance       int64           `json:"balance" db:"balance"`
	AppliedTopUps map[string]bool `json:"-" db:"-"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Entry kinds recorded in the audit ledger.
const (
	EntryBet    = "bet"
	EntryPayout = "payout"
	EntryTopUp  = "topup"
)

// LedgerEntry is an immutable record of one balance mutation.
// Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID        string    `json:"id" db:"id"`
	PlayerID  string    `json:"player_id" db:"player_id"`
	Kind      string    `json:"kind" db:"kind"`       // "bet", "payout", "topup"
	RefID     string    `json:"ref_id" db:"ref_id"`   // spin id or top-up transaction id
	Amount    int64     `json:"amount" db:"amount"`   // signed: credits added (+) or removed (-)
	Balance   int64     `json:"balance" db:"balance"` // balance after this entry applied
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// TopUpEvent is a wallet-payment confirmation handed in by the payment
// collaborator after out-of-band validation. Delivery is at-least-once;
// TransactionID is the dedup key.
type TopUpEvent struct {
	PlayerID       string          `json:"player_id"`
	TransactionID  string          `json:"transaction_id"`
	CreditsGranted int64           `json:"credits_granted"`
	SourceAmount   decimal.Decimal `json:"source_amount"` // TON paid
}

// CreditPackage is one purchasable credit bundle offered to the player.
type CreditPackage struct {
	Credits int64           `json:"credits"`
	Price   decimal.Decimal `json:"price"` // TON
}
