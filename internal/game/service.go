// Package game exposes the spin pipeline and top-up reconciliation over
// HTTP, with balance and reveal events pushed to the UI over WebSocket.
//
// The spin pipeline is strictly sequential per request: reserve the spin
// slot, debit the bet, resolve the outcome, reveal it, credit the payout.
// The presentation layer never computes or mutates anything — it renders
// whatever this service reports.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tgslot/game-engine/internal/ledger"
	"github.com/tgslot/game-engine/internal/metrics"
	"github.com/tgslot/game-engine/internal/model"
	"github.com/tgslot/game-engine/internal/reel"
	"github.com/tgslot/game-engine/internal/spin"
	"github.com/tgslot/game-engine/internal/topup"
)

// Service handles game operations. The ledger serializes balance
// mutations; this layer orchestrates the pipeline around them.
type Service struct {
	ledger     *ledger.Ledger
	resolver   *spin.Resolver
	reconciler *topup.Reconciler
	packages   []model.CreditPackage
	betCost    int64
	timings    reel.Timings
	wsHub      *WSHub // optional; nil disables push
}

// NewService creates a game service. betCost is the default wager when a
// spin request does not specify one. Pass nil for hub if WebSocket push is
// not needed.
func NewService(l *ledger.Ledger, r *spin.Resolver, rec *topup.Reconciler,
	packages []model.CreditPackage, betCost int64, timings reel.Timings, hub *WSHub) *Service {

	svc := &Service{
		ledger:     l,
		resolver:   r,
		reconciler: rec,
		packages:   packages,
		betCost:    betCost,
		timings:    timings,
		wsHub:      hub,
	}
	l.OnBalanceChange(svc.broadcastBalance)
	return svc
}

// Routes mounts all API handlers on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/spin", s.Spin)
	r.Post("/topups", s.ConfirmTopUp)
	r.Get("/players/{playerID}/balance", s.GetBalance)
	r.Get("/players/{playerID}/history", s.GetHistory)
	r.Get("/packages", s.ListPackages)
}

// --- Request/Response types ---

// SpinRequest is the JSON body for POST /spin. Bet defaults to the
// configured bet cost when omitted.
type SpinRequest struct {
	PlayerID string `json:"player_id"`
	Bet      int64  `json:"bet,omitempty"`
}

// SpinResponse is the settled result of one spin.
type SpinResponse struct {
	SpinID  string            `json:"spin_id"`
	Outcome model.ReelOutcome `json:"outcome"`
	Bet     int64             `json:"bet"`
	Payout  int64             `json:"payout"`
	IsWin   bool              `json:"is_win"`
	Balance int64             `json:"balance"`
}

// TopUpResponse reports how a payment confirmation was reconciled.
type TopUpResponse struct {
	Status  string `json:"status"` // "applied" or "already_applied"
	Balance int64  `json:"balance"`
}

// --- HTTP Handlers ---

// Spin handles POST /api/v1/spin. The bet is debited before the outcome is
// drawn; if the debit fails nothing else happens. A second spin for the
// same player while one is unresolved is rejected with 409.
func (s *Service) Spin(w http.ResponseWriter, r *http.Request) {
	var req SpinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" {
		writeError(w, "player_id is required", http.StatusBadRequest)
		return
	}
	bet := req.Bet
	if bet == 0 {
		bet = s.betCost
	}
	if bet < 0 {
		writeError(w, "bet must be positive", http.StatusBadRequest)
		return
	}

	start := time.Now()
	ctx := r.Context()
	// A debited spin settles even if the client goes away mid-reveal;
	// only the reveal pacing follows the request context.
	settle := context.WithoutCancel(ctx)

	if err := s.ledger.BeginSpin(req.PlayerID); err != nil {
		metrics.SpinRejections.WithLabelValues("spin_in_flight").Inc()
		writeError(w, "a spin is already in flight for this player", http.StatusConflict)
		return
	}
	defer s.ledger.EndSpin(req.PlayerID)

	spinID := uuid.New().String()

	if _, err := s.ledger.TryDebit(settle, req.PlayerID, bet, spinID); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			metrics.SpinRejections.WithLabelValues("insufficient_balance").Inc()
			writeError(w, "insufficient balance", http.StatusConflict)
			return
		}
		slog.Error("bet debit failed", "player", req.PlayerID, "err", err)
		writeError(w, "failed to place bet", http.StatusInternalServerError)
		return
	}
	metrics.BetCredits.Add(float64(bet))

	// The bet is charged; from here the spin always settles. The outcome
	// is drawn exactly once and only revealed, never recomputed.
	result, err := s.resolver.Resolve(spinID, req.PlayerID, bet)
	if err != nil {
		// The debit is already durable; refund rather than strand it.
		slog.Error("spin resolve failed, refunding bet", "player", req.PlayerID, "err", err)
		s.ledger.Credit(settle, req.PlayerID, bet, model.EntryPayout, spinID)
		writeError(w, "failed to resolve spin", http.StatusInternalServerError)
		return
	}

	s.reveal(ctx, result)

	var balance int64
	if result.Payout > 0 {
		balance, err = s.ledger.Credit(settle, req.PlayerID, result.Payout, model.EntryPayout, result.ID)
		if err != nil {
			slog.Error("payout credit failed", "player", req.PlayerID, "spin", result.ID, "err", err)
			writeError(w, "failed to apply payout", http.StatusInternalServerError)
			return
		}
		metrics.PayoutCredits.Add(float64(result.Payout))
		metrics.SpinsTotal.WithLabelValues("win").Inc()
	} else {
		balance, err = s.ledger.Balance(settle, req.PlayerID)
		if err != nil {
			writeError(w, "failed to read balance", http.StatusInternalServerError)
			return
		}
		metrics.SpinsTotal.WithLabelValues("lose").Inc()
	}
	metrics.SpinLatency.Observe(time.Since(start).Seconds())

	slog.Info("spin settled",
		"spin_id", result.ID,
		"player", req.PlayerID,
		"bet", bet,
		"payout", result.Payout,
		"is_win", result.IsWin,
		"balance", balance,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "spin_settled",
			PlayerID: req.PlayerID,
			SpinID:   result.ID,
			Payout:   result.Payout,
			IsWin:    result.IsWin,
			Balance:  balance,
		})
	}

	writeJSON(w, http.StatusOK, SpinResponse{
		SpinID:  result.ID,
		Outcome: result.Outcome,
		Bet:     bet,
		Payout:  result.Payout,
		IsWin:   result.IsWin,
		Balance: balance,
	})
}

// reveal drives the staggered reel reveal, pushing each transition to the
// hub. Cancellation of the request context collapses the timing but every
// reel still stops on the resolved outcome before this returns.
func (s *Service) reveal(ctx context.Context, result *model.SpinResult) {
	var onEvent func(reel.Event)
	if s.wsHub != nil {
		onEvent = func(e reel.Event) {
			s.wsHub.Broadcast(WSMessage{
				Type:   "reel_state",
				SpinID: result.ID,
				Reel:   e.Reel,
				State:  e.State.String(),
				Symbol: string(e.Symbol),
			})
		}
	}

	ctrl, err := reel.NewController(len(result.Outcome), s.timings, onEvent)
	if err != nil {
		slog.Error("reveal controller init failed", "spin", result.ID, "err", err)
		return
	}
	if err := ctrl.Reveal(ctx, result.Outcome); err != nil {
		slog.Error("reveal failed", "spin", result.ID, "err", err)
	}
}

// ConfirmTopUp handles POST /api/v1/topups. The caller is the payment
// collaborator; the event is applied exactly once per transaction id, so
// redelivery is safe.
func (s *Service) ConfirmTopUp(w http.ResponseWriter, r *http.Request) {
	var evt model.TopUpEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.reconciler.OnPaymentConfirmed(r.Context(), evt)
	if err != nil {
		if errors.Is(err, topup.ErrMalformedEvent) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("top-up reconciliation failed", "tx", evt.TransactionID, "err", err)
		writeError(w, "failed to reconcile top-up", http.StatusInternalServerError)
		return
	}

	status := "applied"
	if !res.Applied {
		status = "already_applied"
	}
	writeJSON(w, http.StatusOK, TopUpResponse{Status: status, Balance: res.Balance})
}

// GetBalance handles GET /api/v1/players/{playerID}/balance. First contact
// provisions the account with the configured starting balance.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	balance, err := s.ledger.Balance(r.Context(), playerID)
	if err != nil {
		slog.Error("balance read failed", "player", playerID, "err", err)
		writeError(w, "failed to read balance", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"player_id": playerID,
		"balance":   balance,
	})
}

// GetHistory handles GET /api/v1/players/{playerID}/history.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	entries, err := s.ledger.History(r.Context(), playerID)
	if err != nil {
		writeError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListPackages handles GET /api/v1/packages.
func (s *Service) ListPackages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.packages)
}

// broadcastBalance forwards ledger notifications to WebSocket clients.
// Called synchronously under the ledger lock; Broadcast never blocks.
func (s *Service) broadcastBalance(u ledger.BalanceUpdate) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:     "balance_changed",
		PlayerID: u.PlayerID,
		Balance:  u.Balance,
		Delta:    u.Delta,
		Reason:   u.Kind,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
