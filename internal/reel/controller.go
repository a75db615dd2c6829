// Package reel sequences the reveal of an already-resolved spin outcome.
//
// Each reel walks a fixed state machine: Idle → Spinning → Settling →
// Stopped. No randomness happens here — the controller only times how a
// resolver-provided outcome becomes visible, so animation pacing can change
// without ever desynchronizing the displayed result from the one that
// determined the payout.
package reel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tgslot/game-engine/internal/model"
)

// State of one reel during a reveal.
type State int

const (
	StateIdle State = iota
	StateSpinning
	StateSettling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpinning:
		return "spinning"
	case StateSettling:
		return "settling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is emitted on every reel transition. Symbol is set once the reel
// stops, taken from the resolved outcome.
type Event struct {
	Reel   int
	State  State
	Symbol model.Symbol
}

// Timings paces the staggered reveal. All-zero timings reveal instantly.
type Timings struct {
	SpinDuration   time.Duration // every reel spins at least this long
	Stagger        time.Duration // extra delay before each successive reel settles
	SettleDuration time.Duration // time spent settling before stopped
}

// Controller drives the reveal of one spin at a time across a fixed number
// of reels.
type Controller struct {
	timings Timings
	onEvent func(Event) // may be nil

	mu        sync.Mutex
	states    []State
	revealing bool
}

// NewController creates a controller for reelCount reels, all Idle.
// onEvent, if non-nil, is called synchronously on every transition.
func NewController(reelCount int, timings Timings, onEvent func(Event)) (*Controller, error) {
	if reelCount <= 0 {
		return nil, fmt.Errorf("reel: reel count must be positive, got %d", reelCount)
	}
	return &Controller{
		timings: timings,
		onEvent: onEvent,
		states:  make([]State, reelCount),
	}, nil
}

// States returns a snapshot of every reel's current state.
func (c *Controller) States() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]State(nil), c.states...)
}

// Done reports whether every reel is stopped.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.states {
		if s != StateStopped {
			return false
		}
	}
	return true
}

// Reveal sequences the outcome across all reels: everything enters Spinning
// together, then reel i settles at SpinDuration + i×Stagger and stops
// SettleDuration later.
//
// Once started, a reveal always terminates with every reel Stopped on its
// resolved symbol. Cancelling ctx only collapses the remaining timing — the
// session may die mid-spin, but a debited spin is never left half-revealed.
func (c *Controller) Reveal(ctx context.Context, outcome model.ReelOutcome) error {
	c.mu.Lock()
	if c.revealing {
		c.mu.Unlock()
		return fmt.Errorf("reel: reveal already in progress")
	}
	if len(outcome) != len(c.states) {
		c.mu.Unlock()
		return fmt.Errorf("reel: outcome has %d symbols, controller has %d reels", len(outcome), len(c.states))
	}
	c.revealing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.revealing = false
		c.mu.Unlock()
	}()

	start := time.Now()
	for i := range c.states {
		c.transition(i, StateSpinning, "")
	}

	for i, sym := range outcome {
		settleAt := start.Add(c.timings.SpinDuration + time.Duration(i)*c.timings.Stagger)
		if !sleepUntil(ctx, settleAt) {
			c.fastForward(outcome, i)
			return nil
		}
		c.transition(i, StateSettling, "")

		if !sleepFor(ctx, c.timings.SettleDuration) {
			c.transition(i, StateStopped, sym)
			c.fastForward(outcome, i+1)
			return nil
		}
		c.transition(i, StateStopped, sym)
	}
	return nil
}

// fastForward drives reels from index on straight to Stopped with their
// resolved symbols.
func (c *Controller) fastForward(outcome model.ReelOutcome, from int) {
	for i := from; i < len(outcome); i++ {
		c.transition(i, StateSettling, "")
		c.transition(i, StateStopped, outcome[i])
	}
}

func (c *Controller) transition(i int, state State, sym model.Symbol) {
	c.mu.Lock()
	c.states[i] = state
	c.mu.Unlock()

	if c.onEvent != nil {
		c.onEvent(Event{Reel: i, State: state, Symbol: sym})
	}
}

// sleepUntil waits until the deadline; returns false if ctx was cancelled
// first.
func sleepUntil(ctx context.Context, deadline time.Time) bool {
	return sleepFor(ctx, time.Until(deadline))
}

func sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		// Still honor an already-cancelled context.
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
