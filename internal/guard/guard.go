package guard

import (
	"sync"
	"time"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// ReleaseReason records which terminal path deactivated a guard.
type ReleaseReason string

const (
	ReleasedNormally ReleaseReason = "released"
	ReleasedOnError  ReleaseReason = "released_on_error"
	ReleasedExpired  ReleaseReason = "expired"
)

// StateTransition is one append-only instrumentation entry recorded while a
// guarded operation runs. Transitions document what changed so a rollback
// knows the most recent intermediate state to roll back from.
type StateTransition struct {
	Timestamp   time.Time               `json:"timestamp"`
	Action      string                  `json:"action"`
	Description string                  `json:"description,omitempty"`
	State       *types.ResourceSnapshot `json:"state,omitempty"`
}

// Guard snapshots state before risky work and guarantees restoration
// semantics on every exit path. A guard becomes inactive exactly once
// (explicit release, error, or timeout expiry) and may never be
// reactivated.
type Guard struct {
	GuardID      types.ID
	InitialState types.ResourceSnapshot
	CreatedAt    time.Time
	Timeout      time.Duration

	mu          sync.Mutex
	active      bool
	reason      ReleaseReason
	transitions []StateTransition
	timer       *time.Timer
}

// Options configures guard creation.
type Options struct {
	// Timeout, when positive, schedules an independent expiry check that
	// flips the guard inactive if it is still active when the timer fires.
	// Expiry only changes bookkeeping state; no action is taken against
	// the underlying resource.
	Timeout time.Duration
}

// RollbackPlan reports the rollback target for a guarded operation. The
// guard only reports; applying the plan against the real resource is the
// caller's responsibility.
type RollbackPlan struct {
	FromState types.ResourceSnapshot `json:"from_state"`
	ToState   types.ResourceSnapshot `json:"to_state"`
}

// Verification is the integrity block attached to a completed guarded
// operation. Both hashes are digests of the guard's recorded initial state;
// callers compare them against their own post-operation snapshot digest to
// detect divergence.
type Verification struct {
	InitialHash    string `json:"initial_hash"`
	FinalHash      string `json:"final_hash"`
	StatePreserved bool   `json:"state_preserved"`
}

// Report summarizes a completed guarded operation.
type Report struct {
	GuardID             types.ID      `json:"guard_id"`
	Reason              ReleaseReason `json:"reason"`
	OperationsPerformed int           `json:"operations_performed"`
	Duration            time.Duration `json:"duration"`
}

// New creates an active guard holding a deep copy of the snapshot. The copy
// guarantees later mutation of the caller's snapshot cannot rewrite the
// recorded initial state.
func New(snapshot types.ResourceSnapshot, opts Options) *Guard {
	g := &Guard{
		GuardID:      types.NewID(),
		InitialState: snapshot.Clone(),
		CreatedAt:    time.Now(),
		Timeout:      opts.Timeout,
		active:       true,
	}

	if opts.Timeout > 0 {
		g.timer = time.AfterFunc(opts.Timeout, func() {
			g.expire()
		})
	}

	return g
}

// Active reports whether the guard is still active.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Reason returns the terminal path that deactivated the guard, or the
// empty value while the guard is still active.
func (g *Guard) Reason() ReleaseReason {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason
}

// Transitions returns a copy of the transitions recorded so far.
func (g *Guard) Transitions() []StateTransition {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]StateTransition, len(g.transitions))
	copy(out, g.transitions)
	return out
}

// LogStateTransition appends an instrumentation entry describing something
// the guarded operation did. Returns an error once the guard is inactive.
func (g *Guard) LogStateTransition(action, description string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return types.NewError(types.GUARD_INACTIVE, "cannot log transition on inactive guard")
	}

	g.transitions = append(g.transitions, StateTransition{
		Timestamp:   time.Now(),
		Action:      action,
		Description: description,
	})
	return nil
}

// CaptureIntermediateState records a point-in-time snapshot taken mid
// operation. The most recent capture becomes the rollback plan's FromState.
func (g *Guard) CaptureIntermediateState(action string, snapshot types.ResourceSnapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return types.NewError(types.GUARD_INACTIVE, "cannot capture state on inactive guard")
	}

	clone := snapshot.Clone()
	g.transitions = append(g.transitions, StateTransition{
		Timestamp: time.Now(),
		Action:    action,
		State:     &clone,
	})
	return nil
}

// Rollback returns the most recent captured intermediate state (or the
// initial state when none was captured) as FromState, and always the
// guard's original snapshot as ToState.
func (g *Guard) Rollback() RollbackPlan {
	g.mu.Lock()
	defer g.mu.Unlock()

	plan := RollbackPlan{
		FromState: g.InitialState.Clone(),
		ToState:   g.InitialState.Clone(),
	}

	for i := len(g.transitions) - 1; i >= 0; i-- {
		if g.transitions[i].State != nil {
			plan.FromState = g.transitions[i].State.Clone()
			break
		}
	}

	return plan
}

// IsExpired lazily flips the guard inactive if its timeout has elapsed and
// reports the result. Idempotent: once expired it stays expired.
func (g *Guard) IsExpired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reason == ReleasedExpired {
		return true
	}
	if !g.active || g.Timeout <= 0 {
		return false
	}
	if time.Since(g.CreatedAt) >= g.Timeout {
		g.deactivateLocked(ReleasedExpired)
		return true
	}
	return false
}

// release marks the guard inactive exactly once with the given reason.
// Returns false when the guard was already inactive.
func (g *Guard) release(reason ReleaseReason) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return false
	}
	g.deactivateLocked(reason)
	return true
}

// expire is the timer path; it only fires when still active.
func (g *Guard) expire() {
	g.release(ReleasedExpired)
}

// deactivateLocked finalizes the guard. Caller must hold g.mu.
func (g *Guard) deactivateLocked(reason ReleaseReason) {
	g.active = false
	g.reason = reason
	if g.timer != nil {
		g.timer.Stop()
	}
}
