package lane

import (
	"context"
	"sync"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Key identifies a mutual-exclusion lane. Scope is typically a provider id
// and ResourceID the target's identifier; the composite of the two is the
// lock identifier and carries no other state.
type Key struct {
	Scope      string
	ResourceID string
}

// Composite returns the canonical lane identifier, "scope:resourceId".
func (k Key) Composite() string {
	return k.Scope + ":" + k.ResourceID
}

// ReleaseFunc releases a held lane. Calling it more than once is safe;
// only the first call has any effect.
type ReleaseFunc func()

// Serializer provides per-key mutual exclusion with FIFO fairness.
//
// Distinct composite keys never block each other, which lets N targets run
// in parallel while guaranteeing at most one in-flight operation per target.
// Internally each key maps to a wait queue of channels; a release hands the
// lane directly to the next waiter and removes the key from the held-set
// once the queue drains.
//
// Thread Safety: all methods are safe for concurrent use.
type Serializer struct {
	mu    sync.Mutex
	lanes map[string]*laneState
}

// laneState tracks a single held lane and its FIFO wait queue.
type laneState struct {
	waiters []*waiter
}

// waiter is one queued acquire. Its channel is closed to grant the lane.
// abandoned is set when the waiter's context is cancelled so a later
// release skips it instead of granting a lane nobody will use.
type waiter struct {
	ready     chan struct{}
	granted   bool
	abandoned bool
}

// NewSerializer creates an empty lane serializer.
func NewSerializer() *Serializer {
	return &Serializer{
		lanes: make(map[string]*laneState),
	}
}

// Acquire takes the lane for key, waiting in FIFO order behind any current
// holder. The returned release function must be called to free the lane;
// it is idempotent, so deferred release combined with an explicit early
// release cannot corrupt the queue.
//
// If ctx is cancelled while waiting, Acquire returns ctx.Err() wrapped in a
// LANE_ACQUIRE_CANCELLED error and the queue entry is abandoned; a later
// release skips it.
func (s *Serializer) Acquire(ctx context.Context, key Key) (ReleaseFunc, error) {
	composite := key.Composite()

	s.mu.Lock()
	state, held := s.lanes[composite]
	if !held {
		// Lane is free; take it immediately.
		s.lanes[composite] = &laneState{}
		s.mu.Unlock()
		return s.releaseFunc(composite), nil
	}

	w := &waiter{ready: make(chan struct{})}
	state.waiters = append(state.waiters, w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		return s.releaseFunc(composite), nil
	case <-ctx.Done():
		s.mu.Lock()
		if w.granted {
			// The grant raced the cancellation; we own the lane and
			// must pass it on before reporting the cancellation.
			s.mu.Unlock()
			s.release(composite)
		} else {
			w.abandoned = true
			s.mu.Unlock()
		}
		return nil, types.WrapError(types.LANE_ACQUIRE_CANCELLED,
			"cancelled while waiting for lane "+composite, ctx.Err())
	}
}

// releaseFunc builds the idempotent release closure for a held lane.
func (s *Serializer) releaseFunc(composite string) ReleaseFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.release(composite)
		})
	}
}

// release wakes exactly the next live waiter, or frees the lane when the
// queue is empty.
func (s *Serializer) release(composite string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.lanes[composite]
	if !ok {
		return
	}

	for len(state.waiters) > 0 {
		next := state.waiters[0]
		state.waiters = state.waiters[1:]
		if next.abandoned {
			continue
		}
		// Hand the lane directly to the next waiter; the key stays
		// in the held-set.
		next.granted = true
		close(next.ready)
		return
	}

	delete(s.lanes, composite)
}

// IsLocked reports whether the lane for key is held at this instant.
func (s *Serializer) IsLocked(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.lanes[key.Composite()]
	return held
}

// HeldKeys returns the composite identifiers of all currently held lanes.
func (s *Serializer) HeldKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.lanes))
	for k := range s.lanes {
		keys = append(keys, k)
	}
	return keys
}

// HeldCount returns the number of currently held lanes.
func (s *Serializer) HeldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}
