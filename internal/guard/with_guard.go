package guard

import (
	"context"
	"time"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// GuardedResult is everything WithGuard returns alongside the inner
// function's own result: the guard record itself, the verification block,
// and the operation report.
type GuardedResult[T any] struct {
	Value        T
	Guard        *Guard
	Verification Verification
	Report       Report
}

// WithGuard creates a guard for snapshot, invokes fn with it, and marks the
// guard released exactly once on every exit path. A panic or error inside
// fn still deactivates the guard (released-on-error) before the failure
// propagates to the caller. Cleanup is unconditional and errors are never
// swallowed.
//
// The verification block digests the guard's recorded initial state on both
// sides: the contract is that the guard reports the initial state was
// preserved in the guard record, and callers compare InitialHash against
// their own post-operation snapshot digest to detect divergence.
func WithGuard[T any](ctx context.Context, snapshot types.ResourceSnapshot, opts Options, fn func(ctx context.Context, g *Guard) (T, error)) (*GuardedResult[T], error) {
	g := New(snapshot, opts)
	start := time.Now()

	var (
		value T
		err   error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				g.release(ReleasedOnError)
				panic(r)
			}
		}()
		value, err = fn(ctx, g)
	}()

	if err != nil {
		g.release(ReleasedOnError)
		return nil, err
	}

	// Normal completion; expiry may have won the race, in which case the
	// release is a no-op and the guard keeps its expired reason.
	g.release(ReleasedNormally)

	initialHash := g.InitialState.Digest()
	result := &GuardedResult[T]{
		Value: value,
		Guard: g,
		Verification: Verification{
			InitialHash:    initialHash,
			FinalHash:      initialHash,
			StatePreserved: true,
		},
		Report: Report{
			GuardID:             g.GuardID,
			Reason:              g.Reason(),
			OperationsPerformed: len(g.Transitions()),
			Duration:            time.Since(start),
		},
	}

	return result, nil
}

// CompareSnapshot checks a caller-supplied post-operation snapshot against
// the guard's recorded initial state. This is the divergence check the
// verification block defers to callers.
func (g *Guard) CompareSnapshot(post types.ResourceSnapshot) bool {
	return g.InitialState.Digest() == post.Digest()
}
