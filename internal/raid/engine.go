package raid

import (
	"context"
	"fmt"
	"time"

	"github.com/grcorsair/corsair-sub002/internal/lane"
	"github.com/grcorsair/corsair-sub002/internal/plugin"
	"github.com/grcorsair/corsair-sub002/internal/types"
)

// ApprovalFunc is the caller-supplied approval callback for gated raids.
// It receives the blast-radius summary and is raced against the gate's
// timeout.
type ApprovalFunc func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)

// Gate configures the optional approval workflow. A raid whose vector
// severity meets or exceeds MinSeverity must clear the approval callback
// before any lane is taken or any attack logic runs.
type Gate struct {
	MinSeverity types.Severity
	Timeout     time.Duration
	Approve     ApprovalFunc
}

// Request describes one raid invocation.
type Request struct {
	Snapshot  types.ResourceSnapshot
	Vector    string
	Intensity int
}

// Engine runs deterministic attack simulations inside per-target lanes.
// Simulations are pure, bounded computations over a snapshot; once a raid
// has acquired its lane it runs to completion. Vector ids resolve against
// the built-in decision tables first, then against attack vectors declared
// by registered provider manifests.
type Engine struct {
	lanes    *lane.Serializer
	gate     *Gate
	registry *plugin.Registry
}

// NewEngine creates a raid engine sharing the given lane serializer.
// gate may be nil when no approval workflow is configured; registry may be
// nil when only built-in vectors are in play.
func NewEngine(lanes *lane.Serializer, gate *Gate, registry *plugin.Registry) *Engine {
	return &Engine{
		lanes:    lanes,
		gate:     gate,
		registry: registry,
	}
}

// resolveVector finds the simulation behind a vector id. Built-ins win;
// otherwise the registry's manifest-declared vectors are searched in
// registration order. The returned range is the manifest's declared
// intensity bound, nil for built-ins.
func (e *Engine) resolveVector(id string) (vectorSpec, *plugin.IntensityRange, bool) {
	if spec, ok := builtinVectors[id]; ok {
		return spec, nil, true
	}
	if e.registry == nil {
		return vectorSpec{}, nil, false
	}
	for _, pv := range e.registry.AllVectors() {
		if pv.Vector.ID == id {
			return manifestVector(pv.ProviderID, pv.Vector), pv.Vector.Intensity, true
		}
	}
	return vectorSpec{}, nil, false
}

// Vectors lists the ids of the built-in attack vectors.
func Vectors() []string {
	out := make([]string, 0, len(builtinVectors))
	for id := range builtinVectors {
		out = append(out, id)
	}
	return out
}

// VectorSeverity returns the intrinsic severity of a built-in vector.
func VectorSeverity(id string) (types.Severity, bool) {
	spec, ok := builtinVectors[id]
	if !ok {
		return "", false
	}
	return spec.severity, true
}

// Execute runs one raid: approval gate first (if required), then lane
// acquisition keyed on the target's resource id, then the vector's decision
// table. The lane is released on every exit path; approval denial or
// timeout is a hard stop surfaced as an error, with no lane taken and
// nothing recorded.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Intensity < 0 || req.Intensity > 10 {
		return nil, types.NewError(types.RAID_INTENSITY_INVALID,
			fmt.Sprintf("intensity %d outside 0-10", req.Intensity))
	}

	spec, bounds, ok := e.resolveVector(req.Vector)
	if !ok {
		return nil, types.NewError(types.RAID_VECTOR_UNKNOWN,
			fmt.Sprintf("unknown attack vector %q", req.Vector))
	}
	if bounds != nil && (req.Intensity < bounds.Min || req.Intensity > bounds.Max) {
		return nil, types.NewError(types.RAID_INTENSITY_INVALID,
			fmt.Sprintf("intensity %d outside vector %q's declared range %d-%d",
				req.Intensity, req.Vector, bounds.Min, bounds.Max))
	}

	result := &Result{
		RaidID:     types.NewID(),
		Target:     req.Snapshot.ResourceID,
		Vector:     req.Vector,
		Severity:   spec.severity,
		Intensity:  req.Intensity,
		FinalState: StateRequested,
	}

	if e.gateRequired(spec.severity) {
		result.FinalState = StateApprovalPending
		meta, err := e.requestApproval(ctx, result, req.Snapshot.Environment)
		result.Approval = meta
		if err != nil {
			if types.CodeOf(err) == types.RAID_APPROVAL_TIMEOUT {
				result.FinalState = StateApprovalTimeout
			} else {
				result.FinalState = StateApprovalDenied
			}
			return nil, err
		}
		result.FinalState = StateApprovalGranted
	}

	key := lane.Key{Scope: req.Snapshot.Provider, ResourceID: req.Snapshot.ResourceID}
	release, err := e.lanes.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		release()
		if result.FinalState == StateRecorded {
			result.FinalState = StateLaneReleased
		}
	}()
	result.FinalState = StateLaneAcquired

	result.StartedAt = time.Now()
	result.FinalState = StateSimulating

	sim := &simulation{}
	result.Success = spec.run(sim, req.Snapshot, req.Intensity)
	result.ControlsHeld = !result.Success
	result.Findings = sim.findings
	result.Timeline = sim.timeline

	result.CompletedAt = time.Now()
	result.DurationMs = result.CompletedAt.Sub(result.StartedAt).Milliseconds()
	result.FinalState = StateRecorded

	return result, nil
}

// gateRequired reports whether this vector's severity trips the gate.
func (e *Engine) gateRequired(severity types.Severity) bool {
	return e.gate != nil && e.gate.Approve != nil && severity.AtLeast(e.gate.MinSeverity)
}

// requestApproval races the approval callback against the gate timeout.
func (e *Engine) requestApproval(ctx context.Context, result *Result, environment string) (ApprovalMetadata, error) {
	meta := ApprovalMetadata{Required: true}

	approvalCtx := ctx
	if e.gate.Timeout > 0 {
		var cancel context.CancelFunc
		approvalCtx, cancel = context.WithTimeout(ctx, e.gate.Timeout)
		defer cancel()
	}

	req := ApprovalRequest{
		RaidID:            result.RaidID,
		Vector:            result.Vector,
		Severity:          result.Severity,
		AffectedResources: 1,
		ResourceIDs:       []string{result.Target},
		Environment:       environment,
	}

	type outcome struct {
		resp ApprovalResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := e.gate.Approve(approvalCtx, req)
		done <- outcome{resp, err}
	}()

	select {
	case <-approvalCtx.Done():
		return meta, types.WrapError(types.RAID_APPROVAL_TIMEOUT,
			fmt.Sprintf("approval for raid %s timed out", result.RaidID), approvalCtx.Err())
	case out := <-done:
		if out.err != nil {
			return meta, types.WrapError(types.RAID_APPROVAL_DENIED,
				"approval callback failed", out.err)
		}
		meta.DecidedAt = time.Now()
		meta.ApproverID = out.resp.ApproverID
		if !out.resp.Approved {
			return meta, types.NewError(types.RAID_APPROVAL_DENIED,
				fmt.Sprintf("approval for raid %s denied", result.RaidID))
		}
		meta.Approved = true
		return meta, nil
	}
}
