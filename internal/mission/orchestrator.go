package mission

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/grcorsair/corsair-sub002/internal/compliance"
	"github.com/grcorsair/corsair-sub002/internal/drift"
	"github.com/grcorsair/corsair-sub002/internal/events"
	"github.com/grcorsair/corsair-sub002/internal/evidence"
	"github.com/grcorsair/corsair-sub002/internal/guard"
	"github.com/grcorsair/corsair-sub002/internal/lane"
	"github.com/grcorsair/corsair-sub002/internal/observability"
	"github.com/grcorsair/corsair-sub002/internal/plugin"
	"github.com/grcorsair/corsair-sub002/internal/raid"
	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Orchestrator wires the whole pipeline for one mission at a time:
// snapshot → drift detection → optional raid under a lane and approval
// gate → evidence append → compliance mapping → scope-guard release.
//
// The orchestrator holds no cross-mission mutable state of its own; the
// lane serializer and per-chain sequence counters are the only shared
// state in the core.
type Orchestrator struct {
	lanes       *lane.Serializer
	registry    *plugin.Registry
	engine      *raid.Engine
	mapper      *compliance.Mapper
	bus         events.Bus
	handler     slog.Handler
	tracer      trace.Tracer
	evidenceDir string
	store       *Store
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventBus installs an event bus for lifecycle fan-out.
func WithEventBus(bus events.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// WithLogHandler sets the slog handler mission loggers write through.
func WithLogHandler(handler slog.Handler) Option {
	return func(o *Orchestrator) {
		o.handler = handler
	}
}

// WithTracer sets the tracer used for phase spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithStore installs a mission store for run history.
func WithStore(store *Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// NewOrchestrator creates an orchestrator. gate may be nil when no approval
// workflow is configured; registry may be nil when only built-in vectors
// and mappings are in play.
func NewOrchestrator(registry *plugin.Registry, gate *raid.Gate, evidenceDir string, opts ...Option) *Orchestrator {
	lanes := lane.NewSerializer()
	o := &Orchestrator{
		lanes:       lanes,
		registry:    registry,
		engine:      raid.NewEngine(lanes, gate, registry),
		mapper:      compliance.NewMapper(registry),
		handler:     slog.NewTextHandler(os.Stderr, nil),
		tracer:      observability.NoopTracer(),
		evidenceDir: evidenceDir,
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Lanes exposes the serializer for diagnostics.
func (o *Orchestrator) Lanes() *lane.Serializer {
	return o.lanes
}

// Execute runs one mission end to end. The snapshot is deep-copied into a
// scope guard before any risky work; the guard is released on every exit
// path and the original error always propagates after cleanup.
func (o *Orchestrator) Execute(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Snapshot.ResourceID == "" {
		return nil, types.NewError(types.MISSION_TARGET_INVALID, "snapshot has no resource id")
	}

	missionID := types.NewID()
	logger := observability.NewMissionLogger(o.handler, missionID.String(), spec.Snapshot.ResourceID)

	ctx, span := observability.StartPhase(ctx, o.tracer, "mission.execute",
		missionID.String(), spec.Snapshot.ResourceID)

	result := &Result{
		MissionID: missionID,
		Name:      spec.Name,
		Target:    spec.Snapshot.ResourceID,
		Provider:  spec.Snapshot.Provider,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	o.publish(ctx, events.Event{
		Type:      events.EventMissionStarted,
		Timestamp: time.Now(),
		MissionID: missionID,
		Target:    result.Target,
	})
	logger.Info(ctx, "mission started", "name", spec.Name, "vector", spec.Vector)

	if o.store != nil {
		if err := o.store.Save(ctx, result); err != nil {
			logger.Warn(ctx, "failed to persist mission record", "error", err)
		}
	}

	guarded, err := guard.WithGuard(ctx, spec.Snapshot, guard.Options{Timeout: spec.GuardTimeout},
		func(ctx context.Context, g *guard.Guard) (*Result, error) {
			return o.runPhases(ctx, spec, missionID, result, g, logger)
		})

	if err != nil {
		result.Status = StatusFailed
		result.CompletedAt = time.Now()
		o.finish(ctx, result, logger, err)
		observability.EndPhase(span, err)
		return result, err
	}

	result = guarded.Value
	result.GuardReport = guarded.Report
	result.Verification = guarded.Verification
	result.Status = StatusCompleted
	result.CompletedAt = time.Now()

	o.finish(ctx, result, logger, nil)
	observability.EndPhase(span, nil)
	return result, nil
}

// runPhases executes the guarded portion of the pipeline.
func (o *Orchestrator) runPhases(ctx context.Context, spec Spec, missionID types.ID, result *Result, g *guard.Guard, logger *observability.MissionLogger) (*Result, error) {
	_ = g.LogStateTransition("drift_detection", "comparing snapshot against expectations")

	driftCtx, driftSpan := observability.StartPhase(ctx, o.tracer, "mission.drift",
		missionID.String(), result.Target)
	result.Drift = drift.Detect(spec.Snapshot, spec.Expectations)
	observability.EndPhase(driftSpan, nil)

	if result.Drift.DriftDetected {
		o.publish(driftCtx, events.Event{
			Type:      events.EventDriftDetected,
			Timestamp: time.Now(),
			MissionID: missionID,
			Target:    result.Target,
			Severity:  result.WorstSeverity(),
			Data:      map[string]any{"findings": len(result.Drift.Findings)},
		})
		logger.Warn(driftCtx, "drift detected", "findings", len(result.Drift.Findings))
	}

	result.Mappings = o.mapper.MapDrift(spec.ProviderID, result.Drift.Findings)

	if spec.Vector == "" {
		return result, nil
	}

	_ = g.LogStateTransition("raid", fmt.Sprintf("simulating vector %s at intensity %d", spec.Vector, spec.Intensity))

	raidCtx, raidSpan := observability.StartPhase(ctx, o.tracer, "mission.raid",
		missionID.String(), result.Target)
	raidResult, err := o.engine.Execute(raidCtx, raid.Request{
		Snapshot:  spec.Snapshot,
		Vector:    spec.Vector,
		Intensity: spec.Intensity,
	})
	observability.EndPhase(raidSpan, err)
	if err != nil {
		return result, err
	}
	result.Raid = raidResult

	o.publish(raidCtx, events.Event{
		Type:      events.EventRaidCompleted,
		Timestamp: time.Now(),
		MissionID: missionID,
		Target:    result.Target,
		Severity:  raidResult.Severity,
		Data: map[string]any{
			"vector":        raidResult.Vector,
			"success":       raidResult.Success,
			"controls_held": raidResult.ControlsHeld,
		},
	})
	logger.Info(raidCtx, "raid completed",
		"vector", raidResult.Vector, "success", raidResult.Success)

	chain, appendResult, err := o.appendEvidence(missionID, raidResult)
	if err != nil {
		return result, err
	}
	result.Evidence = appendResult
	result.EvidencePath = chain.Path()

	o.publish(ctx, events.Event{
		Type:      events.EventEvidenceAppended,
		Timestamp: time.Now(),
		MissionID: missionID,
		Target:    result.Target,
		Data:      map[string]any{"records": appendResult.RecordsWritten, "path": chain.Path()},
	})

	result.Mappings = append(result.Mappings, o.mapper.MapRaid(spec.ProviderID, raidResult)...)

	plan := g.Rollback()
	result.Rollback = &plan

	return result, nil
}

// appendEvidence opens the mission's chain file and appends the raid's
// three sub-events.
func (o *Orchestrator) appendEvidence(missionID types.ID, raidResult *raid.Result) (*evidence.Chain, *evidence.AppendResult, error) {
	if err := os.MkdirAll(o.evidenceDir, 0o755); err != nil {
		return nil, nil, types.WrapError(types.EVIDENCE_APPEND_FAILED,
			"cannot create evidence directory", err)
	}

	path := filepath.Join(o.evidenceDir, fmt.Sprintf("mission-%s.jsonl", missionID))
	chain := evidence.NewChain(path)

	appendResult, err := chain.Append(evidence.RaidSummary{
		RaidID:       raidResult.RaidID,
		Target:       raidResult.Target,
		Vector:       raidResult.Vector,
		Severity:     raidResult.Severity,
		Intensity:    raidResult.Intensity,
		Success:      raidResult.Success,
		ControlsHeld: raidResult.ControlsHeld,
		Findings:     raidResult.Findings,
		StartedAt:    raidResult.StartedAt,
		CompletedAt:  raidResult.CompletedAt,
		DurationMs:   raidResult.DurationMs,
	})
	if err != nil {
		return nil, nil, err
	}
	return chain, appendResult, nil
}

// finish publishes the terminal event and updates the stored record.
func (o *Orchestrator) finish(ctx context.Context, result *Result, logger *observability.MissionLogger, err error) {
	eventType := events.EventMissionCompleted
	if err != nil {
		eventType = events.EventMissionFailed
		logger.Error(ctx, "mission failed", "error", err)
	} else {
		logger.Info(ctx, "mission completed", "status", result.Status)
	}

	o.publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		MissionID: result.MissionID,
		Target:    result.Target,
		Severity:  result.WorstSeverity(),
	})

	if o.store != nil {
		if serr := o.store.Finish(ctx, result); serr != nil {
			logger.Warn(ctx, "failed to update mission record", "error", serr)
		}
	}

	o.publish(ctx, events.Event{
		Type:      events.EventGuardReleased,
		Timestamp: time.Now(),
		MissionID: result.MissionID,
		Target:    result.Target,
	})
}

// publish fans an event out when a bus is installed.
func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.bus == nil {
		return
	}
	// Publish errors only occur on a closed bus; missions outlive their
	// observers, so a closed bus is not a mission failure.
	_ = o.bus.Publish(ctx, event)
}
