package mission

import (
	"time"

	"github.com/grcorsair/corsair-sub002/internal/compliance"
	"github.com/grcorsair/corsair-sub002/internal/drift"
	"github.com/grcorsair/corsair-sub002/internal/evidence"
	"github.com/grcorsair/corsair-sub002/internal/guard"
	"github.com/grcorsair/corsair-sub002/internal/raid"
	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Status is the lifecycle status of a mission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Spec describes one mission: a single end-to-end run of the pipeline
// against one target. Vector is optional; when empty the mission stops
// after drift detection and no raid runs.
type Spec struct {
	Name         string                 `json:"name"`
	ProviderID   string                 `json:"provider_id"`
	Snapshot     types.ResourceSnapshot `json:"snapshot"`
	Expectations []drift.Expectation    `json:"expectations"`
	Vector       string                 `json:"vector,omitempty"`
	Intensity    int                    `json:"intensity"`
	GuardTimeout time.Duration          `json:"guard_timeout,omitempty"`
}

// Result is the full outcome of one mission execution.
type Result struct {
	MissionID    types.ID                `json:"mission_id"`
	Name         string                  `json:"name"`
	Target       string                  `json:"target"`
	Provider     string                  `json:"provider"`
	Status       Status                  `json:"status"`
	Drift        drift.Result            `json:"drift"`
	Raid         *raid.Result            `json:"raid,omitempty"`
	Evidence     *evidence.AppendResult  `json:"evidence,omitempty"`
	EvidencePath string                  `json:"evidence_path,omitempty"`
	Mappings     []compliance.Mapping    `json:"mappings,omitempty"`
	GuardReport  guard.Report            `json:"guard_report"`
	Verification guard.Verification      `json:"verification"`
	Rollback     *guard.RollbackPlan     `json:"rollback,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	CompletedAt  time.Time               `json:"completed_at"`
}

// WorstSeverity returns the most severe label observed across the mission's
// drift findings and raid vector, for event labelling.
func (r *Result) WorstSeverity() types.Severity {
	worst := types.SeverityLow
	for _, f := range r.Drift.Findings {
		if f.Drift {
			worst = types.MaxSeverity(worst, f.Severity)
		}
	}
	if r.Raid != nil {
		worst = types.MaxSeverity(worst, r.Raid.Severity)
	}
	return worst
}
