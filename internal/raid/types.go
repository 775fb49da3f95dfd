package raid

import (
	"time"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// State tracks the per-invocation raid state machine. Every raid walks
// REQUESTED → (APPROVAL_PENDING → APPROVAL_GRANTED|DENIED|TIMED_OUT) →
// LANE_ACQUIRED → SIMULATING → RECORDED → LANE_RELEASED, terminal on
// completion or error.
type State string

const (
	StateRequested       State = "REQUESTED"
	StateApprovalPending State = "APPROVAL_PENDING"
	StateApprovalGranted State = "APPROVAL_GRANTED"
	StateApprovalDenied  State = "APPROVAL_DENIED"
	StateApprovalTimeout State = "APPROVAL_TIMED_OUT"
	StateLaneAcquired    State = "LANE_ACQUIRED"
	StateSimulating      State = "SIMULATING"
	StateRecorded        State = "RECORDED"
	StateLaneReleased    State = "LANE_RELEASED"
)

// TimelineEntry is one decision step in a raid's append-only timeline.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
}

// ApprovalRequest is the blast-radius summary shown to an approver before
// a gated raid executes.
type ApprovalRequest struct {
	RaidID            types.ID       `json:"raid_id"`
	Vector            string         `json:"vector"`
	Severity          types.Severity `json:"severity"`
	AffectedResources int            `json:"affected_resources"`
	ResourceIDs       []string       `json:"resource_ids"`
	Environment       string         `json:"environment"`
}

// ApprovalResponse is the approver's decision.
type ApprovalResponse struct {
	Approved   bool   `json:"approved"`
	ApproverID string `json:"approver_id,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

// ApprovalMetadata records how a gated raid cleared (or skipped) its gate.
type ApprovalMetadata struct {
	Required   bool      `json:"required"`
	Approved   bool      `json:"approved"`
	ApproverID string    `json:"approver_id,omitempty"`
	DecidedAt  time.Time `json:"decided_at,omitempty"`
}

// Result is created once per raid invocation. The timeline is an append-only
// ordered sequence of decision steps built during simulation.
type Result struct {
	RaidID       types.ID         `json:"raid_id"`
	Target       string           `json:"target"`
	Vector       string           `json:"vector"`
	Severity     types.Severity   `json:"severity"`
	Intensity    int              `json:"intensity"`
	Success      bool             `json:"success"`
	ControlsHeld bool             `json:"controls_held"`
	Findings     []string         `json:"findings"`
	Timeline     []TimelineEntry  `json:"timeline"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at"`
	DurationMs   int64            `json:"duration_ms"`
	Approval     ApprovalMetadata `json:"approval"`
	FinalState   State            `json:"final_state"`
}
