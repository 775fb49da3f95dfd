package events

import (
	"time"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// EventType identifies the category and nature of an event in the Corsair
// pipeline.
type EventType string

// Mission lifecycle events.
const (
	EventMissionStarted   EventType = "mission.started"
	EventMissionCompleted EventType = "mission.completed"
	EventMissionFailed    EventType = "mission.failed"
)

// Pipeline stage events.
const (
	EventDriftDetected    EventType = "drift.detected"
	EventRaidCompleted    EventType = "raid.completed"
	EventEvidenceAppended EventType = "evidence.appended"
	EventGuardReleased    EventType = "guard.released"
)

// Plugin events.
const (
	EventPluginDiscovered EventType = "plugin.discovered"
	EventPluginSkipped    EventType = "plugin.skipped"
)

// Event is one observability record fanned out to subscribers.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	MissionID types.ID       `json:"mission_id,omitempty"`
	Target    string         `json:"target,omitempty"`
	Severity  types.Severity `json:"severity,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Filter selects which events a subscriber receives. Zero-value fields
// match everything.
type Filter struct {
	Types     []EventType
	MissionID types.ID
	Target    string
}

// Matches reports whether an event passes the filter.
func (f Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if !f.MissionID.IsZero() && event.MissionID != f.MissionID {
		return false
	}

	if f.Target != "" && event.Target != f.Target {
		return false
	}

	return true
}
