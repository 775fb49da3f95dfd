package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// ResourceSnapshot is an immutable point-in-time observation of a target's
// configuration (identity pool, bucket, etc.). Snapshots are owned by the
// caller and passed by value into every primitive; nothing in the core
// mutates one in place.
type ResourceSnapshot struct {
	ResourceID   string         `json:"resource_id"`
	ResourceType string         `json:"resource_type"`
	Provider     string         `json:"provider"`
	Environment  string         `json:"environment,omitempty"`
	CapturedAt   time.Time      `json:"captured_at"`
	Config       map[string]any `json:"config"`
}

// Resolve looks up a dot-path field on the snapshot's configuration,
// e.g. "passwordPolicy.minimumLength". Missing intermediate objects
// resolve to nil rather than panicking; the boolean reports whether
// the full path resolved to a value.
func (s ResourceSnapshot) Resolve(path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = s.Config
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Clone returns a structural deep copy of the snapshot. The configuration
// tree is copied map-by-map so that guard state can never alias the
// caller's snapshot.
func (s ResourceSnapshot) Clone() ResourceSnapshot {
	out := s
	out.Config = cloneValue(s.Config).(map[string]any)
	return out
}

// Digest returns the hex-encoded SHA-256 digest of the snapshot's canonical
// JSON encoding. encoding/json sorts map keys, which makes the encoding
// canonical for the plain-data config trees snapshots carry.
func (s ResourceSnapshot) Digest() string {
	data, err := json.Marshal(s)
	if err != nil {
		// Snapshots hold plain data (maps, slices, scalars); marshal
		// can only fail on caller-injected unsupported types.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// cloneValue deep-copies the JSON-shaped value trees snapshots carry.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
