package types

// Severity represents the severity level of a finding or attack vector.
// The wire format uses upper-case values to match plugin manifests.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// severityRank orders severities for threshold comparisons.
// Higher rank means more severe.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// String returns the string representation of the Severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is one of the known levels.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s meets or exceeds threshold.
// Unknown severities never satisfy any threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	sr, ok := severityRank[s]
	if !ok {
		return false
	}
	tr, ok := severityRank[threshold]
	if !ok {
		return false
	}
	return sr >= tr
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}
