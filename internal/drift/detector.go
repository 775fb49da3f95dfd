package drift

import (
	"fmt"
	"strings"
	"time"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Operator is a comparison operator applied by an expectation.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpExists   Operator = "exists"
	OpContains Operator = "contains"
)

// Expectation declares how one configuration field should look.
// Expectations are stateless; Field is a dot-path into the snapshot config.
type Expectation struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Finding is the immutable record of one expectation comparison.
// It is created fresh per Detect call and never mutated afterward.
type Finding struct {
	ID          types.ID       `json:"id"`
	Field       string         `json:"field"`
	Expected    any            `json:"expected"`
	Actual      any            `json:"actual"`
	Drift       bool           `json:"drift"`
	Severity    types.Severity `json:"severity"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Result is the outcome of one drift-detection pass.
type Result struct {
	Target        string    `json:"target"`
	DriftDetected bool      `json:"drift_detected"`
	Findings      []Finding `json:"findings"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Detect compares a configuration snapshot against declared expectations.
// It is a pure function: one finding per expectation, in input order, with
// DriftDetected set when any expectation is not met. A malformed expectation
// (unknown operator, incomparable values) resolves to "no drift" rather than
// aborting the pass.
func Detect(snapshot types.ResourceSnapshot, expectations []Expectation) Result {
	now := time.Now().UTC()
	result := Result{
		Target:    snapshot.ResourceID,
		Findings:  make([]Finding, 0, len(expectations)),
		CheckedAt: now,
	}

	for _, exp := range expectations {
		actual, found := snapshot.Resolve(exp.Field)

		met := evaluate(exp.Operator, actual, found, exp.Value)
		drift := !met

		finding := Finding{
			ID:        types.NewID(),
			Field:     exp.Field,
			Expected:  exp.Value,
			Actual:    actual,
			Drift:     drift,
			Severity:  severityFor(exp.Field, actual, drift),
			Timestamp: now,
		}
		if drift {
			finding.Description = fmt.Sprintf("field %q: expected %s %v, observed %v",
				exp.Field, exp.Operator, exp.Value, actual)
			result.DriftDetected = true
		} else {
			finding.Description = fmt.Sprintf("field %q matches expectation", exp.Field)
		}

		result.Findings = append(result.Findings, finding)
	}

	return result
}

// evaluate applies op to the observed value. Unknown operators report the
// expectation as met so one malformed entry cannot fail a whole pass.
func evaluate(op Operator, actual any, found bool, expected any) bool {
	switch op {
	case OpExists:
		return found
	case OpEq:
		// An unresolvable field is "no drift", not a failed comparison;
		// callers who need presence checks use the exists operator.
		return !found || looseEqual(actual, expected)
	case OpNeq:
		return !found || !looseEqual(actual, expected)
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if !found || !aok || !bok {
			return true
		}
		switch op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpContains:
		if !found {
			return true
		}
		return contains(actual, expected)
	default:
		return true
	}
}

// looseEqual compares scalars the way JSON sees them: all numbers compare
// as float64, everything else by string form.
func looseEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// contains handles both string containment and slice membership.
func contains(actual, expected any) bool {
	switch a := actual.(type) {
	case string:
		return strings.Contains(a, fmt.Sprintf("%v", expected))
	case []any:
		for _, item := range a {
			if looseEqual(item, expected) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// severityFor assigns severity from a fixed rule table keyed on field name
// and observed value. The table is deliberately not user-configurable so
// that scoring stays deterministic and testable.
func severityFor(field string, actual any, drift bool) types.Severity {
	if !drift {
		return types.SeverityLow
	}

	lower := strings.ToLower(field)
	value := strings.ToUpper(fmt.Sprintf("%v", actual))

	if strings.Contains(lower, "mfa") {
		switch value {
		case "OFF", "NONE", "DISABLED", "FALSE":
			return types.SeverityCritical
		case "OPTIONAL":
			return types.SeverityHigh
		}
		return types.SeverityMedium
	}

	return types.SeverityMedium
}
