package compliance

import (
	"github.com/grcorsair/corsair-sub002/internal/drift"
	"github.com/grcorsair/corsair-sub002/internal/plugin"
	"github.com/grcorsair/corsair-sub002/internal/raid"
)

// EvidenceType classifies what a mapping entry proves about a control.
// A successful simulated attack proves a gap ("negative" evidence); a
// failed one proves the control held ("positive" evidence).
type EvidenceType string

const (
	EvidenceNegative EvidenceType = "negative"
	EvidencePositive EvidenceType = "positive"
)

// Mapping is one resolved framework layer for a finding or attack vector:
// technique, control, or criteria identifier plus what the evidence shows.
type Mapping struct {
	Source       string       `json:"source"` // drift field or vector id
	FrameworkRef string       `json:"framework_ref"`
	Layer        int          `json:"layer"` // 0 = technique, 1 = control, 2 = criteria
	EvidenceType EvidenceType `json:"evidence_type"`
}

// builtinDriftMappings is the fallback table used when no plugin supplies a
// mapping for a drift field.
var builtinDriftMappings = map[string][]string{
	"mfaConfiguration":              {"T1621", "NIST-IA-2(1)", "SOC2-CC6.1"},
	"passwordPolicy.minimumLength":  {"T1110.003", "NIST-IA-5(1)", "SOC2-CC6.1"},
	"tokenValidityHours":            {"T1550.001", "NIST-AC-12", "SOC2-CC6.3"},
	"publicAccessBlock.blockPublicAcls": {"T1530", "NIST-AC-3", "SOC2-CC6.6"},
}

// builtinVectorMappings is the fallback table for attack vectors.
var builtinVectorMappings = map[string][]string{
	"mfa-bypass":       {"T1621", "NIST-IA-2(1)", "SOC2-CC6.1"},
	"password-spray":   {"T1110.003", "NIST-IA-5(1)", "SOC2-CC6.1"},
	"token-replay":     {"T1550.001", "NIST-AC-12", "SOC2-CC6.3"},
	"public-access":    {"T1530", "NIST-AC-3", "SOC2-CC6.6"},
	"session-fixation": {"T1563", "NIST-SC-23", "SOC2-CC6.6"},
}

// Mapper resolves findings and raid vectors to external framework
// identifier chains via plugin-supplied tables with built-in fallbacks.
// Mapping is pure; the mapper holds only the registry reference.
type Mapper struct {
	registry *plugin.Registry
}

// NewMapper creates a compliance mapper. registry may be nil, in which
// case only the built-in tables apply.
func NewMapper(registry *plugin.Registry) *Mapper {
	return &Mapper{registry: registry}
}

// MapDrift resolves each drifted finding to its framework chain. Findings
// without drift carry positive evidence for the same chain; unmapped fields
// produce no entries.
func (m *Mapper) MapDrift(providerID string, findings []drift.Finding) []Mapping {
	var out []Mapping
	for _, f := range findings {
		chain := m.driftChain(providerID, f.Field)
		evidence := EvidencePositive
		if f.Drift {
			evidence = EvidenceNegative
		}
		for layer, ref := range chain {
			out = append(out, Mapping{
				Source:       f.Field,
				FrameworkRef: ref,
				Layer:        layer,
				EvidenceType: evidence,
			})
		}
	}
	return out
}

// MapRaid resolves a raid result's vector to its framework chain. Success
// means a gap was proven (negative evidence); failure means the control
// held (positive evidence).
func (m *Mapper) MapRaid(providerID string, result *raid.Result) []Mapping {
	chain := m.vectorChain(providerID, result.Vector)

	evidence := EvidencePositive
	if result.Success {
		evidence = EvidenceNegative
	}

	out := make([]Mapping, 0, len(chain))
	for layer, ref := range chain {
		out = append(out, Mapping{
			Source:       result.Vector,
			FrameworkRef: ref,
			Layer:        layer,
			EvidenceType: evidence,
		})
	}
	return out
}

// driftChain prefers the provider's plugin table, falling back to the
// built-in one.
func (m *Mapper) driftChain(providerID, field string) []string {
	if chain, ok := m.pluginTable(providerID, true)[field]; ok {
		return chain
	}
	return builtinDriftMappings[field]
}

func (m *Mapper) vectorChain(providerID, vector string) []string {
	if chain, ok := m.pluginTable(providerID, false)[vector]; ok {
		return chain
	}
	return builtinVectorMappings[vector]
}

// pluginTable returns the provider's drift or vector table, or nil when
// the provider has no registered mappings.
func (m *Mapper) pluginTable(providerID string, driftTable bool) map[string][]string {
	if m.registry == nil {
		return nil
	}
	manifest, err := m.registry.Get(providerID)
	if err != nil || manifest.FrameworkMappings == nil {
		return nil
	}
	if driftTable {
		return manifest.FrameworkMappings.Drift
	}
	return manifest.FrameworkMappings.AttackVectors
}
