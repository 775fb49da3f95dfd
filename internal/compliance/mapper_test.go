package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grcorsair/corsair-sub002/internal/drift"
	"github.com/grcorsair/corsair-sub002/internal/plugin"
	"github.com/grcorsair/corsair-sub002/internal/raid"
	"github.com/grcorsair/corsair-sub002/internal/types"
)

func TestMapRaid_SuccessIsNegativeEvidence(t *testing.T) {
	mapper := NewMapper(nil)

	result := &raid.Result{Vector: "mfa-bypass", Success: true}
	mappings := mapper.MapRaid("aws-cognito", result)

	require.Len(t, mappings, 3)
	for layer, m := range mappings {
		assert.Equal(t, EvidenceNegative, m.EvidenceType)
		assert.Equal(t, layer, m.Layer)
		assert.Equal(t, "mfa-bypass", m.Source)
	}
	assert.Equal(t, "T1621", mappings[0].FrameworkRef)
}

func TestMapRaid_FailureIsPositiveEvidence(t *testing.T) {
	mapper := NewMapper(nil)

	result := &raid.Result{Vector: "password-spray", Success: false}
	mappings := mapper.MapRaid("aws-cognito", result)

	require.NotEmpty(t, mappings)
	for _, m := range mappings {
		assert.Equal(t, EvidencePositive, m.EvidenceType)
	}
}

func TestMapRaid_UnmappedVector(t *testing.T) {
	mapper := NewMapper(nil)
	mappings := mapper.MapRaid("aws-cognito", &raid.Result{Vector: "novel-vector"})
	assert.Empty(t, mappings)
}

func TestMapDrift_EvidenceFollowsDriftFlag(t *testing.T) {
	mapper := NewMapper(nil)
	now := time.Now()

	mappings := mapper.MapDrift("aws-cognito", []drift.Finding{
		{Field: "mfaConfiguration", Drift: true, Timestamp: now},
		{Field: "passwordPolicy.minimumLength", Drift: false, Timestamp: now},
	})

	require.Len(t, mappings, 6)
	for _, m := range mappings[:3] {
		assert.Equal(t, EvidenceNegative, m.EvidenceType)
	}
	for _, m := range mappings[3:] {
		assert.Equal(t, EvidencePositive, m.EvidenceType)
	}
}

func TestMapper_PluginTablesTakePrecedence(t *testing.T) {
	registry := plugin.NewRegistry()
	require.NoError(t, registry.Register(&plugin.Manifest{
		ProviderID:   "aws-cognito",
		ProviderName: "AWS Cognito",
		Version:      "1.0.0",
		AttackVectors: []plugin.AttackVector{
			{ID: "mfa-bypass", Name: "MFA bypass", Severity: types.SeverityCritical},
		},
		FrameworkMappings: &plugin.FrameworkMappings{
			AttackVectors: map[string][]string{
				"mfa-bypass": {"CUSTOM-1", "CUSTOM-2"},
			},
		},
	}))

	mapper := NewMapper(registry)
	mappings := mapper.MapRaid("aws-cognito", &raid.Result{Vector: "mfa-bypass", Success: true})

	require.Len(t, mappings, 2)
	assert.Equal(t, "CUSTOM-1", mappings[0].FrameworkRef)
	assert.Equal(t, "CUSTOM-2", mappings[1].FrameworkRef)
}

func TestMapper_FallsBackWhenProviderUnknown(t *testing.T) {
	mapper := NewMapper(plugin.NewRegistry())
	mappings := mapper.MapRaid("unknown-provider", &raid.Result{Vector: "token-replay", Success: true})
	require.Len(t, mappings, 3)
	assert.Equal(t, "T1550.001", mappings[0].FrameworkRef)
}
