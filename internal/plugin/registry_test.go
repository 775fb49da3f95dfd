package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

const validManifest = `{
  "providerId": "aws-s3",
  "providerName": "AWS S3",
  "version": "1.0.0",
  "attackVectors": [
    {
      "id": "public-access",
      "name": "Public bucket exposure",
      "severity": "CRITICAL",
      "mitreMapping": "T1530",
      "intensity": {"min": 0, "max": 10, "default": 5}
    }
  ],
  "frameworkMappings": {
    "attackVectors": {"public-access": ["T1530", "NIST-AC-3"]}
  }
}`

const missingProviderID = `{
  "providerName": "Broken",
  "version": "1.0.0",
  "attackVectors": [{"id": "x", "name": "X", "severity": "LOW"}]
}`

func writeManifest(t *testing.T, dir, subdir, name, content string) string {
	t.Helper()
	full := filepath.Join(dir, subdir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	path := filepath.Join(full, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseManifest_Valid(t *testing.T) {
	m, err := ParseManifest([]byte(validManifest))
	require.NoError(t, err)
	assert.Equal(t, "aws-s3", m.ProviderID)
	require.Len(t, m.AttackVectors, 1)
	assert.Equal(t, types.SeverityCritical, m.AttackVectors[0].Severity)

	vector, ok := m.Vector("public-access")
	require.True(t, ok)
	assert.Equal(t, "Public bucket exposure", vector.Name)

	_, ok = m.Vector("nonexistent")
	assert.False(t, ok)
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{definitely not json`},
		{"missing providerId", missingProviderID},
		{"empty attackVectors", `{"providerId":"p","providerName":"P","version":"1","attackVectors":[]}`},
		{"vector missing name", `{"providerId":"p","providerName":"P","version":"1","attackVectors":[{"id":"x","severity":"LOW"}]}`},
		{"bad severity", `{"providerId":"p","providerName":"P","version":"1","attackVectors":[{"id":"x","name":"X","severity":"EXTREME"}]}`},
		{"inverted intensity", `{"providerId":"p","providerName":"P","version":"1","attackVectors":[{"id":"x","name":"X","severity":"LOW","intensity":{"min":9,"max":2,"default":5}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, types.PLUGIN_MANIFEST_INVALID, types.CodeOf(err))
		})
	}
}

func TestDiscover_MixedValidity(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "aws-s3", "aws-s3-manifest.json", validManifest)
	writeManifest(t, dir, "broken", "broken-manifest.json", missingProviderID)

	registry := NewRegistry()
	result, err := registry.Discover(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DiscoveredCount)
	assert.Equal(t, []string{"aws-s3"}, result.Plugins)
	require.Len(t, result.InvalidManifests, 1)
	assert.Contains(t, result.InvalidManifests[0].Path, "broken")
}

func TestDiscover_IgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "aws-s3", "aws-s3-manifest.json", validManifest)
	writeManifest(t, dir, "aws-s3", "notes.txt", "not a manifest")
	writeManifest(t, dir, "aws-s3", "config.json", `{"unrelated": true}`)

	registry := NewRegistry()
	result, err := registry.Discover(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DiscoveredCount)
	assert.Empty(t, result.InvalidManifests)
}

func TestDiscover_FirstRegistrationWins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a-first", "aws-s3-manifest.json", validManifest)
	writeManifest(t, dir, "b-second", "aws-s3-manifest.json", validManifest)

	registry := NewRegistry()
	result, err := registry.Discover(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DiscoveredCount)
	assert.Equal(t, 1, registry.Count())
	require.Len(t, result.InvalidManifests, 1)
	assert.Contains(t, result.InvalidManifests[0].Reason, "already registered")
}

func TestDiscover_MissingDirectory(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Discover(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, types.PLUGIN_SCAN_FAILED, types.CodeOf(err))
}

func TestRegistry_GetAndList(t *testing.T) {
	registry := NewRegistry()
	m, err := ParseManifest([]byte(validManifest))
	require.NoError(t, err)
	require.NoError(t, registry.Register(m))

	got, err := registry.Get("aws-s3")
	require.NoError(t, err)
	assert.Equal(t, "AWS S3", got.ProviderName)

	_, err = registry.Get("aws-cognito")
	require.Error(t, err)
	assert.Equal(t, types.PLUGIN_NOT_FOUND, types.CodeOf(err))

	assert.Len(t, registry.List(), 1)
}

func TestRegistry_AllVectors(t *testing.T) {
	registry := NewRegistry()

	first, err := ParseManifest([]byte(validManifest))
	require.NoError(t, err)
	require.NoError(t, registry.Register(first))

	second, err := ParseManifest([]byte(`{
		"providerId": "aws-cognito",
		"providerName": "AWS Cognito",
		"version": "2.1.0",
		"attackVectors": [
			{"id": "mfa-bypass", "name": "MFA bypass", "severity": "CRITICAL"},
			{"id": "password-spray", "name": "Password spray", "severity": "HIGH"}
		]
	}`))
	require.NoError(t, err)
	require.NoError(t, registry.Register(second))

	vectors := registry.AllVectors()
	require.Len(t, vectors, 3)
	assert.Equal(t, "aws-s3", vectors[0].ProviderID)
	assert.Equal(t, "aws-cognito", vectors[1].ProviderID)
	assert.Equal(t, "mfa-bypass", vectors[1].Vector.ID)
}

func TestRegistry_DuplicateRegister(t *testing.T) {
	registry := NewRegistry()
	m, err := ParseManifest([]byte(validManifest))
	require.NoError(t, err)
	require.NoError(t, registry.Register(m))
	require.Error(t, registry.Register(m))
}
