package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

func testSummary() RaidSummary {
	started := time.Now().Add(-time.Second)
	return RaidSummary{
		RaidID:       types.NewID(),
		Target:       "pool-1",
		Vector:       "mfa-bypass",
		Severity:     types.SeverityCritical,
		Intensity:    7,
		Success:      true,
		ControlsHeld: false,
		Findings:     []string{"second factor is disabled"},
		StartedAt:    started,
		CompletedAt:  time.Now(),
		DurationMs:   1000,
	}
}

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	return NewChain(filepath.Join(t.TempDir(), "evidence.jsonl"))
}

func TestChain_AppendRoundTrip(t *testing.T) {
	chain := newTestChain(t)

	result, err := chain.Append(testSummary())
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordsWritten)
	assert.Equal(t, int64(1), result.FirstSequence)
	assert.Equal(t, int64(3), result.LastSequence)

	verify := chain.Verify()
	assert.True(t, verify.Valid)
	assert.Equal(t, 3, verify.RecordCount)
	assert.Nil(t, verify.BrokenAt)

	// Check structure on disk: operations in order, sequences 1..3, first
	// previousHash null.
	data, err := os.ReadFile(chain.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var records []Record
	for _, line := range lines {
		var r Record
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		records = append(records, r)
	}

	assert.Equal(t, OpRaidInitiated, records[0].Operation)
	assert.Equal(t, OpRaidExecuted, records[1].Operation)
	assert.Equal(t, OpRaidCompleted, records[2].Operation)
	assert.Nil(t, records[0].PreviousHash)
	for i, r := range records {
		assert.Equal(t, int64(i+1), r.Sequence)
		if i > 0 {
			require.NotNil(t, r.PreviousHash)
			assert.Equal(t, records[i-1].Hash, *r.PreviousHash)
		}
	}
}

func TestChain_SequencesContinueAcrossAppends(t *testing.T) {
	chain := newTestChain(t)

	_, err := chain.Append(testSummary())
	require.NoError(t, err)
	result, err := chain.Append(testSummary())
	require.NoError(t, err)

	assert.Equal(t, int64(4), result.FirstSequence)
	assert.Equal(t, int64(6), result.LastSequence)

	verify := chain.Verify()
	assert.True(t, verify.Valid)
	assert.Equal(t, 6, verify.RecordCount)
}

func TestChain_IndependentChainsDoNotShareSequence(t *testing.T) {
	dir := t.TempDir()
	a := NewChain(filepath.Join(dir, "a.jsonl"))
	b := NewChain(filepath.Join(dir, "b.jsonl"))

	resA, err := a.Append(testSummary())
	require.NoError(t, err)
	resB, err := b.Append(testSummary())
	require.NoError(t, err)

	assert.Equal(t, int64(1), resA.FirstSequence)
	assert.Equal(t, int64(1), resB.FirstSequence)
}

func TestChain_VerifyMissingFile(t *testing.T) {
	result := VerifyFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.RecordCount)
	assert.Nil(t, result.BrokenAt)
}

func TestChain_VerifyIsIdempotent(t *testing.T) {
	chain := newTestChain(t)
	_, err := chain.Append(testSummary())
	require.NoError(t, err)

	first := chain.Verify()
	second := chain.Verify()
	assert.Equal(t, first, second)
}

func TestChain_TamperDetection(t *testing.T) {
	for _, tamperLine := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("line_%d", tamperLine), func(t *testing.T) {
			chain := newTestChain(t)
			_, err := chain.Append(testSummary())
			require.NoError(t, err)

			data, err := os.ReadFile(chain.Path())
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")

			// Flip one field inside the record's data payload.
			var record map[string]any
			require.NoError(t, json.Unmarshal([]byte(lines[tamperLine-1]), &record))
			record["data"].(map[string]any)["tampered"] = true
			mutated, err := json.Marshal(record)
			require.NoError(t, err)
			lines[tamperLine-1] = string(mutated)

			require.NoError(t, os.WriteFile(chain.Path(),
				[]byte(strings.Join(lines, "\n")+"\n"), 0o644))

			verify := VerifyFile(chain.Path())
			assert.False(t, verify.Valid)
			require.NotNil(t, verify.BrokenAt)
			assert.Equal(t, tamperLine, *verify.BrokenAt)
		})
	}
}

func TestChain_TamperedHashField(t *testing.T) {
	chain := newTestChain(t)
	_, err := chain.Append(testSummary())
	require.NoError(t, err)

	data, err := os.ReadFile(chain.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	var record Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &record))
	record.Hash = strings.Repeat("0", 64)
	mutated, err := json.Marshal(record)
	require.NoError(t, err)
	lines[1] = string(mutated)

	require.NoError(t, os.WriteFile(chain.Path(),
		[]byte(strings.Join(lines, "\n")+"\n"), 0o644))

	verify := VerifyFile(chain.Path())
	assert.False(t, verify.Valid)
	require.NotNil(t, verify.BrokenAt)
	assert.Equal(t, 2, *verify.BrokenAt)
}

func TestChain_Reset(t *testing.T) {
	chain := newTestChain(t)
	_, err := chain.Append(testSummary())
	require.NoError(t, err)

	require.NoError(t, chain.Reset())

	verify := chain.Verify()
	assert.True(t, verify.Valid)
	assert.Equal(t, 0, verify.RecordCount)

	// Sequences restart after reset.
	result, err := chain.Append(testSummary())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.FirstSequence)
	assert.True(t, chain.Verify().Valid)
}

func TestChain_ResumeContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.jsonl")

	first := NewChain(path)
	_, err := first.Append(testSummary())
	require.NoError(t, err)

	second := NewChain(path)
	require.NoError(t, second.Resume())
	result, err := second.Append(testSummary())
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.FirstSequence)

	verify := VerifyFile(path)
	assert.True(t, verify.Valid)
	assert.Equal(t, 6, verify.RecordCount)
}
