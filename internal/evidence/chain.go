package evidence

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Operation names for the three logical sub-events recorded per raid.
const (
	OpRaidInitiated = "raid_initiated"
	OpRaidExecuted  = "raid_executed"
	OpRaidCompleted = "raid_completed"
)

// Record is one unit of the hash chain: an immutable, append-only log line.
//
// hash = SHA256(canonical JSON of {sequence, timestamp, operation, data,
// previousHash}). For every record at index i>0, PreviousHash equals the
// previous record's Hash; the first record's PreviousHash is null. Once a
// record is appended it is never modified; integrity is provable only by
// recomputing hashes.
type Record struct {
	Sequence     int64          `json:"sequence"`
	Timestamp    string         `json:"timestamp"`
	Operation    string         `json:"operation"`
	Data         map[string]any `json:"data"`
	PreviousHash *string        `json:"previousHash"`
	Hash         string         `json:"hash"`
}

// AppendResult summarizes one Append call.
type AppendResult struct {
	RecordsWritten int    `json:"records_written"`
	FirstSequence  int64  `json:"first_sequence"`
	LastSequence   int64  `json:"last_sequence"`
	LastHash       string `json:"last_hash"`
}

// VerifyResult is the outcome of re-deriving an entire chain.
// BrokenAt carries the 1-based line number of the first mismatch, or nil
// when the chain is intact.
type VerifyResult struct {
	Valid       bool   `json:"valid"`
	RecordCount int    `json:"record_count"`
	BrokenAt    *int   `json:"broken_at"`
	Reason      string `json:"reason,omitempty"`
}

// RaidSummary is the slice of a raid result the chain records. Keeping the
// chain's input narrow avoids an import cycle with the raid engine and pins
// down exactly what each sub-event serializes.
type RaidSummary struct {
	RaidID       types.ID       `json:"raid_id"`
	Target       string         `json:"target"`
	Vector       string         `json:"vector"`
	Severity     types.Severity `json:"severity"`
	Intensity    int            `json:"intensity"`
	Success      bool           `json:"success"`
	ControlsHeld bool           `json:"controls_held"`
	Findings     []string       `json:"findings"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	DurationMs   int64          `json:"duration_ms"`
}

// Chain is one evidence-log instance: a monotonic sequence counter plus the
// hash of the most recently appended record, backed by a newline-delimited
// JSON file. Sequence state is scoped to the instance, never global; two
// independent chains must not share counters.
//
// Thread Safety: all methods are safe for concurrent use; appends within
// one chain are totally ordered by the internal mutex.
type Chain struct {
	mu       sync.Mutex
	path     string
	sequence int64
	lastHash *string
	now      func() time.Time
}

// NewChain creates an evidence chain writing through to path. The file is
// created on first append. If the file already has records, call Resume to
// continue its sequence instead of starting a parallel chain.
func NewChain(path string) *Chain {
	return &Chain{
		path: path,
		now:  time.Now,
	}
}

// Resume loads the existing file's tail so subsequent appends extend the
// chain rather than restarting sequence numbers. Returns an error when the
// existing chain does not verify.
func (c *Chain) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, verify := readAndVerify(c.path)
	if !verify.Valid {
		return types.NewError(types.EVIDENCE_CHAIN_BROKEN,
			fmt.Sprintf("cannot resume: chain broken at line %d", *verify.BrokenAt))
	}
	if len(records) > 0 {
		last := records[len(records)-1]
		c.sequence = last.Sequence
		h := last.Hash
		c.lastHash = &h
	}
	return nil
}

// Append converts one raid result into three chained records (initiation,
// execution, completion) and appends them as JSON lines. Each record's
// hash covers the previous record's hash, so the file forms a verifiable
// total order of everything that happened on this chain.
func (c *Chain) Append(summary RaidSummary) (*AppendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, types.WrapError(types.EVIDENCE_APPEND_FAILED,
			"failed to open evidence file", err)
	}
	defer f.Close()

	events := []struct {
		operation string
		data      map[string]any
	}{
		{OpRaidInitiated, map[string]any{
			"raid_id":   summary.RaidID,
			"target":    summary.Target,
			"vector":    summary.Vector,
			"severity":  summary.Severity,
			"intensity": summary.Intensity,
		}},
		{OpRaidExecuted, map[string]any{
			"raid_id":  summary.RaidID,
			"findings": summary.Findings,
		}},
		{OpRaidCompleted, map[string]any{
			"raid_id":       summary.RaidID,
			"success":       summary.Success,
			"controls_held": summary.ControlsHeld,
			"duration_ms":   summary.DurationMs,
		}},
	}

	result := &AppendResult{}
	for i, ev := range events {
		record, err := c.buildRecord(ev.operation, ev.data)
		if err != nil {
			return nil, err
		}

		line, err := json.Marshal(record)
		if err != nil {
			return nil, types.WrapError(types.EVIDENCE_APPEND_FAILED,
				"failed to marshal evidence record", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return nil, types.WrapError(types.EVIDENCE_APPEND_FAILED,
				"failed to write evidence record", err)
		}

		// Only advance chain state after the line is durably written.
		c.sequence = record.Sequence
		h := record.Hash
		c.lastHash = &h

		if i == 0 {
			result.FirstSequence = record.Sequence
		}
		result.LastSequence = record.Sequence
		result.LastHash = record.Hash
		result.RecordsWritten++
	}

	return result, nil
}

// buildRecord assembles the next record in the chain and computes its hash.
func (c *Chain) buildRecord(operation string, data map[string]any) (Record, error) {
	record := Record{
		Sequence:     c.sequence + 1,
		Timestamp:    c.now().UTC().Format(time.RFC3339Nano),
		Operation:    operation,
		Data:         data,
		PreviousHash: c.lastHash,
	}

	hash, err := hashRecord(record)
	if err != nil {
		return Record{}, types.WrapError(types.EVIDENCE_APPEND_FAILED,
			"failed to hash evidence record", err)
	}
	record.Hash = hash
	return record, nil
}

// Verify re-derives the hash of every line in file order and checks both
// the previousHash linkage and the digest match. The first mismatch reports
// its 1-based line number and marks the whole chain invalid; verification
// never attempts partial recovery. An empty or missing file verifies as
// trivially valid with zero records.
func (c *Chain) Verify() VerifyResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, result := readAndVerify(c.path)
	return result
}

// VerifyFile verifies the chain at path without needing a live Chain.
func VerifyFile(path string) VerifyResult {
	_, result := readAndVerify(path)
	return result
}

// Reset truncates the evidence file and zeroes the in-memory counters.
// It does not verify before truncating. Intended for test and development
// use only.
func (c *Chain) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Truncate(c.path, 0); err != nil && !os.IsNotExist(err) {
		return types.WrapError(types.EVIDENCE_RESET_FAILED,
			"failed to truncate evidence file", err)
	}

	c.sequence = 0
	c.lastHash = nil
	return nil
}

// Path returns the file path this chain writes through to.
func (c *Chain) Path() string {
	return c.path
}

// readAndVerify walks the file top to bottom, recomputing each record's
// hash and checking linkage against its predecessor.
func readAndVerify(path string) ([]Record, VerifyResult) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, VerifyResult{Valid: true, RecordCount: 0}
		}
		broken := 1
		return nil, VerifyResult{Valid: false, BrokenAt: &broken,
			Reason: fmt.Sprintf("cannot open evidence file: %v", err)}
	}
	defer f.Close()

	var (
		records  []Record
		prevHash *string
		lineNo   int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			broken := lineNo
			return records, VerifyResult{Valid: false, RecordCount: lineNo,
				BrokenAt: &broken, Reason: "unparsable record"}
		}

		if !hashesEqual(record.PreviousHash, prevHash) {
			broken := lineNo
			return records, VerifyResult{Valid: false, RecordCount: lineNo,
				BrokenAt: &broken, Reason: "previous-hash linkage mismatch"}
		}

		expected, err := hashRecord(record)
		if err != nil || expected != record.Hash {
			broken := lineNo
			return records, VerifyResult{Valid: false, RecordCount: lineNo,
				BrokenAt: &broken, Reason: "record digest mismatch"}
		}

		records = append(records, record)
		h := record.Hash
		prevHash = &h
	}

	if err := scanner.Err(); err != nil {
		broken := lineNo + 1
		return records, VerifyResult{Valid: false, RecordCount: lineNo,
			BrokenAt: &broken, Reason: fmt.Sprintf("read error: %v", err)}
	}

	return records, VerifyResult{Valid: true, RecordCount: len(records)}
}

// hashRecord computes the SHA-256 digest over the canonical serialization of
// the record's hashable fields. encoding/json sorts map keys, which keeps
// the serialization canonical across append and verify.
func hashRecord(record Record) (string, error) {
	payload := struct {
		Sequence     int64          `json:"sequence"`
		Timestamp    string         `json:"timestamp"`
		Operation    string         `json:"operation"`
		Data         map[string]any `json:"data"`
		PreviousHash *string        `json:"previousHash"`
	}{
		Sequence:     record.Sequence,
		Timestamp:    record.Timestamp,
		Operation:    record.Operation,
		Data:         record.Data,
		PreviousHash: record.PreviousHash,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func hashesEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
