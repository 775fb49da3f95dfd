package mission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// SQLite driver for the mission run history.
	_ "github.com/mattn/go-sqlite3"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Store persists mission run history in SQLite. The evidence chain remains
// the durable audit store; this table only supports listing and status
// queries over past runs.
type Store struct {
	db *sql.DB
}

// StoreConfig holds mission-store options.
type StoreConfig struct {
	Path        string
	MaxConns    int
	BusyTimeout time.Duration
	WALMode     bool
}

// DefaultStoreConfig returns sensible defaults for path.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{
		Path:        path,
		MaxConns:    10,
		BusyTimeout: 5 * time.Second,
		WALMode:     true,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS missions (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    target        TEXT NOT NULL,
    provider      TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    drift         INTEGER NOT NULL DEFAULT 0,
    raid_success  INTEGER,
    evidence_path TEXT NOT NULL DEFAULT '',
    result_json   TEXT NOT NULL DEFAULT '{}',
    started_at    TIMESTAMP NOT NULL,
    completed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_missions_target ON missions(target);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
`

// OpenStore opens (and migrates) the mission store at cfg.Path.
func OpenStore(cfg StoreConfig) (*Store, error) {
	journal := "DELETE"
	if cfg.WALMode {
		journal = "WAL"
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=%s&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path, journal, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.MISSION_STORE_FAILED, "failed to open mission store", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.WrapError(types.MISSION_STORE_FAILED, "failed to ping mission store", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, types.WrapError(types.MISSION_STORE_FAILED, "failed to migrate mission store", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts the initial record for a running mission.
func (s *Store) Save(ctx context.Context, result *Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO missions (id, name, target, provider, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		result.MissionID.String(), result.Name, result.Target, result.Provider,
		string(result.Status), result.StartedAt.UTC())
	if err != nil {
		return types.WrapError(types.MISSION_STORE_FAILED, "failed to save mission", err)
	}
	return nil
}

// Finish updates a mission's terminal state and stores the full result as
// JSON for later inspection.
func (s *Store) Finish(ctx context.Context, result *Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return types.WrapError(types.MISSION_STORE_FAILED, "failed to marshal mission result", err)
	}

	var raidSuccess *bool
	if result.Raid != nil {
		raidSuccess = &result.Raid.Success
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE missions
		SET status = ?, drift = ?, raid_success = ?, evidence_path = ?,
		    result_json = ?, completed_at = ?
		WHERE id = ?`,
		string(result.Status), result.Drift.DriftDetected, raidSuccess,
		result.EvidencePath, string(payload), result.CompletedAt.UTC(),
		result.MissionID.String())
	if err != nil {
		return types.WrapError(types.MISSION_STORE_FAILED, "failed to update mission", err)
	}
	return nil
}

// MissionRecord is one row of run history.
type MissionRecord struct {
	MissionID    types.ID   `json:"mission_id"`
	Name         string     `json:"name"`
	Target       string     `json:"target"`
	Provider     string     `json:"provider"`
	Status       Status     `json:"status"`
	Drift        bool       `json:"drift"`
	RaidSuccess  *bool      `json:"raid_success,omitempty"`
	EvidencePath string     `json:"evidence_path,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Get retrieves one mission by id.
func (s *Store) Get(ctx context.Context, id types.ID) (*MissionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, target, provider, status, drift, raid_success,
		       evidence_path, started_at, completed_at
		FROM missions WHERE id = ?`, id.String())

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.MISSION_NOT_FOUND,
			fmt.Sprintf("mission %s not found", id))
	}
	if err != nil {
		return nil, types.WrapError(types.MISSION_STORE_FAILED, "failed to query mission", err)
	}
	return record, nil
}

// ListByTarget returns all missions for one target, newest first.
func (s *Store) ListByTarget(ctx context.Context, target string, limit int) ([]*MissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target, provider, status, drift, raid_success,
		       evidence_path, started_at, completed_at
		FROM missions WHERE target = ?
		ORDER BY started_at DESC LIMIT ?`, target, limit)
	if err != nil {
		return nil, types.WrapError(types.MISSION_STORE_FAILED, "failed to list missions", err)
	}
	defer rows.Close()

	var records []*MissionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, types.WrapError(types.MISSION_STORE_FAILED, "failed to scan mission", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Count returns the number of stored missions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions`).Scan(&n); err != nil {
		return 0, types.WrapError(types.MISSION_STORE_FAILED, "failed to count missions", err)
	}
	return n, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*MissionRecord, error) {
	var (
		record      MissionRecord
		id          string
		status      string
		raidSuccess sql.NullBool
		completedAt sql.NullTime
	)

	err := row.Scan(&id, &record.Name, &record.Target, &record.Provider,
		&status, &record.Drift, &raidSuccess, &record.EvidencePath,
		&record.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	record.MissionID = types.ID(id)
	record.Status = Status(status)
	if raidSuccess.Valid {
		record.RaidSuccess = &raidSuccess.Bool
	}
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}
	return &record, nil
}
