/*
Package sqlite provides SQLite-backed persistence for the incentive engine.

PURPOSE:
  Persists the three document families around the engine: scheme
  definitions (authored JSON), uploaded datasets (parsed rows), and run
  results (payouts plus their audit trail). The engine itself never
  touches storage; the API layer loads inputs from here, computes, and
  writes the result back.

KEY TABLES:
  schemes:              Scheme documents, one row per saved definition
  datasets:             Uploaded datasets, one row per dataset name
  runs:                 One row per executed run (full result JSON)
  rule_hit_logs:        Flattened audit entries, append-only
  credit_distributions: Flattened distribution entries, append-only

APPEND-ONLY ENFORCEMENT:
  runs, rule_hit_logs and credit_distributions are never updated or
  deleted. A recomputation is a new run with a new id; datasets are the
  only documents replaced in place (re-upload is their correction
  mechanism).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/incentive.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - api/handlers.go: The only consumer
  - engine/types.go: The result types flattened here
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/incentive-engine/engine"
)

// Store implements persistence over a single SQLite database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schemes (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS datasets (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		row_count  INTEGER NOT NULL,
		rows_json  TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Runs (append-only)
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		scheme_id   TEXT NOT NULL,
		as_of_date  TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);

	-- Flattened audit entries for per-agent queries (append-only)
	CREATE TABLE IF NOT EXISTS rule_hit_logs (
		run_id       TEXT NOT NULL,
		agent_id     TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		rule_type    TEXT NOT NULL,
		rule_id      TEXT,
		record_id    TEXT,
		message      TEXT NOT NULL,
		details_json TEXT,
		created_at   TEXT NOT NULL,
		PRIMARY KEY (run_id, agent_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_rule_hit_logs_run
		ON rule_hit_logs(run_id, agent_id);

	-- Flattened distribution entries keyed by receiving manager (append-only)
	CREATE TABLE IF NOT EXISTS credit_distributions (
		run_id        TEXT NOT NULL,
		manager_id    TEXT NOT NULL,
		seq           INTEGER NOT NULL,
		from_agent    TEXT NOT NULL,
		role          TEXT NOT NULL,
		amount        TEXT NOT NULL,
		split_rule_id TEXT,
		base_payout   TEXT NOT NULL,
		percentage    TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		PRIMARY KEY (run_id, manager_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_credit_distributions_manager
		ON credit_distributions(manager_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEMES
// =============================================================================

// SchemeRecord is a stored scheme document.
type SchemeRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	CreatedAt  time.Time
}

// SaveScheme stores a new scheme document.
func (s *Store) SaveScheme(ctx context.Context, rec SchemeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schemes (id, name, config_json, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.ConfigJSON, rec.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// GetScheme returns a scheme by id, nil when not found.
func (s *Store) GetScheme(ctx context.Context, id string) (*SchemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec SchemeRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, config_json, created_at FROM schemes WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &rec.ConfigJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

// ListSchemes returns all stored schemes, newest first.
func (s *Store) ListSchemes(ctx context.Context) ([]SchemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, config_json, created_at FROM schemes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SchemeRecord
	for rows.Next() {
		var rec SchemeRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.ConfigJSON, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// DATASETS
// =============================================================================

// DatasetRecord is a stored upload including its parsed rows.
type DatasetRecord struct {
	ID        string
	Name      string
	Rows      []engine.Record
	CreatedAt time.Time
}

// DatasetInfo is the row-less listing form of a dataset.
type DatasetInfo struct {
	ID        string
	Name      string
	RowCount  int
	CreatedAt time.Time
}

// SaveDataset stores an upload, replacing any previous dataset with the
// same name.
func (s *Store) SaveDataset(ctx context.Context, rec DatasetRecord) error {
	rowsJSON, err := json.Marshal(rec.Rows)
	if err != nil {
		return fmt.Errorf("failed to encode dataset rows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, name, row_count, rows_json, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			row_count = excluded.row_count,
			rows_json = excluded.rows_json,
			created_at = excluded.created_at`,
		rec.ID, rec.Name, len(rec.Rows), string(rowsJSON), rec.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// GetDatasetByName returns a dataset with its rows, nil when not found.
func (s *Store) GetDatasetByName(ctx context.Context, name string) (*DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec DatasetRecord
	var rowsJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, rows_json, created_at FROM datasets WHERE name = ?`, name).
		Scan(&rec.ID, &rec.Name, &rowsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rowsJSON), &rec.Rows); err != nil {
		return nil, fmt.Errorf("failed to decode dataset rows: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

// ListDatasets returns metadata for all stored datasets.
func (s *Store) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, row_count, created_at FROM datasets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &info.Name, &info.RowCount, &createdAt); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// =============================================================================
// RUNS
// =============================================================================

// RunRecord is a persisted run: the result document plus its metadata.
type RunRecord struct {
	ID        string
	SchemeID  string
	AsOfDate  string
	Result    *engine.RunResult
	CreatedAt time.Time
}

// RunInfo is the result-less listing form of a run.
type RunInfo struct {
	ID        string
	SchemeID  string
	AsOfDate  string
	CreatedAt time.Time
}

// SaveRun persists the run document and flattens its audit entries and
// credit distributions into their append-only tables in one transaction.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := rec.CreatedAt.UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, scheme_id, as_of_date, result_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.SchemeID, rec.AsOfDate, string(resultJSON), createdAt); err != nil {
		return err
	}

	for agentID, entries := range rec.Result.RuleHitLogs {
		for seq, entry := range entries {
			detailsJSON, _ := json.Marshal(entry.Details)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rule_hit_logs
					(run_id, agent_id, seq, rule_type, rule_id, record_id, message, details_json, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, agentID, seq, string(entry.RuleType), entry.RuleID, entry.RecordID,
				entry.Message, string(detailsJSON), entry.Timestamp.UTC().Format(time.RFC3339)); err != nil {
				return err
			}
		}
	}

	for managerID, entries := range rec.Result.CreditDistributions {
		for seq, entry := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO credit_distributions
					(run_id, manager_id, seq, from_agent, role, amount, split_rule_id, base_payout, percentage, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, managerID, seq, entry.FromAgent, entry.Role, entry.Amount,
				entry.SplitRuleID, entry.BasePayoutFromAgent, entry.PercentageApplied,
				entry.Timestamp.UTC().Format(time.RFC3339)); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetRun returns a run with its full result, nil when not found.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec RunRecord
	var resultJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scheme_id, as_of_date, result_json, created_at FROM runs WHERE id = ?`, id).
		Scan(&rec.ID, &rec.SchemeID, &rec.AsOfDate, &resultJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to decode run result: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

// ListRuns returns metadata for all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scheme_id, as_of_date, created_at FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &info.SchemeID, &info.AsOfDate, &createdAt); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// GetRunLogs returns the flattened audit entries of a run, grouped by
// agent in sequence order.
func (s *Store) GetRunLogs(ctx context.Context, runID string) (map[string][]engine.RuleLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, rule_type, rule_id, record_id, message, details_json, created_at
		 FROM rule_hit_logs WHERE run_id = ? ORDER BY agent_id, seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]engine.RuleLogEntry)
	for rows.Next() {
		var agentID, ruleType, message, detailsJSON, createdAt string
		var ruleID, recordID sql.NullString
		if err := rows.Scan(&agentID, &ruleType, &ruleID, &recordID, &message, &detailsJSON, &createdAt); err != nil {
			return nil, err
		}
		entry := engine.RuleLogEntry{
			RuleType: engine.RuleType(ruleType),
			RuleID:   ruleID.String,
			RecordID: recordID.String,
			AgentID:  agentID,
			Message:  message,
		}
		if detailsJSON != "" && detailsJSON != "null" {
			_ = json.Unmarshal([]byte(detailsJSON), &entry.Details)
		}
		entry.Timestamp, _ = time.Parse(time.RFC3339, createdAt)
		out[agentID] = append(out[agentID], entry)
	}
	return out, rows.Err()
}
