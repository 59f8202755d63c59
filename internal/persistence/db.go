// Package persistence provides the SQLite run log: append-only messages,
// scratchpad snapshots, and a per-run state time series. Everything is
// partitioned by run ID so concurrent runs never share state.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		status TEXT NOT NULL,
		seed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		run_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		day_report INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, agent, seq)
	);

	CREATE TABLE IF NOT EXISTS scratchpad_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		content TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state_series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		day INTEGER NOT NULL,
		cash_on_hand REAL NOT NULL,
		cash_in_machine REAL NOT NULL,
		units_sold INTEGER NOT NULL,
		net_worth REAL NOT NULL,
		tool_counts TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_run ON messages(run_id);
	CREATE INDEX IF NOT EXISTS idx_series_run ON state_series(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun registers a new simulation run.
func (db *DB) CreateRun(runID string, startedAt time.Time, seed int64) error {
	_, err := db.conn.Exec(
		`INSERT INTO runs (id, started_at, status, seed) VALUES (?, ?, ?, ?)`,
		runID, startedAt.Format(time.RFC3339), "active", seed)
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	return nil
}

// SetRunStatus updates a run's status (active/terminated).
func (db *DB) SetRunStatus(runID, status string) error {
	_, err := db.conn.Exec(`UPDATE runs SET status = ? WHERE id = ?`, status, runID)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	return nil
}

// MessageRecorder binds the message table to one (run, agent) pair so the
// agent loop can record without knowing about run IDs.
type MessageRecorder struct {
	db    *DB
	runID string
	agent string
}

// Recorder returns a MessageRecorder for one agent of one run.
func (db *DB) Recorder(runID, agent string) *MessageRecorder {
	return &MessageRecorder{db: db, runID: runID, agent: agent}
}

// RecordMessage appends one message to the run log.
func (r *MessageRecorder) RecordMessage(seq int, role, content string, dayReport bool) error {
	flag := 0
	if dayReport {
		flag = 1
	}
	_, err := r.db.conn.Exec(
		`INSERT INTO messages (run_id, agent, seq, role, content, day_report) VALUES (?, ?, ?, ?, ?, ?)`,
		r.runID, r.agent, seq, role, content, flag)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// SnapshotScratchpad stores a point-in-time copy of the scratchpad.
func (db *DB) SnapshotScratchpad(runID string, at time.Time, content string) error {
	_, err := db.conn.Exec(
		`INSERT INTO scratchpad_snapshots (run_id, taken_at, content) VALUES (?, ?, ?)`,
		runID, at.Format(time.RFC3339), content)
	if err != nil {
		return fmt.Errorf("snapshot scratchpad: %w", err)
	}
	return nil
}

// StatePoint is one entry of the run's state time series.
type StatePoint struct {
	RecordedAt    time.Time
	Day           int
	CashOnHand    float64
	CashInMachine float64
	UnitsSold     int
	NetWorth      float64
	ToolCounts    map[string]int
}

// RecordState appends a state snapshot to the time series.
func (db *DB) RecordState(runID string, p StatePoint) error {
	counts, err := json.Marshal(p.ToolCounts)
	if err != nil {
		return fmt.Errorf("marshal tool counts: %w", err)
	}
	_, err = db.conn.Exec(
		`INSERT INTO state_series (run_id, recorded_at, day, cash_on_hand, cash_in_machine, units_sold, net_worth, tool_counts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, p.RecordedAt.Format(time.RFC3339), p.Day, p.CashOnHand, p.CashInMachine, p.UnitsSold, p.NetWorth, string(counts))
	if err != nil {
		return fmt.Errorf("record state: %w", err)
	}
	return nil
}

// History returns the state series for a run in chronological order.
func (db *DB) History(runID string) ([]StatePoint, error) {
	rows, err := db.conn.Queryx(
		`SELECT recorded_at, day, cash_on_hand, cash_in_machine, units_sold, net_worth, tool_counts
		 FROM state_series WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []StatePoint
	for rows.Next() {
		var recordedAt, toolCounts string
		var p StatePoint
		if err := rows.Scan(&recordedAt, &p.Day, &p.CashOnHand, &p.CashInMachine, &p.UnitsSold, &p.NetWorth, &toolCounts); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			p.RecordedAt = t
		}
		if err := json.Unmarshal([]byte(toolCounts), &p.ToolCounts); err != nil {
			return nil, fmt.Errorf("corrupted tool counts for run %s: %w", runID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
