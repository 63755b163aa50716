// Package persistence stores finished runs in SQLite: the scenario that
// produced them, the per-tick compartment series, and the optional
// transition event log.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/owenfs/contagion/internal/config"
	"github.com/owenfs/contagion/internal/engine"
)

// DB wraps a SQLite connection for run storage.
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
		name TEXT NOT NULL,
		seed INTEGER NOT NULL,
		scenario_yaml TEXT NOT NULL,
		ticks INTEGER NOT NULL,
		stop_reason TEXT NOT NULL,
		final_susceptible INTEGER NOT NULL,
		final_recovered INTEGER NOT NULL,
		final_dead INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS series (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		susceptible INTEGER NOT NULL,
		exposed INTEGER NOT NULL,
		infectious INTEGER NOT NULL,
		recovered INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_series_run ON series(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunSummary is the runs-table row without the embedded scenario.
type RunSummary struct {
	ID               string `db:"id"`
	Name             string `db:"name"`
	Seed             int64  `db:"seed"`
	Ticks            uint64 `db:"ticks"`
	StopReason       string `db:"stop_reason"`
	FinalSusceptible int    `db:"final_susceptible"`
	FinalRecovered   int    `db:"final_recovered"`
	FinalDead        int    `db:"final_dead"`
	CreatedAt        string `db:"created_at"`
}

// SaveRun writes a completed run and returns its generated id.
func (db *DB) SaveRun(scenario config.Scenario, series []engine.Snapshot, events []engine.Event, reason engine.StopReason) (string, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("save run: empty series")
	}

	scenarioYAML, err := yaml.Marshal(scenario)
	if err != nil {
		return "", fmt.Errorf("marshal scenario: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	final := series[len(series)-1]
	_, err = tx.Exec(`INSERT INTO runs
		(id, name, seed, scenario_yaml, ticks, stop_reason,
		 final_susceptible, final_recovered, final_dead, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, scenario.Name, scenario.Seed, string(scenarioYAML),
		final.Tick, string(reason),
		final.Susceptible, final.Recovered, final.Dead,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO series
		(run_id, tick, susceptible, exposed, infectious, recovered, dead)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, s := range series {
		if _, err := stmt.Exec(id, s.Tick, s.Susceptible, s.Exposed, s.Infectious, s.Recovered, s.Dead); err != nil {
			return "", fmt.Errorf("insert tick %d: %w", s.Tick, err)
		}
	}

	if len(events) > 0 {
		estmt, err := tx.Preparex(`INSERT INTO events
			(run_id, tick, agent_id, from_state, to_state)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return "", err
		}
		defer estmt.Close()

		for _, e := range events {
			if _, err := estmt.Exec(id, e.Tick, e.AgentID, e.From.String(), e.To.String()); err != nil {
				return "", fmt.Errorf("insert event: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	slog.Info("run saved", "id", id, "name", scenario.Name, "ticks", final.Tick, "reason", reason)
	return id, nil
}

// LoadScenario reconstructs the scenario a stored run was built from.
func (db *DB) LoadScenario(runID string) (config.Scenario, error) {
	var raw string
	if err := db.conn.Get(&raw, "SELECT scenario_yaml FROM runs WHERE id = ?", runID); err != nil {
		return config.Scenario{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	var s config.Scenario
	if err := yaml.Unmarshal([]byte(raw), &s); err != nil {
		return config.Scenario{}, fmt.Errorf("parse stored scenario: %w", err)
	}
	return s, nil
}

// LoadSeries returns the stored compartment series in tick order.
func (db *DB) LoadSeries(runID string) ([]engine.Snapshot, error) {
	var series []engine.Snapshot
	err := db.conn.Select(&series,
		`SELECT tick, susceptible, exposed, infectious, recovered, dead
		 FROM series WHERE run_id = ? ORDER BY tick`, runID)
	return series, err
}

// RecentRuns returns the most recently saved run summaries.
func (db *DB) RecentRuns(limit int) ([]RunSummary, error) {
	var runs []RunSummary
	err := db.conn.Select(&runs,
		`SELECT id, name, seed, ticks, stop_reason,
		        final_susceptible, final_recovered, final_dead, created_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	return runs, err
}
