package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/agentfleet/core"
)

// SQLiteTaskStore implements core.TaskStore on a SQLite database, one row
// per task updated in place on every transition. Suited for durable
// single-host deployments where the fleet coordinator restarts must not lose
// task history.
type SQLiteTaskStore struct {
	db *sql.DB
}

// NewSQLiteTaskStore opens (or creates) the database at dbPath and ensures
// the schema exists.
func NewSQLiteTaskStore(dbPath string) (*SQLiteTaskStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer keeps "update one row per transition" trivially
	// atomic; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteTaskStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteTaskStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		state TEXT NOT NULL,
		assignee TEXT NOT NULL DEFAULT '',
		evidence TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
	CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Put inserts or replaces the task's row.
func (s *SQLiteTaskStore) Put(task core.Task) error {
	evidence, err := json.Marshal(task.Evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}

	query := `INSERT INTO tasks (id, description, state, assignee, evidence, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	            description = excluded.description,
	            state       = excluded.state,
	            assignee    = excluded.assignee,
	            evidence    = excluded.evidence,
	            updated_at  = excluded.updated_at`

	_, err = s.db.Exec(query,
		string(task.ID), task.Description, task.State.String(), string(task.Assignee),
		string(evidence), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put task %s: %w", task.ID, err)
	}
	return nil
}

// Get retrieves one task by id.
func (s *SQLiteTaskStore) Get(id core.TaskID) (core.Task, error) {
	query := `SELECT id, description, state, assignee, evidence, created_at, updated_at
	          FROM tasks WHERE id = ?`

	task, err := scanTask(s.db.QueryRow(query, string(id)))
	if err == sql.ErrNoRows {
		return core.Task{}, &core.UnknownTaskError{TaskID: id}
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// List returns all task rows in creation order.
func (s *SQLiteTaskStore) List() ([]core.Task, error) {
	query := `SELECT id, description, state, assignee, evidence, created_at, updated_at
	          FROM tasks ORDER BY created_at`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return tasks, nil
}

// Close releases the underlying database handle.
func (s *SQLiteTaskStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (core.Task, error) {
	var (
		task         core.Task
		id, assignee string
		state        string
		evidenceBlob string
	)
	if err := row.Scan(&id, &task.Description, &state, &assignee, &evidenceBlob, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return core.Task{}, err
	}

	parsed, err := core.ParseTaskState(state)
	if err != nil {
		return core.Task{}, err
	}

	var evidence []string
	if err := json.Unmarshal([]byte(evidenceBlob), &evidence); err != nil {
		return core.Task{}, fmt.Errorf("decode evidence: %w", err)
	}

	task.ID = core.TaskID(id)
	task.State = parsed
	task.Assignee = core.WorkerID(assignee)
	task.Evidence = evidence
	return task, nil
}
