package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the lifecycle status of a run record.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one persisted pipeline execution.
type Run struct {
	ID        string     `json:"id"`
	Idea      string     `json:"idea"`
	Status    RunStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Artifact is a descriptor for one exported output of a completed run.
type Artifact struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"artifact_type"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// defaultListLimit bounds ListRuns when the caller passes no limit.
const defaultListLimit = 100

// CreateRun inserts a new run record in the pending state.
func (db *DB) CreateRun(r *Run) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	if r.Status == "" {
		r.Status = RunPending
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, idea, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Idea, string(r.Status), formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRunStatus transitions a run record to the given status.
func (db *DB) UpdateRunStatus(id string, status RunStatus) error {
	res, err := db.Exec(`
		UPDATE runs SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run status: run %s not found", id)
	}
	return nil
}

// AttachArtifact records one artifact descriptor against a run.
func (db *DB) AttachArtifact(a *Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	res, err := db.Exec(`
		INSERT INTO artifacts (run_id, artifact_type, path, created_at)
		VALUES (?, ?, ?, ?)
	`, a.RunID, a.Type, a.Path, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("attach artifact: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

// GetRun retrieves a run by ID with its artifacts eagerly loaded.
// Returns nil if the run does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, idea, status, created_at, updated_at
		FROM runs WHERE id = ?
	`, id)

	var r Run
	var createdAt, updatedAt string
	err := row.Scan(&r.ID, &r.Idea, &r.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.CreatedAt, _ = parseTime(createdAt)
	r.UpdatedAt, _ = parseTime(updatedAt)

	artifacts, err := db.ListArtifacts(id)
	if err != nil {
		return nil, err
	}
	r.Artifacts = artifacts

	return &r, nil
}

// ListArtifacts lists the artifact descriptors for a run, oldest first.
func (db *DB) ListArtifacts(runID string) ([]Artifact, error) {
	rows, err := db.Query(`
		SELECT id, run_id, artifact_type, path, created_at
		FROM artifacts WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Type, &a.Path, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.CreatedAt, _ = parseTime(createdAt)
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// ListRuns lists runs ordered newest-first, optionally filtered by status.
// A limit of 0 applies the default limit.
func (db *DB) ListRuns(status *RunStatus, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, idea, status, created_at, updated_at
			FROM runs WHERE status = ? ORDER BY created_at DESC LIMIT ?
		`, string(*status), limit)
	} else {
		rows, err = db.Query(`
			SELECT id, idea, status, created_at, updated_at
			FROM runs ORDER BY created_at DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.Idea, &r.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt, _ = parseTime(createdAt)
		r.UpdatedAt, _ = parseTime(updatedAt)
		runs = append(runs, r)
	}
	return runs, nil
}

// DeleteRun deletes a run and, via the foreign key cascade, its artifacts.
func (db *DB) DeleteRun(id string) error {
	_, err := db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
