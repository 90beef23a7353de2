package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
	"github.com/scrapeflow-ai/scrapeflow/internal/workflow"
)

// WorkflowDAO persists workflows, runs, schedules, and scraped dataset rows
// in SQLite. It implements workflow.Repository.
type WorkflowDAO struct {
	db *DB
}

var _ workflow.Repository = (*WorkflowDAO)(nil)

// NewWorkflowDAO creates a new workflow DAO
func NewWorkflowDAO(db *DB) *WorkflowDAO {
	return &WorkflowDAO{db: db}
}

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// encodeJSON marshals a value into a nullable JSON column
func encodeJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// decodeJSON unmarshals a nullable JSON column into out, leaving out
// untouched for NULL columns
func decodeJSON(col sql.NullString, out any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), out); err != nil {
		return fmt.Errorf("failed to decode JSON column: %w", err)
	}
	return nil
}

// idOrEmpty renders an ID for storage; zero IDs become the empty string
func idOrEmpty(id types.ID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}

// parseStoredID parses an ID column, treating the empty string as zero
func parseStoredID(s string) (types.ID, error) {
	if s == "" {
		return "", nil
	}
	return types.ParseID(s)
}

// CreateWorkflow inserts a new workflow
func (d *WorkflowDAO) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	definition, err := encodeJSON(wf.Definition)
	if err != nil {
		return err
	}
	settings, err := encodeJSON(wf.Settings)
	if err != nil {
		return err
	}

	now := time.Now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	if wf.UpdatedAt.IsZero() {
		wf.UpdatedAt = now
	}

	_, err = d.db.ExecContext(ctx, `
INSERT INTO workflows (id, user_id, name, description, definition, settings, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID.String(), idOrEmpty(wf.UserID), wf.Name, wf.Description,
		definition, settings, wf.Active, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}
	return nil
}

// GetWorkflow fetches one workflow by ID
func (d *WorkflowDAO) GetWorkflow(ctx context.Context, id types.ID) (*workflow.Workflow, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, user_id, name, description, definition, settings, active, created_at, updated_at
FROM workflows WHERE id = ?`, id.String())

	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return wf, err
}

// ListWorkflows returns all workflows owned by a user, newest first
func (d *WorkflowDAO) ListWorkflows(ctx context.Context, userID types.ID) ([]*workflow.Workflow, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT id, user_id, name, description, definition, settings, active, created_at, updated_at
FROM workflows WHERE user_id = ? ORDER BY created_at DESC`, idOrEmpty(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var out []*workflow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

// UpdateWorkflow overwrites a workflow's mutable fields
func (d *WorkflowDAO) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	definition, err := encodeJSON(wf.Definition)
	if err != nil {
		return err
	}
	settings, err := encodeJSON(wf.Settings)
	if err != nil {
		return err
	}
	wf.UpdatedAt = time.Now()

	result, err := d.db.ExecContext(ctx, `
UPDATE workflows SET name = ?, description = ?, definition = ?, settings = ?, active = ?, updated_at = ?
WHERE id = ?`,
		wf.Name, wf.Description, definition, settings, wf.Active, wf.UpdatedAt, wf.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return requireRowAffected(result, "workflow")
}

// DeleteWorkflow removes a workflow; runs and schedules cascade
func (d *WorkflowDAO) DeleteWorkflow(ctx context.Context, id types.ID) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return requireRowAffected(result, "workflow")
}

// scanner covers *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(s scanner) (*workflow.Workflow, error) {
	var (
		wf                  workflow.Workflow
		idStr, userStr      string
		definition, setting sql.NullString
	)
	err := s.Scan(&idStr, &userStr, &wf.Name, &wf.Description,
		&definition, &setting, &wf.Active, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if wf.ID, err = types.ParseID(idStr); err != nil {
		return nil, fmt.Errorf("invalid workflow id: %w", err)
	}
	if wf.UserID, err = parseStoredID(userStr); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if err := decodeJSON(definition, &wf.Definition); err != nil {
		return nil, err
	}
	if err := decodeJSON(setting, &wf.Settings); err != nil {
		return nil, err
	}
	return &wf, nil
}

// CreateRun inserts a new run record
func (d *WorkflowDAO) CreateRun(ctx context.Context, run *workflow.RunRecord) error {
	input, err := encodeJSON(run.InputData)
	if err != nil {
		return err
	}
	output, err := encodeJSON(run.OutputData)
	if err != nil {
		return err
	}
	logs, err := encodeJSON(run.Logs)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
INSERT INTO workflow_runs (id, workflow_id, user_id, status, started_at, completed_at,
                           duration_seconds, input_data, output_data, logs, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.WorkflowID.String(), idOrEmpty(run.UserID),
		string(run.Status), run.StartedAt, nullableTime(run.CompletedAt),
		run.DurationSeconds, input, output, logs, run.Error)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// UpdateRun overwrites a run record's outcome fields
func (d *WorkflowDAO) UpdateRun(ctx context.Context, run *workflow.RunRecord) error {
	output, err := encodeJSON(run.OutputData)
	if err != nil {
		return err
	}
	logs, err := encodeJSON(run.Logs)
	if err != nil {
		return err
	}

	result, err := d.db.ExecContext(ctx, `
UPDATE workflow_runs SET status = ?, completed_at = ?, duration_seconds = ?,
                         output_data = ?, logs = ?, error = ?
WHERE id = ?`,
		string(run.Status), nullableTime(run.CompletedAt), run.DurationSeconds,
		output, logs, run.Error, run.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return requireRowAffected(result, "run")
}

// GetRun fetches one run record by ID
func (d *WorkflowDAO) GetRun(ctx context.Context, id types.ID) (*workflow.RunRecord, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, workflow_id, user_id, status, started_at, completed_at,
       duration_seconds, input_data, output_data, logs, error
FROM workflow_runs WHERE id = ?`, id.String())

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns a workflow's runs newest first, capped at limit when
// limit is positive
func (d *WorkflowDAO) ListRuns(ctx context.Context, workflowID types.ID, limit int) ([]*workflow.RunRecord, error) {
	query := `
SELECT id, workflow_id, user_id, status, started_at, completed_at,
       duration_seconds, input_data, output_data, logs, error
FROM workflow_runs WHERE workflow_id = ? ORDER BY started_at DESC`
	args := []any{workflowID.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*workflow.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(s scanner) (*workflow.RunRecord, error) {
	var (
		run                  workflow.RunRecord
		idStr, wfStr, usrStr string
		status               string
		completedAt          sql.NullTime
		input, output, logs  sql.NullString
	)
	err := s.Scan(&idStr, &wfStr, &usrStr, &status, &run.StartedAt, &completedAt,
		&run.DurationSeconds, &input, &output, &logs, &run.Error)
	if err != nil {
		return nil, err
	}

	if run.ID, err = types.ParseID(idStr); err != nil {
		return nil, fmt.Errorf("invalid run id: %w", err)
	}
	if run.WorkflowID, err = types.ParseID(wfStr); err != nil {
		return nil, fmt.Errorf("invalid workflow id: %w", err)
	}
	if run.UserID, err = parseStoredID(usrStr); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	run.Status = workflow.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if err := decodeJSON(input, &run.InputData); err != nil {
		return nil, err
	}
	if err := decodeJSON(output, &run.OutputData); err != nil {
		return nil, err
	}
	if err := decodeJSON(logs, &run.Logs); err != nil {
		return nil, err
	}
	return &run, nil
}

// CreateSchedule inserts a new schedule
func (d *WorkflowDAO) CreateSchedule(ctx context.Context, s *workflow.Schedule) error {
	input, err := encodeJSON(s.InputData)
	if err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	_, err = d.db.ExecContext(ctx, `
INSERT INTO workflow_schedules (id, workflow_id, cadence, cron_expr, input_data,
                                enabled, next_run_at, last_run_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.WorkflowID.String(), string(s.Cadence), s.CronExpr,
		input, s.Enabled, nullableTime(s.NextRunAt), nullableTime(s.LastRunAt), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

// GetSchedule fetches one schedule by ID
func (d *WorkflowDAO) GetSchedule(ctx context.Context, id types.ID) (*workflow.Schedule, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, workflow_id, cadence, cron_expr, input_data, enabled, next_run_at, last_run_at, created_at
FROM workflow_schedules WHERE id = ?`, id.String())

	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return s, err
}

// ListDueSchedules returns enabled schedules whose next firing time has
// passed
func (d *WorkflowDAO) ListDueSchedules(ctx context.Context, now time.Time) ([]*workflow.Schedule, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT id, workflow_id, cadence, cron_expr, input_data, enabled, next_run_at, last_run_at, created_at
FROM workflow_schedules
WHERE enabled = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}
	defer rows.Close()

	var out []*workflow.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSchedule overwrites a schedule's mutable fields
func (d *WorkflowDAO) UpdateSchedule(ctx context.Context, s *workflow.Schedule) error {
	input, err := encodeJSON(s.InputData)
	if err != nil {
		return err
	}

	result, err := d.db.ExecContext(ctx, `
UPDATE workflow_schedules SET cadence = ?, cron_expr = ?, input_data = ?,
                              enabled = ?, next_run_at = ?, last_run_at = ?
WHERE id = ?`,
		string(s.Cadence), s.CronExpr, input, s.Enabled,
		nullableTime(s.NextRunAt), nullableTime(s.LastRunAt), s.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return requireRowAffected(result, "schedule")
}

// DeleteSchedule removes a schedule
func (d *WorkflowDAO) DeleteSchedule(ctx context.Context, id types.ID) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM workflow_schedules WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return requireRowAffected(result, "schedule")
}

func scanSchedule(s scanner) (*workflow.Schedule, error) {
	var (
		sched                workflow.Schedule
		idStr, wfStr         string
		cadence              string
		input                sql.NullString
		nextRunAt, lastRunAt sql.NullTime
	)
	err := s.Scan(&idStr, &wfStr, &cadence, &sched.CronExpr, &input,
		&sched.Enabled, &nextRunAt, &lastRunAt, &sched.CreatedAt)
	if err != nil {
		return nil, err
	}

	if sched.ID, err = types.ParseID(idStr); err != nil {
		return nil, fmt.Errorf("invalid schedule id: %w", err)
	}
	if sched.WorkflowID, err = types.ParseID(wfStr); err != nil {
		return nil, fmt.Errorf("invalid workflow id: %w", err)
	}
	sched.Cadence = workflow.Cadence(cadence)
	if nextRunAt.Valid {
		t := nextRunAt.Time
		sched.NextRunAt = &t
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		sched.LastRunAt = &t
	}
	if err := decodeJSON(input, &sched.InputData); err != nil {
		return nil, err
	}
	return &sched, nil
}

// AppendRows stores scraped rows for a logical dataset table, one JSON
// document per row
func (d *WorkflowDAO) AppendRows(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	return d.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO datasets (table_name, row_data) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare dataset insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			raw, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to encode dataset row: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, table, string(raw)); err != nil {
				return fmt.Errorf("failed to insert dataset row: %w", err)
			}
		}
		return nil
	})
}

// ListDatasetRows returns a dataset table's rows in insertion order
func (d *WorkflowDAO) ListDatasetRows(ctx context.Context, table string) ([]map[string]any, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT row_data FROM datasets WHERE table_name = ? ORDER BY id", table)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset rows: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		row := make(map[string]any)
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("failed to decode dataset row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRowAffected(result sql.Result, kind string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", kind, ErrNotFound)
	}
	return nil
}
