package workflow

import (
	"context"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// RunRecord is the persisted outcome of one workflow run. The service owns
// the record; terminal statuses are never overwritten.
type RunRecord struct {
	ID              types.ID       `json:"id"`
	WorkflowID      types.ID       `json:"workflow_id"`
	UserID          types.ID       `json:"user_id"`
	Status          RunStatus      `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	InputData       map[string]any `json:"input_data,omitempty"`
	OutputData      map[string]any `json:"output_data,omitempty"`
	Logs            []LogEntry     `json:"logs,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Cadence is a schedule's firing frequency.
type Cadence string

const (
	CadenceOnce    Cadence = "once"
	CadenceHourly  Cadence = "hourly"
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceCron    Cadence = "cron"
)

// Schedule triggers a workflow run on a cadence. CronExpr is only read
// when Cadence is "cron". NextRunAt is recomputed after each firing; a
// nil NextRunAt means the schedule will not fire again.
type Schedule struct {
	ID         types.ID       `json:"id"`
	WorkflowID types.ID       `json:"workflow_id"`
	Cadence    Cadence        `json:"cadence"`
	CronExpr   string         `json:"cron_expr,omitempty"`
	InputData  map[string]any `json:"input_data,omitempty"`
	Enabled    bool           `json:"enabled"`
	NextRunAt  *time.Time     `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// WorkflowStore persists workflow definitions.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id types.ID) (*Workflow, error)
	ListWorkflows(ctx context.Context, userID types.ID) ([]*Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *Workflow) error
	DeleteWorkflow(ctx context.Context, id types.ID) error
}

// RunStore persists run records.
type RunStore interface {
	CreateRun(ctx context.Context, run *RunRecord) error
	UpdateRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id types.ID) (*RunRecord, error)
	ListRuns(ctx context.Context, workflowID types.ID, limit int) ([]*RunRecord, error)
}

// ScheduleStore persists schedules.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, id types.ID) (*Schedule, error)
	ListDueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error)
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id types.ID) error
}

// Repository is the full persistence capability the service consumes. The
// engine never references a concrete database; internal/database provides
// the SQLite implementation.
type Repository interface {
	WorkflowStore
	RunStore
	ScheduleStore
	DatasetStore
}
