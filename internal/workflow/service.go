package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/scrapeflow-ai/scrapeflow/internal/browser"
	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// DriverFactory provisions a browser driver for one run. The service only
// calls it when the workflow contains browser-driving nodes, and closes
// the driver on every exit path.
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// RunRequest is the input to Service.Run.
type RunRequest struct {
	WorkflowID       types.ID       `json:"workflow_id"`
	UserID           types.ID       `json:"user_id,omitempty"`
	InputData        map[string]any `json:"input_data,omitempty"`
	SettingsOverride map[string]any `json:"settings_override,omitempty"`
}

// Statistics aggregates a workflow's run history.
type Statistics struct {
	TotalExecutions        int        `json:"total_executions"`
	SuccessfulExecutions   int        `json:"successful_executions"`
	FailedExecutions       int        `json:"failed_executions"`
	AverageDurationSeconds float64    `json:"average_duration_seconds"`
	LastExecutionStatus    RunStatus  `json:"last_execution_status,omitempty"`
	LastExecutionAt        *time.Time `json:"last_execution_at,omitempty"`
	SuccessRate            float64    `json:"success_rate"`
}

// Service is the workflow facade: it validates definitions, owns run
// records around walker invocations, aggregates statistics, and fires
// schedules.
type Service struct {
	repo          Repository
	walker        *Walker
	validator     *Validator
	driverFactory DriverFactory
	logger        *slog.Logger
}

// ServiceOption is a functional option for configuring Service.
type ServiceOption func(*Service)

// WithWalker overrides the graph walker.
func WithWalker(w *Walker) ServiceOption {
	return func(s *Service) { s.walker = w }
}

// WithDriverFactory sets how browser drivers are provisioned per run.
func WithDriverFactory(f DriverFactory) ServiceOption {
	return func(s *Service) { s.driverFactory = f }
}

// WithServiceLogger sets the structured logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service backed by the given repository. Defaults:
// a walker with the full registry, and a static HTTP driver factory.
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		validator: NewValidator(),
		logger:    slog.Default(),
		driverFactory: func(ctx context.Context) (browser.Driver, error) {
			return browser.NewStaticDriver(), nil
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.walker == nil {
		s.walker = NewWalker(WithLogger(s.logger))
	}
	return s
}

// Validate checks a definition against the graph invariants.
func (s *Service) Validate(def *Definition) ValidationReport {
	return s.validator.Validate(def)
}

// Run executes a workflow and returns the finalized run record. The
// record is persisted in the running state before traversal starts and
// updated exactly once with the terminal outcome.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunRecord, error) {
	wf, err := s.repo.GetWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if report := s.validator.Validate(&wf.Definition); !report.Valid {
		return nil, newEngineError(ErrInvalidGraph,
			fmt.Sprintf("workflow failed validation: %v", report.Errors))
	}

	userID := req.UserID
	if userID.IsZero() {
		userID = wf.UserID
	}
	run := &RunRecord{
		ID:         types.NewID(),
		WorkflowID: wf.ID,
		UserID:     userID,
		Status:     RunStatusRunning,
		StartedAt:  time.Now(),
		InputData:  req.InputData,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("starting workflow run",
		"run_id", run.ID, "workflow_id", wf.ID, "workflow", wf.Name)

	ec := NewExecutionContext(req.InputData)
	runErr := s.execute(ctx, &wf.Definition, ec)
	s.finalize(ctx, run, ec, runErr)

	return run, runErr
}

// execute provisions run-scoped resources, invokes the walker, and
// guarantees the browser is released on every exit path.
func (s *Service) execute(ctx context.Context, def *Definition, ec *ExecutionContext) error {
	if def.RequiresBrowser() {
		driver, err := s.driverFactory(ctx)
		if err != nil {
			err = &EngineError{
				Code:    ErrResourceFailed,
				Message: "failed to initialize browser driver",
				Cause:   err,
			}
			ec.finish(RunStatusFailed, err)
			return err
		}
		ec.SetDriver(driver)
		defer func() {
			if closeErr := driver.Close(); closeErr != nil {
				s.logger.Warn("failed to close browser driver", "error", closeErr)
			}
			ec.SetDriver(nil)
		}()
	}

	return s.walker.Run(ctx, def, ec)
}

// finalize writes the terminal outcome into the run record and persists
// it. Persistence failures are logged, not propagated; the in-memory
// record is still complete.
func (s *Service) finalize(ctx context.Context, run *RunRecord, ec *ExecutionContext, runErr error) {
	now := time.Now()
	run.CompletedAt = &now
	run.DurationSeconds = now.Sub(run.StartedAt).Seconds()
	run.Status = ec.Status()
	run.OutputData = ec.Snapshot()
	run.Logs = ec.Logs()
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// A cancelled parent context must not block persisting the outcome.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.repo.UpdateRun(persistCtx, run); err != nil {
		s.logger.Error("failed to persist run record",
			"run_id", run.ID, "error", err)
	}

	s.logger.Info("workflow run finished",
		"run_id", run.ID, "status", run.Status,
		"duration_seconds", run.DurationSeconds)
}

// Statistics aggregates over a workflow's run records.
func (s *Service) Statistics(ctx context.Context, workflowID types.ID) (*Statistics, error) {
	runs, err := s.repo.ListRuns(ctx, workflowID, 0)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{}
	var totalDuration float64
	var completed int
	for _, run := range runs {
		stats.TotalExecutions++
		switch run.Status {
		case RunStatusCompleted:
			stats.SuccessfulExecutions++
		case RunStatusFailed:
			stats.FailedExecutions++
		}
		if run.CompletedAt != nil {
			totalDuration += run.DurationSeconds
			completed++
		}
	}
	if completed > 0 {
		stats.AverageDurationSeconds = totalDuration / float64(completed)
	}
	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(stats.SuccessfulExecutions) / float64(stats.TotalExecutions)
	}
	if len(runs) > 0 {
		// ListRuns returns newest first.
		stats.LastExecutionStatus = runs[0].Status
		at := runs[0].StartedAt
		stats.LastExecutionAt = &at
	}
	return stats, nil
}

// CreateSchedule validates the cadence, computes the first firing time,
// and persists the schedule.
func (s *Service) CreateSchedule(ctx context.Context, schedule *Schedule) error {
	if schedule.ID.IsZero() {
		schedule.ID = types.NewID()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now()
	}

	next, err := nextRunTime(schedule.Cadence, schedule.CronExpr, time.Now())
	if err != nil {
		return err
	}
	schedule.NextRunAt = next
	return s.repo.CreateSchedule(ctx, schedule)
}

// FireDueSchedules runs every schedule whose next firing time has passed
// and recomputes its next firing. A failing run does not stop the sweep.
func (s *Service) FireDueSchedules(ctx context.Context, now time.Time) error {
	due, err := s.repo.ListDueSchedules(ctx, now)
	if err != nil {
		return err
	}

	for _, schedule := range due {
		if !schedule.Enabled {
			continue
		}

		s.logger.Info("firing schedule",
			"schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID)

		if _, err := s.Run(ctx, RunRequest{
			WorkflowID: schedule.WorkflowID,
			InputData:  schedule.InputData,
		}); err != nil {
			s.logger.Error("scheduled run failed",
				"schedule_id", schedule.ID, "error", err)
		}

		fired := now
		schedule.LastRunAt = &fired
		if schedule.Cadence == CadenceOnce {
			schedule.NextRunAt = nil
			schedule.Enabled = false
		} else {
			next, err := nextRunTime(schedule.Cadence, schedule.CronExpr, now)
			if err != nil {
				s.logger.Error("failed to compute next firing",
					"schedule_id", schedule.ID, "error", err)
				schedule.Enabled = false
			} else {
				schedule.NextRunAt = next
			}
		}
		if err := s.repo.UpdateSchedule(ctx, schedule); err != nil {
			s.logger.Error("failed to persist schedule",
				"schedule_id", schedule.ID, "error", err)
		}
	}
	return nil
}

// RunScheduler sweeps due schedules immediately and then on every tick of
// interval until the context is cancelled. Sweep failures are logged and
// the loop keeps polling; cancellation returns nil.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler poll interval must be positive, got %v", interval)
	}

	s.logger.Info("scheduler started", "poll_interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.FireDueSchedules(ctx, time.Now()); err != nil {
			s.logger.Error("schedule sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// cronParser accepts the standard five-field cron format plus descriptors
// like @daily.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// nextRunTime computes the next firing after from. A nil time with a nil
// error means the schedule fires immediately once and never again.
func nextRunTime(cadence Cadence, cronExpr string, from time.Time) (*time.Time, error) {
	switch cadence {
	case CadenceOnce:
		return &from, nil
	case CadenceHourly:
		t := from.Add(time.Hour)
		return &t, nil
	case CadenceDaily:
		t := from.AddDate(0, 0, 1)
		return &t, nil
	case CadenceWeekly:
		t := from.AddDate(0, 0, 7)
		return &t, nil
	case CadenceMonthly:
		t := from.AddDate(0, 1, 0)
		return &t, nil
	case CadenceCron:
		spec, err := cronParser.Parse(cronExpr)
		if err != nil {
			return nil, newEngineError(ErrInvalidGraph,
				fmt.Sprintf("invalid cron expression %q: %v", cronExpr, err))
		}
		t := spec.Next(from)
		return &t, nil
	default:
		return nil, newEngineError(ErrInvalidGraph,
			fmt.Sprintf("unknown schedule cadence %q", cadence))
	}
}
