package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
	"github.com/scrapeflow-ai/scrapeflow/internal/workflow"
)

func sampleWorkflow(userID types.ID) *workflow.Workflow {
	return &workflow.Workflow{
		ID:          types.NewID(),
		UserID:      userID,
		Name:        "price monitor",
		Description: "scrapes product prices daily",
		Definition: workflow.Definition{
			Nodes: []workflow.Node{
				{ID: "start", Kind: workflow.KindStart, Enabled: true},
				{ID: "nav", Kind: workflow.KindNavigate, Enabled: true,
					Config: map[string]any{"url": "https://example.com"}},
				{ID: "end", Kind: workflow.KindEnd, Enabled: true},
			},
			Edges: []workflow.Edge{
				{Source: "start", Target: "nav"},
				{Source: "nav", Target: "end"},
			},
		},
		Settings: map[string]any{"timeout_seconds": float64(30)},
		Active:   true,
	}
}

func TestWorkflowDAO_WorkflowRoundTrip(t *testing.T) {
	db := openTestDB(t)
	dao := NewWorkflowDAO(db)
	ctx := context.Background()

	userID := types.NewID()
	wf := sampleWorkflow(userID)
	require.NoError(t, dao.CreateWorkflow(ctx, wf))

	got, err := dao.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "price monitor", got.Name)
	assert.Len(t, got.Definition.Nodes, 3)
	assert.Len(t, got.Definition.Edges, 2)
	assert.Equal(t, "https://example.com", got.Definition.Nodes[1].Config["url"])
	assert.Equal(t, float64(30), got.Settings["timeout_seconds"])
	assert.True(t, got.Active)

	got.Name = "renamed"
	got.Active = false
	require.NoError(t, dao.UpdateWorkflow(ctx, got))

	updated, err := dao.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, updated.Active)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	require.NoError(t, dao.DeleteWorkflow(ctx, wf.ID))
	_, err = dao.GetWorkflow(ctx, wf.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowDAO_GetWorkflow_NotFound(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	_, err := dao.GetWorkflow(context.Background(), types.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowDAO_ListWorkflows(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	ctx := context.Background()

	alice := types.NewID()
	bob := types.NewID()
	require.NoError(t, dao.CreateWorkflow(ctx, sampleWorkflow(alice)))
	require.NoError(t, dao.CreateWorkflow(ctx, sampleWorkflow(alice)))
	require.NoError(t, dao.CreateWorkflow(ctx, sampleWorkflow(bob)))

	mine, err := dao.ListWorkflows(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := dao.ListWorkflows(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestWorkflowDAO_RunRoundTrip(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	ctx := context.Background()

	wf := sampleWorkflow(types.NewID())
	require.NoError(t, dao.CreateWorkflow(ctx, wf))

	run := &workflow.RunRecord{
		ID:         types.NewID(),
		WorkflowID: wf.ID,
		UserID:     wf.UserID,
		Status:     workflow.RunStatusRunning,
		StartedAt:  time.Now().Truncate(time.Millisecond),
		InputData:  map[string]any{"seed": "x"},
	}
	require.NoError(t, dao.CreateRun(ctx, run))

	got, err := dao.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, "x", got.InputData["seed"])

	completed := time.Now().Truncate(time.Millisecond)
	run.Status = workflow.RunStatusCompleted
	run.CompletedAt = &completed
	run.DurationSeconds = 1.5
	run.OutputData = map[string]any{"title": "Hello"}
	run.Logs = []workflow.LogEntry{
		{NodeID: "nav", NodeKind: workflow.KindNavigate,
			Status: workflow.LogStatusSuccess, Timestamp: completed},
	}
	require.NoError(t, dao.UpdateRun(ctx, run))

	got, err = dao.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RunStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1.5, got.DurationSeconds)
	assert.Equal(t, "Hello", got.OutputData["title"])
	require.Len(t, got.Logs, 1)
	assert.Equal(t, "nav", got.Logs[0].NodeID)
	assert.Equal(t, workflow.LogStatusSuccess, got.Logs[0].Status)
}

func TestWorkflowDAO_ListRuns_NewestFirstWithLimit(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	ctx := context.Background()

	wf := sampleWorkflow(types.NewID())
	require.NoError(t, dao.CreateWorkflow(ctx, wf))

	base := time.Now().Add(-time.Hour)
	var ids []types.ID
	for i := 0; i < 5; i++ {
		run := &workflow.RunRecord{
			ID:         types.NewID(),
			WorkflowID: wf.ID,
			Status:     workflow.RunStatusCompleted,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, dao.CreateRun(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := dao.ListRuns(ctx, wf.ID, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[4], runs[0].ID)
	assert.Equal(t, ids[3], runs[1].ID)
	assert.Equal(t, ids[2], runs[2].ID)

	all, err := dao.ListRuns(ctx, wf.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestWorkflowDAO_DeleteWorkflowCascadesRuns(t *testing.T) {
	db := openTestDB(t)
	dao := NewWorkflowDAO(db)
	ctx := context.Background()

	wf := sampleWorkflow(types.NewID())
	require.NoError(t, dao.CreateWorkflow(ctx, wf))
	require.NoError(t, dao.CreateRun(ctx, &workflow.RunRecord{
		ID: types.NewID(), WorkflowID: wf.ID,
		Status: workflow.RunStatusCompleted, StartedAt: time.Now(),
	}))

	require.NoError(t, dao.DeleteWorkflow(ctx, wf.ID))

	runs, err := dao.ListRuns(ctx, wf.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWorkflowDAO_ScheduleRoundTrip(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	ctx := context.Background()

	wf := sampleWorkflow(types.NewID())
	require.NoError(t, dao.CreateWorkflow(ctx, wf))

	next := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	schedule := &workflow.Schedule{
		ID:         types.NewID(),
		WorkflowID: wf.ID,
		Cadence:    workflow.CadenceCron,
		CronExpr:   "0 12 * * *",
		InputData:  map[string]any{"page": float64(1)},
		Enabled:    true,
		NextRunAt:  &next,
	}
	require.NoError(t, dao.CreateSchedule(ctx, schedule))

	got, err := dao.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.CadenceCron, got.Cadence)
	assert.Equal(t, "0 12 * * *", got.CronExpr)
	assert.Equal(t, float64(1), got.InputData["page"])
	assert.True(t, got.Enabled)
	require.NotNil(t, got.NextRunAt)
	assert.Nil(t, got.LastRunAt)

	fired := time.Now().Truncate(time.Millisecond)
	got.LastRunAt = &fired
	got.Enabled = false
	got.NextRunAt = nil
	require.NoError(t, dao.UpdateSchedule(ctx, got))

	updated, err := dao.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Nil(t, updated.NextRunAt)
	require.NotNil(t, updated.LastRunAt)

	require.NoError(t, dao.DeleteSchedule(ctx, schedule.ID))
	_, err = dao.GetSchedule(ctx, schedule.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowDAO_ListDueSchedules(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	ctx := context.Background()

	wf := sampleWorkflow(types.NewID())
	require.NoError(t, dao.CreateWorkflow(ctx, wf))

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &workflow.Schedule{
		ID: types.NewID(), WorkflowID: wf.ID,
		Cadence: workflow.CadenceDaily, Enabled: true, NextRunAt: &past,
	}
	notYet := &workflow.Schedule{
		ID: types.NewID(), WorkflowID: wf.ID,
		Cadence: workflow.CadenceDaily, Enabled: true, NextRunAt: &future,
	}
	disabled := &workflow.Schedule{
		ID: types.NewID(), WorkflowID: wf.ID,
		Cadence: workflow.CadenceDaily, Enabled: false, NextRunAt: &past,
	}
	spent := &workflow.Schedule{
		ID: types.NewID(), WorkflowID: wf.ID,
		Cadence: workflow.CadenceOnce, Enabled: true, NextRunAt: nil,
	}
	for _, s := range []*workflow.Schedule{due, notYet, disabled, spent} {
		require.NoError(t, dao.CreateSchedule(ctx, s))
	}

	found, err := dao.ListDueSchedules(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, due.ID, found[0].ID)
}

func TestWorkflowDAO_AppendRows(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	ctx := context.Background()

	rows := []map[string]any{
		{"sku": "a1", "price": float64(19.99)},
		{"sku": "b2", "price": float64(5)},
	}
	require.NoError(t, dao.AppendRows(ctx, "products", rows))
	require.NoError(t, dao.AppendRows(ctx, "products", []map[string]any{{"sku": "c3"}}))
	require.NoError(t, dao.AppendRows(ctx, "other", []map[string]any{{"x": true}}))

	got, err := dao.ListDatasetRows(ctx, "products")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a1", got[0]["sku"])
	assert.Equal(t, float64(19.99), got[0]["price"])
	assert.Equal(t, "c3", got[2]["sku"])

	empty, err := dao.ListDatasetRows(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWorkflowDAO_AppendRows_EmptyIsNoop(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	assert.NoError(t, dao.AppendRows(context.Background(), "products", nil))
}

// The DAO backs the service facade end to end: run records created through
// Service.Run land in SQLite with a terminal status.
func TestWorkflowDAO_ServiceIntegration(t *testing.T) {
	dao := NewWorkflowDAO(openTestDB(t))
	ctx := context.Background()

	wf := &workflow.Workflow{
		ID:     types.NewID(),
		UserID: types.NewID(),
		Name:   "data only",
		Definition: workflow.Definition{
			Nodes: []workflow.Node{
				{ID: "start", Kind: workflow.KindStart, Enabled: true},
				{ID: "tag", Kind: workflow.KindTransform, Enabled: true,
					Config: map[string]any{"expression": `"done"`, "output_key": "tag"}},
				{ID: "end", Kind: workflow.KindEnd, Enabled: true},
			},
			Edges: []workflow.Edge{
				{Source: "start", Target: "tag"},
				{Source: "tag", Target: "end"},
			},
		},
		Active: true,
	}
	require.NoError(t, dao.CreateWorkflow(ctx, wf))

	svc := workflow.NewService(dao)
	run, err := svc.Run(ctx, workflow.RunRequest{WorkflowID: wf.ID})
	require.NoError(t, err)

	persisted, err := dao.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RunStatusCompleted, persisted.Status)
	assert.Equal(t, "done", persisted.OutputData["tag"])
	assert.NotEmpty(t, persisted.Logs)
}
