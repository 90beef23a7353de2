package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logsFor(ec *ExecutionContext, nodeID string, status LogStatus) []LogEntry {
	var out []LogEntry
	for _, entry := range ec.Logs() {
		if entry.NodeID == nodeID && entry.Status == status {
			out = append(out, entry)
		}
	}
	return out
}

func TestWalker_LinearExtraction(t *testing.T) {
	driver := newStubDriver()
	driver.elements["h1"] = &stubElement{text: "Acme Widget"}

	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "nav", Kind: KindNavigate, Enabled: true, Config: map[string]any{"url": "https://example.com"}},
			{ID: "title", Kind: KindExtractText, Enabled: true, Config: map[string]any{"selector": "h1", "output_key": "title"}},
			{ID: "save", Kind: KindSaveJSON, Enabled: true, Config: map[string]any{"data_key": "title"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "nav"},
			{Source: "nav", Target: "title"},
			{Source: "title", Target: "save"},
			{Source: "save", Target: "end"},
		},
	}

	ec := NewExecutionContext(nil)
	ec.SetDriver(driver)

	err := NewWalker().Run(context.Background(), def, ec)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, ec.Status())

	assert.Equal(t, []string{"https://example.com"}, driver.navigated)

	title, _ := ec.Get("title")
	assert.Equal(t, "Acme Widget", title)
	output, _ := ec.Get("output")
	assert.Equal(t, "Acme Widget", output)

	for _, id := range []string{"start", "nav", "title", "save", "end"} {
		assert.Len(t, logsFor(ec, id, LogStatusSuccess), 1, "node %s", id)
	}
}

func TestWalker_ConditionalBranch(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "gate", Kind: KindCondition, Enabled: true, Config: map[string]any{"condition": "float(price) < 100", "output_key": "cheap"}},
			{ID: "low", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": `"bargain"`, "output_key": "verdict"}},
			{ID: "high", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": `"premium"`, "output_key": "verdict"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "gate"},
			{Source: "gate", Target: "low", Condition: "float(price) < 100"},
			{Source: "gate", Target: "high", Condition: "float(price) >= 100"},
			{Source: "low", Target: "end"},
			{Source: "high", Target: "end"},
		},
	}

	ec := NewExecutionContext(map[string]any{"price": "42.50"})
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	verdict, _ := ec.Get("verdict")
	assert.Equal(t, "bargain", verdict)
	assert.Len(t, logsFor(ec, "low", LogStatusSuccess), 1)
	assert.Empty(t, logsFor(ec, "high", LogStatusSuccess))
}

func TestWalker_RetrySucceedsWithinBudget(t *testing.T) {
	driver := newStubDriver()
	driver.failClicks = 2

	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "btn", Kind: KindClick, Enabled: true, RetryCount: 3, Config: map[string]any{"selector": "#more"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "btn"},
			{Source: "btn", Target: "end"},
		},
	}

	ec := NewExecutionContext(nil)
	ec.SetDriver(driver)
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	assert.Equal(t, RunStatusCompleted, ec.Status())
	assert.Equal(t, []string{"#more"}, driver.clicks)

	errs := logsFor(ec, "btn", LogStatusError)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "attempt 1/4 failed")
	assert.Contains(t, errs[1].Message, "attempt 2/4 failed")
	assert.Len(t, logsFor(ec, "btn", LogStatusSuccess), 1)
}

func TestWalker_UnrecoverableFailure(t *testing.T) {
	driver := newStubDriver()
	driver.failGets = 5

	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "nav", Kind: KindNavigate, Enabled: true, RetryCount: 1, Config: map[string]any{"url": "https://example.com"}},
			{ID: "after", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "1", "output_key": "ran"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "nav"},
			{Source: "nav", Target: "after"},
			{Source: "after", Target: "end"},
		},
	}

	ec := NewExecutionContext(nil)
	ec.SetDriver(driver)

	err := NewWalker().Run(context.Background(), def, ec)
	require.Error(t, err)
	assert.Equal(t, RunStatusFailed, ec.Status())
	assert.Equal(t, ErrNodeExecutionFailed, EngineCodeOf(err))

	// Both attempts logged, downstream nodes never reached.
	assert.Len(t, logsFor(ec, "nav", LogStatusError), 2)
	assert.Empty(t, logsFor(ec, "after", LogStatusSuccess))
	_, ran := ec.Get("ran")
	assert.False(t, ran)
}

func TestWalker_DisabledNodeSkipped(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "off", Kind: KindTransform, Enabled: false, Config: map[string]any{"expression": "1", "output_key": "x"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "off"},
			{Source: "off", Target: "end"},
		},
	}

	ec := NewExecutionContext(nil)
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	assert.Equal(t, RunStatusCompleted, ec.Status())
	skips := logsFor(ec, "off", LogStatusSkipped)
	require.Len(t, skips, 1)
	assert.Equal(t, "node disabled", skips[0].Message)

	_, ok := ec.Get("x")
	assert.False(t, ok)
	assert.Len(t, logsFor(ec, "end", LogStatusSuccess), 1)
}

func TestWalker_LoopBoundByMaxIterations(t *testing.T) {
	items := make([]any, 10)
	for i := range items {
		items[i] = map[string]any{"n": float64(i)}
	}

	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "each", Kind: KindLoop, Enabled: true, Config: map[string]any{"input_key": "items", "max_iterations": 3}},
			{ID: "work", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "item.n", "output_key": "last"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "each"},
			{Source: "each", SourceHandle: HandleBody, Target: "work"},
			{Source: "work", Target: "each"},
			{Source: "each", Target: "end"},
		},
	}

	ec := NewExecutionContext(map[string]any{"items": items})
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	assert.Equal(t, RunStatusCompleted, ec.Status())
	assert.Len(t, logsFor(ec, "work", LogStatusSuccess), 3)

	last, _ := ec.Get("last")
	assert.Equal(t, float64(2), last)
	idx, _ := ec.Get("loop_index")
	assert.Equal(t, float64(2), idx)
	assert.Len(t, logsFor(ec, "end", LogStatusSuccess), 1)
}

func TestWalker_LoopCustomVariable(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "each", Kind: KindLoop, Enabled: true, Config: map[string]any{"input_key": "urls", "loop_variable": "url"}},
			{ID: "work", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "upper(url)", "output_key": "last_url"}},
		},
		Edges: []Edge{
			{Source: "start", Target: "each"},
			{Source: "each", SourceHandle: HandleBody, Target: "work"},
		},
	}

	ec := NewExecutionContext(map[string]any{"urls": []any{"a", "b"}})
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	last, _ := ec.Get("last_url")
	assert.Equal(t, "B", last)
	assert.Len(t, logsFor(ec, "work", LogStatusSuccess), 2)
}

func TestWalker_LoopEmptyInput(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "each", Kind: KindLoop, Enabled: true, Config: map[string]any{"input_key": "items"}},
			{ID: "work", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "1", "output_key": "x"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "each"},
			{Source: "each", SourceHandle: HandleBody, Target: "work"},
			{Source: "each", Target: "end"},
		},
	}

	ec := NewExecutionContext(map[string]any{"items": []any{}})
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	assert.Empty(t, logsFor(ec, "work", LogStatusSuccess))
	assert.Len(t, logsFor(ec, "end", LogStatusSuccess), 1)
}

func TestWalker_ParallelFanOut(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "fan", Kind: KindParallel, Enabled: true},
			{ID: "a", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": `"left"`, "output_key": "a"}},
			{ID: "b", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": `"right"`, "output_key": "b"}},
		},
		Edges: []Edge{
			{Source: "start", Target: "fan"},
			{Source: "fan", Target: "a"},
			{Source: "fan", Target: "b"},
		},
	}

	ec := NewExecutionContext(nil)
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	a, _ := ec.Get("a")
	b, _ := ec.Get("b")
	assert.Equal(t, "left", a)
	assert.Equal(t, "right", b)
}

func TestWalker_ParallelBranchFailureFailsRun(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "fan", Kind: KindParallel, Enabled: true},
			{ID: "good", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "1", "output_key": "ok"}},
			{ID: "bad", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "1 / 0", "output_key": "boom"}},
		},
		Edges: []Edge{
			{Source: "start", Target: "fan"},
			{Source: "fan", Target: "good"},
			{Source: "fan", Target: "bad"},
		},
	}

	ec := NewExecutionContext(nil)
	err := NewWalker().Run(context.Background(), def, ec)
	require.Error(t, err)
	assert.Equal(t, RunStatusFailed, ec.Status())
}

func TestWalker_EdgeConditionErrorDropsEdge(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "a", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "1", "output_key": "a"}},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{
			{Source: "start", Target: "a", Condition: "1 +"},
			{Source: "start", Target: "end"},
		},
	}

	ec := NewExecutionContext(nil)
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	assert.Equal(t, RunStatusCompleted, ec.Status())
	assert.Empty(t, logsFor(ec, "a", LogStatusSuccess))

	warnings := logsFor(ec, "start", LogStatusWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "condition on edge to a failed")
	assert.Len(t, logsFor(ec, "end", LogStatusSuccess), 1)
}

func TestWalker_ConvergentEdgesReexecute(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "a", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "1", "output_key": "a"}},
			{ID: "b", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "2", "output_key": "b"}},
			{ID: "join", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "3", "output_key": "j"}},
		},
		Edges: []Edge{
			{Source: "start", Target: "a"},
			{Source: "start", Target: "b"},
			{Source: "a", Target: "join"},
			{Source: "b", Target: "join"},
		},
	}

	ec := NewExecutionContext(nil)
	require.NoError(t, NewWalker().Run(context.Background(), def, ec))

	// Each arriving edge executes the target; the join runs once per branch.
	assert.Len(t, logsFor(ec, "join", LogStatusSuccess), 2)
}

func TestWalker_CancellationBeforeNode(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "end", Kind: KindEnd, Enabled: true},
		},
		Edges: []Edge{{Source: "start", Target: "end"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ec := NewExecutionContext(nil)
	err := NewWalker().Run(ctx, def, ec)
	require.Error(t, err)
	assert.Equal(t, ErrRunCancelled, EngineCodeOf(err))
	assert.Equal(t, RunStatusCancelled, ec.Status())
}

func TestWalker_CancellationDuringRetryDelay(t *testing.T) {
	driver := newStubDriver()
	driver.failClicks = 10

	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "btn", Kind: KindClick, Enabled: true, RetryCount: 5, RetryDelay: time.Minute, Config: map[string]any{"selector": "#x"}},
		},
		Edges: []Edge{{Source: "start", Target: "btn"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	ec := NewExecutionContext(nil)
	ec.SetDriver(driver)

	done := make(chan error, 1)
	go func() { done <- NewWalker().Run(ctx, def, ec) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, ErrRunCancelled, EngineCodeOf(err))
		assert.Equal(t, RunStatusCancelled, ec.Status())
	case <-time.After(5 * time.Second):
		t.Fatal("walker did not honor cancellation during retry delay")
	}
}

func TestWalker_NodeTimeout(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "pause", Kind: KindWait, Enabled: true, Timeout: 20 * time.Millisecond,
				Config: map[string]any{"wait_type": "time", "duration": 5}},
		},
		Edges: []Edge{{Source: "start", Target: "pause"}},
	}

	ec := NewExecutionContext(nil)
	err := NewWalker().Run(context.Background(), def, ec)
	require.Error(t, err)
	assert.Equal(t, ErrNodeTimeout, EngineCodeOf(err))
	assert.Equal(t, RunStatusFailed, ec.Status())
}

func TestWalker_DefaultTimeoutAppliesToUnboundedNodes(t *testing.T) {
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "pause", Kind: KindWait, Enabled: true,
				Config: map[string]any{"wait_type": "time", "duration": 5}},
		},
		Edges: []Edge{{Source: "start", Target: "pause"}},
	}

	ec := NewExecutionContext(nil)
	err := NewWalker(WithDefaultTimeout(20 * time.Millisecond)).Run(context.Background(), def, ec)
	require.Error(t, err)
	assert.Equal(t, ErrNodeTimeout, EngineCodeOf(err))
	assert.Equal(t, RunStatusFailed, ec.Status())
}

func TestWalker_NodeTimeoutOverridesDefault(t *testing.T) {
	// The node's own 5s budget wins over a much tighter default, so the
	// short wait completes.
	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "pause", Kind: KindWait, Enabled: true, Timeout: 5 * time.Second,
				Config: map[string]any{"wait_type": "time", "duration": 0.01}},
		},
		Edges: []Edge{{Source: "start", Target: "pause"}},
	}

	ec := NewExecutionContext(nil)
	err := NewWalker(WithDefaultTimeout(time.Millisecond)).Run(context.Background(), def, ec)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, ec.Status())
}

func TestWalker_StepBound(t *testing.T) {
	items := make([]any, 100)
	for i := range items {
		items[i] = float64(i)
	}

	def := &Definition{
		Nodes: []Node{
			{ID: "start", Kind: KindStart, Enabled: true},
			{ID: "each", Kind: KindLoop, Enabled: true, Config: map[string]any{"input_key": "items"}},
			{ID: "work", Kind: KindTransform, Enabled: true, Config: map[string]any{"expression": "item", "output_key": "x"}},
		},
		Edges: []Edge{
			{Source: "start", Target: "each"},
			{Source: "each", SourceHandle: HandleBody, Target: "work"},
		},
	}

	ec := NewExecutionContext(map[string]any{"items": items})
	err := NewWalker(WithMaxSteps(10)).Run(context.Background(), def, ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 10 node executions")
	assert.Equal(t, RunStatusFailed, ec.Status())
}

func TestWalker_NoStartNode(t *testing.T) {
	def := &Definition{
		Nodes: []Node{{ID: "end", Kind: KindEnd, Enabled: true}},
	}

	ec := NewExecutionContext(nil)
	err := NewWalker().Run(context.Background(), def, ec)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidGraph, EngineCodeOf(err))
	assert.Equal(t, RunStatusFailed, ec.Status())
}
