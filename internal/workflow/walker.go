package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// defaultMaxSteps bounds total node executions per run as a last line of
// defense against runaway graphs that validation missed.
const defaultMaxSteps = 10000

// Walker traverses a workflow graph depth-first from the start node,
// dispatching each node to its executor, gating edges on their conditions,
// and honoring per-node enable/retry/timeout policies. A node reached by
// multiple converging edges executes once per arrival; fan-out is explicit.
type Walker struct {
	registry       *Registry
	env            *Env
	logger         *slog.Logger
	maxSteps       int64
	defaultTimeout time.Duration
}

// WalkerOption is a functional option for configuring Walker.
type WalkerOption func(*Walker)

// WithRegistry overrides the executor registry.
func WithRegistry(r *Registry) WalkerOption {
	return func(w *Walker) { w.registry = r }
}

// WithEnv sets the executor environment.
func WithEnv(env *Env) WalkerOption {
	return func(w *Walker) { w.env = env }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) WalkerOption {
	return func(w *Walker) { w.logger = l }
}

// WithMaxSteps overrides the per-run node execution bound.
func WithMaxSteps(n int64) WalkerOption {
	return func(w *Walker) {
		if n > 0 {
			w.maxSteps = n
		}
	}
}

// WithDefaultTimeout sets the per-attempt timeout applied to nodes that do
// not carry their own. Zero leaves such nodes unbounded.
func WithDefaultTimeout(d time.Duration) WalkerOption {
	return func(w *Walker) {
		if d > 0 {
			w.defaultTimeout = d
		}
	}
}

// NewWalker creates a Walker. Defaults: the full executor registry, a
// fresh environment, slog.Default(), and the standard step bound.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{
		registry: DefaultRegistry(),
		env:      nil,
		logger:   slog.Default(),
		maxSteps: defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.env == nil {
		w.env = NewEnv(WithEnvLogger(w.logger))
	}
	return w
}

// Run walks the definition from its start node. The caller owns resource
// acquisition and release; the walker owns traversal and the execution
// context for the duration of the call. On return the context status is
// terminal.
func (w *Walker) Run(ctx context.Context, def *Definition, ec *ExecutionContext) error {
	start := def.StartNode()
	if start == nil {
		err := newEngineError(ErrInvalidGraph, "workflow has no start node")
		ec.finish(RunStatusFailed, err)
		return err
	}

	w.logger.Info("starting workflow traversal",
		"nodes", len(def.Nodes), "edges", len(def.Edges))

	var steps atomic.Int64
	err := w.walk(ctx, def, start, ec, &steps, nil)
	switch {
	case err == nil:
		ec.finish(RunStatusCompleted, nil)
	case EngineCodeOf(err) == ErrRunCancelled:
		ec.finish(RunStatusCancelled, err)
	default:
		ec.finish(RunStatusFailed, err)
	}
	return err
}

// walk executes one node and descends into its outgoing edges. stop holds
// node IDs at which this descent terminates without executing; it bounds
// loop-body subgraphs that link back to their loop node.
func (w *Walker) walk(ctx context.Context, def *Definition, node *Node, ec *ExecutionContext, steps *atomic.Int64, stop map[string]bool) error {
	if stop[node.ID] {
		return nil
	}

	select {
	case <-ctx.Done():
		return &EngineError{
			Code:    ErrRunCancelled,
			Message: "run cancelled before node " + node.ID,
			NodeID:  node.ID,
			Cause:   ctx.Err(),
		}
	default:
	}

	if steps.Add(1) > w.maxSteps {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			fmt.Sprintf("traversal exceeded %d node executions", w.maxSteps), nil)
	}

	if !node.Enabled {
		w.logger.Debug("skipping disabled node", "node_id", node.ID, "kind", node.Kind)
		ec.Log(LogEntry{
			NodeID:   node.ID,
			NodeKind: node.Kind,
			Status:   LogStatusSkipped,
			Message:  "node disabled",
		})
		// A disabled loop contributes no iterations; continue past it.
		if node.Kind == KindLoop {
			return w.walkEdges(ctx, def, continueEdges(def.OutgoingEdges(node.ID)), ec, steps, stop)
		}
		return w.walkEdges(ctx, def, def.OutgoingEdges(node.ID), ec, steps, stop)
	}

	if err := w.executeWithRetry(ctx, node, ec); err != nil {
		return err
	}

	switch node.Kind {
	case KindLoop:
		return w.walkLoop(ctx, def, node, ec, steps, stop)
	case KindParallel:
		return w.walkParallel(ctx, def, node, ec, steps, stop)
	default:
		return w.walkEdges(ctx, def, def.OutgoingEdges(node.ID), ec, steps, stop)
	}
}

// walkEdges follows edges in declaration order, gating each on its
// condition. An evaluation failure drops the edge with a warning instead
// of failing the run.
func (w *Walker) walkEdges(ctx context.Context, def *Definition, edges []Edge, ec *ExecutionContext, steps *atomic.Int64, stop map[string]bool) error {
	for _, edge := range edges {
		if edge.Condition != "" {
			take, err := w.env.Evaluator.EvaluateBool(edge.Condition, ec.Snapshot())
			if err != nil {
				w.logger.Warn("edge condition failed, dropping edge",
					"source", edge.Source, "target", edge.Target, "error", err)
				ec.Log(LogEntry{
					NodeID:   edge.Source,
					NodeKind: nodeKindOf(def, edge.Source),
					Status:   LogStatusWarning,
					Message:  fmt.Sprintf("condition on edge to %s failed: %v", edge.Target, err),
				})
				continue
			}
			if !take {
				continue
			}
		}

		target := def.GetNode(edge.Target)
		if target == nil {
			return newEngineError(ErrInvalidGraph,
				"edge references unknown node "+edge.Target)
		}
		if err := w.walk(ctx, def, target, ec, steps, stop); err != nil {
			return err
		}
	}
	return nil
}

// walkLoop iterates the loop node's input list, binding the loop variable
// and descending into the body subgraph once per iteration, then continues
// through the remaining edges. The body is the set of edges whose source
// handle is "body"; a body edge pointing back at the loop node terminates
// that iteration rather than re-entering the loop.
func (w *Walker) walkLoop(ctx context.Context, def *Definition, node *Node, ec *ExecutionContext, steps *atomic.Int64, stop map[string]bool) error {
	var cfg LoopConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}

	value, _ := ec.Get(cfg.InputKey)
	items, _ := value.([]any) // validated by the loop executor

	limit := len(items)
	if cfg.MaxIterations > 0 && cfg.MaxIterations < limit {
		limit = cfg.MaxIterations
	}

	loopVar := cfg.LoopVariable
	if loopVar == "" {
		loopVar = "item"
	}

	edges := def.OutgoingEdges(node.ID)
	var body, rest []Edge
	for _, e := range edges {
		if e.SourceHandle == HandleBody {
			body = append(body, e)
		} else {
			rest = append(rest, e)
		}
	}

	bodyStop := map[string]bool{node.ID: true}
	for k := range stop {
		bodyStop[k] = true
	}

	for i := 0; i < limit; i++ {
		select {
		case <-ctx.Done():
			return &EngineError{
				Code:    ErrRunCancelled,
				Message: fmt.Sprintf("run cancelled during loop iteration %d", i),
				NodeID:  node.ID,
				Cause:   ctx.Err(),
			}
		default:
		}

		ec.Set(loopVar, items[i])
		ec.Set("loop_index", float64(i))

		if err := w.walkEdges(ctx, def, body, ec, steps, bodyStop); err != nil {
			return err
		}
	}

	return w.walkEdges(ctx, def, rest, ec, steps, stop)
}

// walkParallel traverses all outgoing edges concurrently with an implicit
// join: the node's descent returns once every branch finishes, and the
// first branch error cancels the rest and fails the node.
func (w *Walker) walkParallel(ctx context.Context, def *Definition, node *Node, ec *ExecutionContext, steps *atomic.Int64, stop map[string]bool) error {
	edges := def.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, edge := range edges {
		edge := edge
		g.Go(func() error {
			return w.walkEdges(gctx, def, []Edge{edge}, ec, steps, stop)
		})
	}
	return g.Wait()
}

// executeWithRetry runs a node's executor up to RetryCount+1 times with
// RetryDelay between attempts, logging every attempt. Only the final
// failure propagates.
func (w *Walker) executeWithRetry(ctx context.Context, node *Node, ec *ExecutionContext) error {
	executor := w.registry.Get(node.Kind)
	if executor == nil {
		return newNodeError(ErrInvalidGraph, node.ID,
			"no executor for node kind "+string(node.Kind), nil)
	}

	attempts := node.RetryCount + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && node.RetryDelay > 0 {
			timer := time.NewTimer(node.RetryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return &EngineError{
					Code:    ErrRunCancelled,
					Message: "run cancelled during retry delay",
					NodeID:  node.ID,
					Cause:   ctx.Err(),
				}
			}
		}

		timeout := node.Timeout
		if timeout == 0 {
			timeout = w.defaultTimeout
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		started := time.Now()
		err := executor(attemptCtx, node, ec, w.env)
		duration := time.Since(started)

		if cancel != nil {
			if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				err = newNodeError(ErrNodeTimeout, node.ID,
					fmt.Sprintf("attempt timed out after %v", timeout), err)
			}
			cancel()
		}

		if err == nil {
			ec.Log(LogEntry{
				NodeID:     node.ID,
				NodeKind:   node.Kind,
				Status:     LogStatusSuccess,
				DurationMS: duration.Milliseconds(),
			})
			return nil
		}

		lastErr = err
		w.logger.Warn("node attempt failed",
			"node_id", node.ID, "kind", node.Kind,
			"attempt", attempt, "attempts", attempts, "error", err)
		ec.Log(LogEntry{
			NodeID:     node.ID,
			NodeKind:   node.Kind,
			Status:     LogStatusError,
			Message:    fmt.Sprintf("attempt %d/%d failed: %v", attempt, attempts, err),
			DurationMS: duration.Milliseconds(),
		})

		// External cancellation is not retryable.
		if ctx.Err() != nil {
			return &EngineError{
				Code:    ErrRunCancelled,
				Message: "run cancelled during node execution",
				NodeID:  node.ID,
				Cause:   ctx.Err(),
			}
		}
	}

	if EngineCodeOf(lastErr) != "" {
		return lastErr
	}
	return newNodeError(ErrNodeExecutionFailed, node.ID,
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

// continueEdges filters out loop-body edges, leaving the edges that
// continue past the loop.
func continueEdges(edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.SourceHandle != HandleBody {
			out = append(out, e)
		}
	}
	return out
}

func nodeKindOf(def *Definition, nodeID string) NodeKind {
	if n := def.GetNode(nodeID); n != nil {
		return n.Kind
	}
	return ""
}
