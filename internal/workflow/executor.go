package workflow

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/browser"
	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
)

// DatasetStore is the slice of the repository the database node needs:
// appending extracted rows to a named dataset.
type DatasetStore interface {
	AppendRows(ctx context.Context, table string, rows []map[string]any) error
}

// Env carries the run-scoped collaborators handed to node executors: the
// AI extraction service, an HTTP client for api_call nodes, the dataset
// store for database nodes, the expression evaluator, and the logger. The
// browser driver travels on the ExecutionContext because its lifetime is
// bound to the run, not the engine.
type Env struct {
	Extractor  llm.Extractor
	HTTPClient *http.Client
	Datasets   DatasetStore
	Evaluator  *Evaluator
	Logger     *slog.Logger
}

// EnvOption is a functional option for configuring Env.
type EnvOption func(*Env)

// WithExtractor sets the AI extraction service used by ai_* nodes.
func WithExtractor(e llm.Extractor) EnvOption {
	return func(env *Env) { env.Extractor = e }
}

// WithHTTPClient sets the HTTP client used by api_call nodes.
func WithHTTPClient(c *http.Client) EnvOption {
	return func(env *Env) { env.HTTPClient = c }
}

// WithDatasets sets the dataset store used by database nodes.
func WithDatasets(d DatasetStore) EnvOption {
	return func(env *Env) { env.Datasets = d }
}

// WithEnvLogger sets the structured logger.
func WithEnvLogger(l *slog.Logger) EnvOption {
	return func(env *Env) { env.Logger = l }
}

// NewEnv creates an executor environment. Defaults: no AI service, a
// 30-second HTTP client, no dataset store, the default evaluator, and
// slog.Default().
func NewEnv(opts ...EnvOption) *Env {
	env := &Env{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Evaluator:  NewEvaluator(),
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ExecutorFunc implements one node kind. Executors read config from the
// node, state from the execution context, and collaborators from the
// environment; a non-nil error marks the attempt failed.
type ExecutorFunc func(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error

// Registry maps node kinds to executors. New kinds are added by extending
// the map, not by subclassing anything.
type Registry struct {
	executors map[NodeKind]ExecutorFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[NodeKind]ExecutorFunc)}
}

// Register installs the executor for a kind, replacing any previous one.
func (r *Registry) Register(kind NodeKind, fn ExecutorFunc) {
	r.executors[kind] = fn
}

// Get returns the executor for a kind, or nil.
func (r *Registry) Get(kind NodeKind) ExecutorFunc {
	return r.executors[kind]
}

// DefaultRegistry returns a registry with every kind in the closed set
// wired to its executor. Control kinds (start, end, condition, loop,
// parallel) have executors that only validate and record; their traversal
// semantics live in the walker.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(KindStart, executeNoop)
	r.Register(KindEnd, executeNoop)
	r.Register(KindCondition, executeCondition)
	r.Register(KindLoop, executeLoopCheck)
	r.Register(KindParallel, executeNoop)

	r.Register(KindNavigate, executeNavigate)
	r.Register(KindClick, executeClick)
	r.Register(KindTypeText, executeTypeText)
	r.Register(KindWait, executeWait)
	r.Register(KindScreenshot, executeScreenshot)

	r.Register(KindExtractText, executeExtractText)
	r.Register(KindExtractAttribute, executeExtractAttribute)
	r.Register(KindExtractMultiple, executeExtractMultiple)

	r.Register(KindTransform, executeTransform)
	r.Register(KindFilter, executeFilter)
	r.Register(KindMap, executeMap)
	r.Register(KindMerge, executeMerge)

	r.Register(KindSaveJSON, executeSaveJSON)
	r.Register(KindSaveCSV, executeSaveCSV)
	r.Register(KindAPICall, executeAPICall)
	r.Register(KindDatabase, executeDatabase)

	r.Register(KindAIExtract, executeAIExtract)
	r.Register(KindAIClassify, executeAIClassify)
	r.Register(KindAIGenerate, executeAIGenerate)

	return r
}

// executeNoop is the executor for kinds whose only effect is a log entry.
func executeNoop(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	return nil
}

// executeCondition evaluates the node's condition for observability and
// stores the result when an output key is configured. Branching itself is
// decided by edge conditions, so this executor never fails the run.
func executeCondition(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg ConditionConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Condition == "" {
		return nil
	}

	result, err := env.Evaluator.EvaluateBool(cfg.Condition, ec.Snapshot())
	if err != nil {
		env.Logger.Warn("condition node expression failed, recording false",
			"node_id", node.ID, "error", err)
		result = false
	}
	if cfg.OutputKey != "" {
		ec.Set(cfg.OutputKey, result)
	}
	return nil
}

// executeLoopCheck validates the loop node's input; iteration is driven by
// the walker.
func executeLoopCheck(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg LoopConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.InputKey == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "loop requires input_key", nil)
	}

	value, _ := ec.Get(cfg.InputKey)
	if value == nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"loop input "+cfg.InputKey+" is not set", nil)
	}
	if _, ok := value.([]any); !ok {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"loop input "+cfg.InputKey+" is not a list", nil)
	}
	return nil
}

// requireDriver returns the run's browser driver or a node-attributed
// failure when none was provisioned.
func requireDriver(node *Node, ec *ExecutionContext) (browser.Driver, error) {
	driver := ec.Driver()
	if driver == nil {
		return nil, newNodeError(ErrNodeExecutionFailed, node.ID,
			"browser driver not available", nil)
	}
	return driver, nil
}
