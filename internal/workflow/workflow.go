// Package workflow implements the visual workflow execution engine: a
// directed-graph interpreter over typed nodes (browser actions, extractions,
// transforms, conditionals, loops, AI calls) with condition-gated edges, a
// shared per-run execution context, and a service facade for validation,
// run records, statistics, and schedules.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// NodeKind selects the executor for a node. The set is closed; validation
// rejects unknown kinds.
type NodeKind string

const (
	// Control nodes.
	KindStart     NodeKind = "start"
	KindEnd       NodeKind = "end"
	KindCondition NodeKind = "condition"
	KindLoop      NodeKind = "loop"
	KindParallel  NodeKind = "parallel"

	// Browser nodes.
	KindNavigate   NodeKind = "navigate"
	KindClick      NodeKind = "click"
	KindTypeText   NodeKind = "type_text"
	KindWait       NodeKind = "wait"
	KindScreenshot NodeKind = "screenshot"

	// Extraction nodes.
	KindExtractText      NodeKind = "extract_text"
	KindExtractAttribute NodeKind = "extract_attribute"
	KindExtractMultiple  NodeKind = "extract_multiple"

	// Transform nodes.
	KindTransform NodeKind = "transform"
	KindFilter    NodeKind = "filter"
	KindMap       NodeKind = "map"
	KindMerge     NodeKind = "merge"

	// Output nodes.
	KindSaveJSON NodeKind = "save_json"
	KindSaveCSV  NodeKind = "save_csv"
	KindAPICall  NodeKind = "api_call"
	KindDatabase NodeKind = "database"

	// AI nodes.
	KindAIExtract  NodeKind = "ai_extract"
	KindAIClassify NodeKind = "ai_classify"
	KindAIGenerate NodeKind = "ai_generate"
)

// allKinds is the closed node-kind set used by validation.
var allKinds = map[NodeKind]bool{
	KindStart: true, KindEnd: true, KindCondition: true, KindLoop: true,
	KindParallel: true, KindNavigate: true, KindClick: true,
	KindTypeText: true, KindWait: true, KindScreenshot: true,
	KindExtractText: true, KindExtractAttribute: true,
	KindExtractMultiple: true, KindTransform: true, KindFilter: true,
	KindMap: true, KindMerge: true, KindSaveJSON: true, KindSaveCSV: true,
	KindAPICall: true, KindDatabase: true, KindAIExtract: true,
	KindAIClassify: true, KindAIGenerate: true,
}

// browserKinds is the subset of kinds that require a live browser driver.
// The service only provisions a driver when the workflow contains at least
// one of these.
var browserKinds = map[NodeKind]bool{
	KindNavigate: true, KindClick: true, KindTypeText: true,
	KindWait: true, KindScreenshot: true, KindExtractText: true,
	KindExtractAttribute: true, KindExtractMultiple: true,
}

// IsValid reports whether the kind belongs to the closed set.
func (k NodeKind) IsValid() bool {
	return allKinds[k]
}

// RequiresBrowser reports whether the kind drives the browser.
func (k NodeKind) RequiresBrowser() bool {
	return browserKinds[k]
}

// Position is the canvas position of a node in the visual editor. The
// engine carries it through but never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single unit of work in a workflow graph. Config carries
// kind-specific parameters and is decoded into a typed config at execution
// time.
type Node struct {
	ID         string         `json:"id"`
	Kind       NodeKind       `json:"kind"`
	Name       string         `json:"name,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
	Enabled    bool           `json:"enabled"`
	Timeout    time.Duration  `json:"timeout,omitempty"`
	RetryCount int            `json:"retry_count,omitempty"`
	RetryDelay time.Duration  `json:"retry_delay,omitempty"`
	Position   Position       `json:"position"`
}

// UnmarshalJSON decodes a node, defaulting Enabled to true when the field
// is absent. Editors only emit "enabled" for nodes the user switched off;
// an omitted field must not silently skip the node.
func (n *Node) UnmarshalJSON(data []byte) error {
	type alias Node
	aux := struct {
		Enabled *bool `json:"enabled"`
		*alias
	}{alias: (*alias)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.Enabled = aux.Enabled == nil || *aux.Enabled
	return nil
}

// Edge is a directed connection between two nodes. Condition, when present,
// is evaluated against the execution context at traversal time; the edge is
// dropped on false or evaluation error. SourceHandle distinguishes outgoing
// ports on control nodes: a loop node's "body" edges form the per-iteration
// subgraph, everything else continues after the loop.
type Edge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// HandleBody marks loop-body edges.
const HandleBody = "body"

// Definition is a complete workflow graph: an ordered node list plus a flat
// edge list. Node order and edge order are both meaningful; the walker
// follows edges in declaration order.
type Definition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// GetNode returns the node with the given id, or nil.
func (d *Definition) GetNode(id string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the start node, or nil when absent.
func (d *Definition) StartNode() *Node {
	for i := range d.Nodes {
		if d.Nodes[i].Kind == KindStart {
			return &d.Nodes[i]
		}
	}
	return nil
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (d *Definition) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// RequiresBrowser reports whether any node in the definition drives the
// browser.
func (d *Definition) RequiresBrowser() bool {
	for i := range d.Nodes {
		if d.Nodes[i].Kind.RequiresBrowser() {
			return true
		}
	}
	return false
}

// RunStatus is the lifecycle status of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// String returns the string representation of the run status.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is terminal. Terminal statuses are
// immutable.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// LogStatus is the per-entry outcome recorded in the run log.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
	LogStatusSkipped LogStatus = "skipped"
	LogStatusWarning LogStatus = "warning"
)

// LogEntry is one structured entry in a run's audit trail. Entries are
// append-only and preserve append order.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	NodeID     string         `json:"node_id"`
	NodeKind   NodeKind       `json:"node_kind"`
	Status     LogStatus      `json:"status"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
}

// Workflow is a stored workflow: the definition plus ownership and
// bookkeeping fields maintained by the service.
type Workflow struct {
	ID          types.ID       `json:"id"`
	UserID      types.ID       `json:"user_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Definition  Definition     `json:"definition"`
	Settings    map[string]any `json:"settings,omitempty"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
