package workflow

import (
	"fmt"
	"strings"
)

// ValidationReport is the outcome of validating a workflow definition.
// Errors make the definition unrunnable; warnings do not.
type ValidationReport struct {
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
}

// Validator checks workflow definitions against the graph invariants:
// exactly one start node, unique node IDs, known kinds, edge endpoints
// that exist, and no cycles outside loop nodes. It is stateless; Validate
// is idempotent.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs all checks and returns a complete report rather than the
// first failure.
func (v *Validator) Validate(def *Definition) ValidationReport {
	var errs, warnings []string

	if def == nil || len(def.Nodes) == 0 {
		errs = append(errs, "workflow must contain at least one node")
		return buildReport(errs, warnings)
	}

	seen := make(map[string]bool, len(def.Nodes))
	startCount := 0
	endCount := 0
	for i := range def.Nodes {
		node := &def.Nodes[i]
		if node.ID == "" {
			errs = append(errs, fmt.Sprintf("node at index %d has no id", i))
			continue
		}
		if seen[node.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", node.ID))
		}
		seen[node.ID] = true

		if !node.Kind.IsValid() {
			errs = append(errs, fmt.Sprintf("node %q has unknown kind %q", node.ID, node.Kind))
		}
		switch node.Kind {
		case KindStart:
			startCount++
		case KindEnd:
			endCount++
		}
		if node.RetryCount < 0 {
			errs = append(errs, fmt.Sprintf("node %q has negative retry_count", node.ID))
		}
	}

	switch startCount {
	case 0:
		errs = append(errs, "workflow has no start node")
	case 1:
	default:
		errs = append(errs, fmt.Sprintf("workflow has %d start nodes, expected exactly one", startCount))
	}
	if endCount == 0 {
		warnings = append(warnings, "workflow has no end node")
	}

	for i, edge := range def.Edges {
		if !seen[edge.Source] {
			errs = append(errs, fmt.Sprintf("edge %d references unknown source node %q", i, edge.Source))
		}
		if !seen[edge.Target] {
			errs = append(errs, fmt.Sprintf("edge %d references unknown target node %q", i, edge.Target))
		}
	}

	// Remaining checks need a structurally sound graph.
	if len(errs) == 0 {
		if cycle := v.findIllegalCycle(def); len(cycle) > 0 {
			errs = append(errs, fmt.Sprintf(
				"cycle outside a loop node: %s", strings.Join(cycle, " -> ")))
		}
		warnings = append(warnings, v.disconnectedNodes(def)...)
	}

	return buildReport(errs, warnings)
}

// findIllegalCycle detects cycles with DFS color marking (white, gray,
// black). Body edges leaving a loop node are excluded from the traversal:
// a cycle that closes only through the loop's body subgraph is bounded by
// the walker's iteration count and is legal. Any cycle that survives the
// exclusion would be stopped only by the step guard, so it is reported.
func (v *Validator) findIllegalCycle(def *Definition) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(def.Nodes))
	parent := make(map[string]string)

	adj := make(map[string][]string, len(def.Nodes))
	for _, edge := range def.Edges {
		if edge.SourceHandle == HandleBody {
			if node := def.GetNode(edge.Source); node != nil && node.Kind == KindLoop {
				continue
			}
		}
		adj[edge.Source] = append(adj[edge.Source], edge.Target)
	}

	var dfs func(nodeID string) []string
	dfs = func(nodeID string) []string {
		color[nodeID] = gray
		for _, next := range adj[nodeID] {
			switch color[next] {
			case white:
				parent[next] = nodeID
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			case gray:
				// Back edge: reconstruct the cycle path.
				cycle := []string{next}
				current := nodeID
				for current != next {
					cycle = append([]string{current}, cycle...)
					current = parent[current]
				}
				cycle = append([]string{next}, cycle...)
				return cycle
			}
		}
		color[nodeID] = black
		return nil
	}

	for i := range def.Nodes {
		id := def.Nodes[i].ID
		if color[id] != white {
			continue
		}
		if cycle := dfs(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// disconnectedNodes warns about nodes unreachable from the start node.
func (v *Validator) disconnectedNodes(def *Definition) []string {
	start := def.StartNode()
	if start == nil {
		return nil
	}

	reachable := make(map[string]bool, len(def.Nodes))
	queue := []string{start.ID}
	reachable[start.ID] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range def.OutgoingEdges(current) {
			if !reachable[edge.Target] {
				reachable[edge.Target] = true
				queue = append(queue, edge.Target)
			}
		}
	}

	var warnings []string
	for i := range def.Nodes {
		id := def.Nodes[i].ID
		if !reachable[id] {
			warnings = append(warnings, fmt.Sprintf("node %q is not reachable from the start node", id))
		}
	}
	return warnings
}

func buildReport(errs, warnings []string) ValidationReport {
	return ValidationReport{
		Valid:        len(errs) == 0,
		Errors:       errs,
		Warnings:     warnings,
		ErrorCount:   len(errs),
		WarningCount: len(warnings),
	}
}
