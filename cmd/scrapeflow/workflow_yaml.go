package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrapeflow-ai/scrapeflow/internal/workflow"
)

// workflowFile is the YAML authoring format for a workflow definition.
type workflowFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Settings    map[string]any `yaml:"settings,omitempty"`
	Nodes       []nodeFile     `yaml:"nodes"`
	Edges       []edgeFile     `yaml:"edges"`
}

type nodeFile struct {
	ID         string         `yaml:"id"`
	Kind       string         `yaml:"kind"`
	Name       string         `yaml:"name,omitempty"`
	Config     map[string]any `yaml:"config,omitempty"`
	Disabled   bool           `yaml:"disabled,omitempty"`
	Timeout    string         `yaml:"timeout,omitempty"`
	RetryCount int            `yaml:"retry_count,omitempty"`
	RetryDelay string         `yaml:"retry_delay,omitempty"`
}

type edgeFile struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Handle    string `yaml:"handle,omitempty"`
	Condition string `yaml:"condition,omitempty"`
}

// loadWorkflowFile parses a YAML workflow file into a workflow ready for
// registration.
func loadWorkflowFile(path string) (*workflow.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var file workflowFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("workflow file %s has no name", path)
	}

	def := workflow.Definition{
		Nodes: make([]workflow.Node, 0, len(file.Nodes)),
		Edges: make([]workflow.Edge, 0, len(file.Edges)),
	}
	for _, n := range file.Nodes {
		node := workflow.Node{
			ID:         n.ID,
			Kind:       workflow.NodeKind(n.Kind),
			Name:       n.Name,
			Config:     n.Config,
			Enabled:    !n.Disabled,
			RetryCount: n.RetryCount,
		}
		if node.Timeout, err = parseOptionalDuration(n.Timeout); err != nil {
			return nil, fmt.Errorf("node %s: invalid timeout: %w", n.ID, err)
		}
		if node.RetryDelay, err = parseOptionalDuration(n.RetryDelay); err != nil {
			return nil, fmt.Errorf("node %s: invalid retry_delay: %w", n.ID, err)
		}
		def.Nodes = append(def.Nodes, node)
	}
	for _, e := range file.Edges {
		def.Edges = append(def.Edges, workflow.Edge{
			Source:       e.From,
			SourceHandle: e.Handle,
			Target:       e.To,
			Condition:    e.Condition,
		})
	}

	return &workflow.Workflow{
		Name:        file.Name,
		Description: file.Description,
		Definition:  def,
		Settings:    file.Settings,
		Active:      true,
	}, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
