package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
	"github.com/scrapeflow-ai/scrapeflow/internal/workflow"
)

// workflowCmd is the root command for workflow operations
var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage and execute scraping workflows",
	Long: `Register, validate, run, and inspect scraping workflows.

Workflows are authored as YAML files describing a graph of nodes and
edges, registered into the local database, and executed by ID.`,
}

var workflowCreateCmd = &cobra.Command{
	Use:   "create <file.yaml>",
	Short: "Register a workflow from a YAML file",
	Example: `  # Register a workflow
  scrapeflow workflow create price-monitor.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowCreate,
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workflows",
	RunE:  runWorkflowList,
}

var (
	flagRunInput  string
	flagRunOutput string
)

var workflowRunCmd = &cobra.Command{
	Use:   "run <workflow-id>",
	Short: "Execute a workflow",
	Long: `Execute a workflow by ID and print the run outcome.

Input data is passed as a JSON object with --input and seeds the
execution context before the start node runs.`,
	Example: `  # Run a workflow
  scrapeflow workflow run 4f6b2c1e-...

  # Run with input data and save the output data to a file
  scrapeflow workflow run 4f6b2c1e-... --input '{"query": "laptops"}' --output result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowRun,
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate <file.yaml|workflow-id>",
	Short: "Validate a workflow definition",
	Long: `Validate a workflow's graph structure without executing it.

Accepts either a YAML file path or the ID of a registered workflow.
Errors block execution; warnings do not.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowValidate,
}

var workflowStatsCmd = &cobra.Command{
	Use:   "stats <workflow-id>",
	Short: "Show a workflow's execution statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowStats,
}

func init() {
	workflowRunCmd.Flags().StringVar(&flagRunInput, "input", "", "Input data as a JSON object")
	workflowRunCmd.Flags().StringVar(&flagRunOutput, "output", "", "Write the run's output data to a file as JSON")

	workflowCmd.AddCommand(workflowCreateCmd)
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowValidateCmd)
	workflowCmd.AddCommand(workflowStatsCmd)
}

func runWorkflowCreate(cmd *cobra.Command, args []string) error {
	wf, err := loadWorkflowFile(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.service.Validate(&wf.Definition)
	printReport(cmd, report)
	if !report.Valid {
		return fmt.Errorf("workflow failed validation")
	}

	wf.ID = types.NewID()
	if err := a.dao.CreateWorkflow(cmd.Context(), wf); err != nil {
		return err
	}
	cmd.Printf("Created workflow %s (%s)\n", wf.Name, wf.ID)
	return nil
}

func runWorkflowList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	workflows, err := a.dao.ListWorkflows(cmd.Context(), "")
	if err != nil {
		return err
	}
	if len(workflows) == 0 {
		cmd.Println("No workflows registered.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tNODES\tACTIVE\tCREATED")
	for _, wf := range workflows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
			wf.ID, wf.Name, len(wf.Definition.Nodes), wf.Active,
			wf.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runWorkflowRun(cmd *cobra.Command, args []string) error {
	id, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid workflow id: %w", err)
	}

	var input map[string]any
	if flagRunInput != "" {
		if err := json.Unmarshal([]byte(flagRunInput), &input); err != nil {
			return fmt.Errorf("invalid --input JSON: %w", err)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	run, runErr := a.service.Run(cmd.Context(), workflow.RunRequest{
		WorkflowID: id,
		InputData:  input,
	})
	if run == nil {
		return runErr
	}

	cmd.Printf("Run %s finished: %s (%.2fs, %d log entries)\n",
		run.ID, run.Status, run.DurationSeconds, len(run.Logs))
	for _, entry := range run.Logs {
		if entry.Status == workflow.LogStatusError || entry.Status == workflow.LogStatusWarning {
			cmd.Printf("  [%s] %s: %s\n", entry.Status, entry.NodeID, entry.Message)
		}
	}

	if flagRunOutput != "" {
		raw, err := json.MarshalIndent(run.OutputData, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output data: %w", err)
		}
		if err := os.WriteFile(flagRunOutput, raw, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		cmd.Printf("Output data written to %s\n", flagRunOutput)
	}

	return runErr
}

func runWorkflowValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var def *workflow.Definition
	if id, idErr := types.ParseID(args[0]); idErr == nil {
		wf, err := a.dao.GetWorkflow(cmd.Context(), id)
		if err != nil {
			return err
		}
		def = &wf.Definition
	} else {
		wf, err := loadWorkflowFile(args[0])
		if err != nil {
			return err
		}
		def = &wf.Definition
	}

	report := a.service.Validate(def)
	printReport(cmd, report)
	if !report.Valid {
		return fmt.Errorf("workflow failed validation")
	}
	cmd.Println("Workflow is valid.")
	return nil
}

func runWorkflowStats(cmd *cobra.Command, args []string) error {
	id, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid workflow id: %w", err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.service.Statistics(cmd.Context(), id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Total executions:\t%d\n", stats.TotalExecutions)
	fmt.Fprintf(w, "Successful:\t%d\n", stats.SuccessfulExecutions)
	fmt.Fprintf(w, "Failed:\t%d\n", stats.FailedExecutions)
	fmt.Fprintf(w, "Success rate:\t%.1f%%\n", stats.SuccessRate*100)
	fmt.Fprintf(w, "Average duration:\t%.2fs\n", stats.AverageDurationSeconds)
	if stats.LastExecutionAt != nil {
		fmt.Fprintf(w, "Last execution:\t%s (%s)\n",
			stats.LastExecutionAt.Format(time.RFC3339), stats.LastExecutionStatus)
	}
	return w.Flush()
}

// printReport writes validation errors and warnings to the command output
func printReport(cmd *cobra.Command, report workflow.ValidationReport) {
	for _, e := range report.Errors {
		cmd.Printf("error: %s\n", e)
	}
	for _, w := range report.Warnings {
		cmd.Printf("warning: %s\n", w)
	}
}
