package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
	"github.com/scrapeflow-ai/scrapeflow/internal/workflow"
)

// scheduleCmd is the root command for schedule operations
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage workflow schedules",
	Long: `Create and fire workflow schedules.

A schedule binds a workflow to a cadence (once, hourly, daily, weekly,
monthly, or a cron expression) and fires it when due. 'schedule fire'
runs one sweep over due schedules; 'schedule fire --watch' keeps polling
at the configured scheduler interval until interrupted.`,
}

var (
	flagScheduleCadence string
	flagScheduleCron    string
	flagScheduleInput   string
	flagScheduleWatch   bool
)

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <workflow-id>",
	Short: "Create a schedule for a workflow",
	Example: `  # Run a workflow every day
  scrapeflow schedule create 4f6b2c1e-... --cadence daily

  # Run at noon via cron expression
  scrapeflow schedule create 4f6b2c1e-... --cadence cron --cron "0 12 * * *"`,
	Args: cobra.ExactArgs(1),
	RunE: runScheduleCreate,
}

var scheduleFireCmd = &cobra.Command{
	Use:   "fire",
	Short: "Run all schedules that are due",
	Long: `Run one sweep over due schedules and exit.

With --watch, keep sweeping at scheduler.poll_interval until interrupted.
Watch mode requires scheduler.enabled: true in the configuration.`,
	RunE: runScheduleFire,
}

func init() {
	scheduleCreateCmd.Flags().StringVar(&flagScheduleCadence, "cadence", "daily",
		"Schedule cadence: once, hourly, daily, weekly, monthly, cron")
	scheduleCreateCmd.Flags().StringVar(&flagScheduleCron, "cron", "",
		"Cron expression (required when --cadence=cron)")
	scheduleCreateCmd.Flags().StringVar(&flagScheduleInput, "input", "",
		"Input data for scheduled runs as a JSON object")
	scheduleFireCmd.Flags().BoolVar(&flagScheduleWatch, "watch", false,
		"Keep polling for due schedules at the configured interval")

	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleFireCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
}

var scheduleListCmd = &cobra.Command{
	Use:   "list <workflow-id>",
	Short: "List a workflow's due schedules",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScheduleList,
}

func runScheduleCreate(cmd *cobra.Command, args []string) error {
	workflowID, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid workflow id: %w", err)
	}

	cadence := workflow.Cadence(flagScheduleCadence)
	if cadence == workflow.CadenceCron && flagScheduleCron == "" {
		return fmt.Errorf("--cron is required when --cadence=cron")
	}

	var input map[string]any
	if flagScheduleInput != "" {
		if err := json.Unmarshal([]byte(flagScheduleInput), &input); err != nil {
			return fmt.Errorf("invalid --input JSON: %w", err)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Reject schedules for workflows that don't exist.
	if _, err := a.dao.GetWorkflow(cmd.Context(), workflowID); err != nil {
		return err
	}

	schedule := &workflow.Schedule{
		WorkflowID: workflowID,
		Cadence:    cadence,
		CronExpr:   flagScheduleCron,
		InputData:  input,
		Enabled:    true,
	}
	if err := a.service.CreateSchedule(cmd.Context(), schedule); err != nil {
		return err
	}

	cmd.Printf("Created schedule %s", schedule.ID)
	if schedule.NextRunAt != nil {
		cmd.Printf(", next run at %s", schedule.NextRunAt.Format(time.RFC3339))
	}
	cmd.Println()
	return nil
}

func runScheduleFire(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if flagScheduleWatch {
		if !a.cfg.Scheduler.Enabled {
			return fmt.Errorf("scheduler is disabled; set scheduler.enabled: true in %s", configPath())
		}
		return a.service.RunScheduler(cmd.Context(), a.cfg.Scheduler.PollInterval)
	}
	return a.service.FireDueSchedules(cmd.Context(), time.Now())
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Far-future horizon shows everything with a pending firing.
	due, err := a.dao.ListDueSchedules(cmd.Context(), time.Now().AddDate(10, 0, 0))
	if err != nil {
		return err
	}
	if len(args) == 1 {
		workflowID, err := types.ParseID(args[0])
		if err != nil {
			return fmt.Errorf("invalid workflow id: %w", err)
		}
		filtered := due[:0]
		for _, s := range due {
			if s.WorkflowID == workflowID {
				filtered = append(filtered, s)
			}
		}
		due = filtered
	}
	if len(due) == 0 {
		cmd.Println("No pending schedules.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWORKFLOW\tCADENCE\tNEXT RUN\tLAST RUN")
	for _, s := range due {
		next, last := "-", "-"
		if s.NextRunAt != nil {
			next = s.NextRunAt.Format(time.RFC3339)
		}
		if s.LastRunAt != nil {
			last = s.LastRunAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.WorkflowID, s.Cadence, next, last)
	}
	return w.Flush()
}
