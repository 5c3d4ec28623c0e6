package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/weaver/internal/display"
	"github.com/harrison/weaver/internal/filelock"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/parser"
	"github.com/harrison/weaver/internal/planner"
)

// NewPlanCommand creates the plan subcommand
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <tasks-file-or-directory>",
		Short: "Group tasks into low-collision batches",
		Long: `Parse a task list (Markdown, YAML or JSON, or a directory of numbered
task files), build the dependency graph, and pack each topological level
into batches that are unlikely to collide.

The plan is written as JSON to <state_dir>/plan.json unless --output is
given. "weaver weave" reads it back once the batches have run.`,
		Args: cobra.ExactArgs(1),
		RunE: runPlan,
	}

	cmd.Flags().StringP("output", "o", "", "Where to write the plan (default: <state_dir>/plan.json)")
	cmd.Flags().Bool("json", false, "Print the plan as JSON instead of tables")

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	asJSON, _ := cmd.Flags().GetBool("json")

	tasks, err := parser.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse tasks: %w", err)
	}

	env, err := newRunEnv(cmd, true)
	if err != nil {
		return err
	}
	defer env.close()

	return planTasks(cmd.Context(), env, tasks, output, asJSON, cmd.OutOrStdout())
}

// planTasks runs the planner and reports the plan to w. Refused runs other
// than "disabled" are returned as errors.
func planTasks(ctx context.Context, env *runEnv, tasks []models.Task, output string, asJSON bool, w io.Writer) error {
	p, err := planner.New(env.cfg, planner.Options{Logger: env.log, Audit: env.audit})
	if err != nil {
		return err
	}

	plan, err := p.Plan(ctx, tasks)
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	switch plan.Status {
	case models.PlanStatusDisabled:
		fmt.Fprintf(w, "Planning disabled: %s\n", plan.Reason)
		return nil
	case models.PlanStatusBlocked, models.PlanStatusLocked:
		return fmt.Errorf("planning %s: %s", plan.Status, plan.Reason)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	data = append(data, '\n')

	if output == "" {
		output = filepath.Join(env.cfg.StateDir, "plan.json")
	}
	if err := filelock.LockAndWrite(ctx, env.cfg.LockDir(), output, data, env.cfg.Executor.LockRetries, env.cfg.Executor.LockBackoff); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	env.log.Infof("Plan written to %s", output)

	if asJSON {
		_, err := w.Write(data)
		return err
	}

	useColor := display.UseColor(w)
	display.PlanTable(w, plan, useColor)
	if len(plan.Intersections) > 0 {
		fmt.Fprintln(w)
		display.IntersectionTable(w, plan.Intersections, useColor)
	}
	if len(plan.Findings) > 0 {
		fmt.Fprintln(w)
		display.WarnFindings(plan.Findings).Display(w, useColor)
	}
	fmt.Fprintf(w, "\nPlan written to %s\n", output)
	env.log.LogPlanSummary(plan)
	return nil
}
