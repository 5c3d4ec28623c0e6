package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/weaver/internal/display"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/parser"
	"github.com/harrison/weaver/internal/weaver"
)

// NewWeaveCommand creates the weave subcommand
func NewWeaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weave <plan.json> <results-file>",
		Short: "Combine finished batch outputs into the source tree",
		Long: `Read a plan written by "weaver plan" and the batch results reported by
the executor (YAML or JSON), then apply every intersection whose batches
have completed: predict the interfaces each side needs, generate glue
code, merge files both batches changed, and validate the combined tree.

Every applied intersection is backed up first and rolled back if its
glue fails to validate. Intersections waiting on unfinished batches are
skipped and can be woven by a later run.`,
		Args: cobra.ExactArgs(2),
		RunE: runWeave,
	}

	cmd.Flags().Bool("json", false, "Print the weave status as JSON")

	return cmd
}

func runWeave(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	plan, err := parser.LoadPlan(args[0])
	if err != nil {
		return err
	}
	results, err := parser.ParseResultsFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to parse batch results: %w", err)
	}

	env, err := newRunEnv(cmd, true)
	if err != nil {
		return err
	}
	defer env.close()

	return weavePlan(cmd.Context(), env, plan, results, asJSON, cmd.OutOrStdout())
}

// weavePlan runs one weaving pass and reports it to w. Failed and partial
// runs are returned as errors after the report is written.
func weavePlan(ctx context.Context, env *runEnv, plan *models.BatchPlan, results []models.BatchResult, asJSON bool, w io.Writer) error {
	wv := weaver.New(env.cfg, weaver.Options{Logger: env.log, Audit: env.audit})
	status, err := wv.Weave(ctx, plan, results)
	if err != nil {
		return fmt.Errorf("weaving failed: %w", err)
	}

	if asJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode weave status: %w", err)
		}
		fmt.Fprintln(w, string(data))
	} else {
		useColor := display.UseColor(w)
		fmt.Fprintf(w, "Weave %s: %s\n", status.Status, status.Reason)
		display.ExecutionReport(w, status.Executions, useColor)
		if status.Validation != nil {
			fmt.Fprintln(w)
			display.ValidationReport(w, status.Validation, useColor)
		}
		if files := manualReviewFiles(plan, status); len(files) > 0 {
			fmt.Fprintln(w)
			display.WarnManualReview(files).Display(w, useColor)
		}
	}
	env.log.LogWeaveSummary(status)

	switch status.Status {
	case models.WeaveFailed, models.WeavePartial:
		return fmt.Errorf("weave %s: %s", status.Status, status.Reason)
	}
	return nil
}

// manualReviewFiles lists the locations of file merges that failed.
func manualReviewFiles(plan *models.BatchPlan, status *models.WeaveStatus) []string {
	if status.ManualReview == 0 {
		return nil
	}
	merges := make(map[string]string)
	for _, ix := range plan.Intersections {
		if ix.Type == models.IntersectionFileMerge {
			merges[ix.ID] = ix.Location
		}
	}
	var files []string
	for _, id := range status.Failed {
		if loc, ok := merges[id]; ok {
			files = append(files, loc)
		}
	}
	return files
}
