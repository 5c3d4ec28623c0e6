package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/weaver/internal/conflict"
	"github.com/harrison/weaver/internal/display"
	"github.com/harrison/weaver/internal/filelock"
)

// NewResolveCommand creates the resolve subcommand
func NewResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <base> <ours> <theirs>",
		Short: "Three-way merge two versions of a file",
		Long: `Merge two edited versions of a file against their shared original.
Non-overlapping edits are combined; overlapping edits are settled by
kind: imports are unioned, comments are concatenated and the longer
docstring wins. Anything else is left for manual review and the command
exits non-zero.

The merged content is printed, or written to --output when it can be
applied.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			output, _ := cmd.Flags().GetString("output")

			env, err := newRunEnv(cmd, false)
			if err != nil {
				return err
			}
			defer env.close()
			return resolveFiles(cmd.Context(), env, file, args[0], args[1], args[2], output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("file", "", "Name reported for the merged file (default: the base path)")
	cmd.Flags().StringP("output", "o", "", "Write the merged content here instead of printing it")

	return cmd
}

// resolveFiles merges ours and theirs against base and reports the result.
func resolveFiles(ctx context.Context, env *runEnv, file, basePath, oursPath, theirsPath, output string, w io.Writer) error {
	if file == "" {
		file = basePath
	}
	contents := make([]string, 3)
	for i, p := range []string{basePath, oursPath, theirsPath} {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		contents[i] = string(data)
	}

	res := conflict.Resolve(file, contents[0],
		conflict.Side{Batch: "ours", Content: contents[1]},
		conflict.Side{Batch: "theirs", Content: contents[2]})

	useColor := display.UseColor(w)
	display.ResolutionReport(w, res, useColor)
	if !res.Applicable {
		display.WarnManualReview([]string{file}).Display(w, useColor)
		return fmt.Errorf("%s needs manual review", file)
	}

	if output == "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, res.MergedContent)
		return nil
	}
	if err := filelock.LockAndWrite(ctx, env.cfg.LockDir(), output, []byte(res.MergedContent), env.cfg.Executor.LockRetries, env.cfg.Executor.LockBackoff); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	env.log.Infof("Merged %s written to %s", file, output)
	return nil
}
