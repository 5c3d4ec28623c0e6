package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/weaver/internal/display"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/validation"
)

// NewValidateCommand creates the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Run the integration check over source files",
		Long: `Run the five validation layers (syntax, type check, imports, signatures,
tests) over the given files, relative to the source root.

Syntax, import and signature failures are blocking and make the command
exit non-zero. Type check and test failures are reported as warnings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd, false)
			if err != nil {
				return err
			}
			defer env.close()
			return validateFiles(cmd.Context(), env, args, cmd.OutOrStdout())
		},
	}
	return cmd
}

// validateFiles runs the validator and writes its report to w.
func validateFiles(ctx context.Context, env *runEnv, files []string, w io.Writer) error {
	v := validation.New(env.cfg.SourceRoot, env.cfg.Validator, validation.Options{Logger: env.log})
	res := v.Validate(ctx, files)
	display.ValidationReport(w, res, display.UseColor(w))
	if res.Status == models.ValidationFailed {
		return fmt.Errorf("validation failed: %s", res.Reason)
	}
	return nil
}
