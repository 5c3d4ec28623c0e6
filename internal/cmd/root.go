package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for weaver
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weaver",
		Short: "Batch planner and integration weaver for parallel code changes",
		Long: `Weaver plans how a set of code-modification tasks over a shared Python
source tree can run in parallel, and later weaves the batch outputs back
together.

"weaver plan" groups tasks into low-collision batches ordered by their
dependencies and maps the intersections where batch outputs meet.
"weaver weave" applies those intersections once the batches have run:
it predicts interfaces, generates glue code, merges shared files and
validates the combined tree.

Configuration is loaded from .weaver/config.yaml if present.
Environment variables (WEAVER_*) and CLI flags override it.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: .weaver/config.yaml)")
	flags.String("source-root", "", "Shared source tree the tasks modify")
	flags.String("state-dir", "", "Directory for locks, backups and plans")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log-dir", "", "Directory for run log files")
	flags.String("health-url", "", "URL probed to detect a live instance before planning")

	cmd.AddCommand(NewPlanCommand())
	cmd.AddCommand(NewWeaveCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewResolveCommand())

	return cmd
}
