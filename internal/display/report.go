package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/harrison/weaver/internal/models"
)

// ResolutionReport writes how each conflict in a file was settled.
func ResolutionReport(w io.Writer, res *models.FileResolution, useColor bool) {
	p := palette{useColor}
	strategy := string(res.Strategy())
	if res.Applicable {
		strategy = p.green(strategy)
	} else {
		strategy = p.red(strategy)
	}
	fmt.Fprintf(w, "%s: %s (%d conflicts)\n", p.bold(res.File), strategy, len(res.Resolutions))
	for _, r := range res.Resolutions {
		c := r.Conflict
		fmt.Fprintf(w, "  lines %d-%d [%s] %s: %s\n", c.A.StartLine+1, max(c.A.EndLine, c.A.StartLine+1), c.Type, r.Strategy, r.Reason)
	}
}

// ValidationReport writes every layer of an integration check.
func ValidationReport(w io.Writer, res *models.ValidationResult, useColor bool) {
	p := palette{useColor}
	fmt.Fprintf(w, "%s %s\n", p.bold("Validation:"), statusText(p, res.Status))
	if res.Reason != "" {
		fmt.Fprintf(w, "  %s\n", res.Reason)
	}
	for _, l := range res.Layers {
		kind := "advisory"
		if l.Blocking {
			kind = "blocking"
		}
		line := fmt.Sprintf("  %-11s %-8s %-8s", l.Name, l.Status, kind)
		if l.Reason != "" {
			line += " " + l.Reason
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	for _, issue := range res.BlockingIssues {
		fmt.Fprintf(w, "  %s %s\n", p.red("x"), issue)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  %s %s\n", p.yellow("!"), warn)
	}
}

// ExecutionReport writes the outcome of every intersection in a weave run.
func ExecutionReport(w io.Writer, execs []models.ExecutionResult, useColor bool) {
	p := palette{useColor}
	for _, e := range execs {
		var mark string
		switch e.Status {
		case models.ExecutionCompleted:
			mark = p.green("ok")
		case models.ExecutionSkipped:
			mark = p.cyan("--")
		default:
			mark = p.red("!!")
		}
		fmt.Fprintf(w, "  %s %s %s", mark, e.IntersectionID, e.Reason)
		if e.RolledBack {
			fmt.Fprint(w, " (rolled back)")
		}
		fmt.Fprintln(w)
	}
}

func statusText(p palette, s models.ValidationStatus) string {
	switch s {
	case models.ValidationPassed:
		return p.green(string(s))
	case models.ValidationFailed:
		return p.red(string(s))
	default:
		return p.yellow(string(s))
	}
}
