package display

import (
	"fmt"
	"io"
	"strings"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning, in yellow when useColor is set
func (w Warning) Display(out io.Writer, useColor bool) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		if len(w.Files) == 1 {
			b.WriteString("    Affected file:\n")
		} else {
			b.WriteString("    Affected files:\n")
		}
		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	fmt.Fprint(out, palette{useColor}.yellow(b.String()))
}

// WarnFindings creates a warning for non-fatal plan findings
func WarnFindings(findings []string) Warning {
	return Warning{
		Title:      fmt.Sprintf("%d plan findings", len(findings)),
		Message:    strings.Join(findings, "\n    "),
		Suggestion: "Review force-placed batches before dispatching them",
	}
}

// WarnManualReview creates a warning listing files left for a human
func WarnManualReview(files []string) Warning {
	return Warning{
		Title:      "Conflicts need manual review",
		Files:      files,
		Suggestion: "Resolve the marked regions and rerun weaver weave",
	}
}
