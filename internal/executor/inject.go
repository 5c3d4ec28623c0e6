package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/pysource"
)

// Inject returns content with the glue applied according to its insertion
// strategy. Injecting the same glue twice leaves the content unchanged.
func Inject(ctx context.Context, file, content string, glue models.GlueCode) (string, error) {
	if glue.Empty() {
		return content, nil
	}
	code := ensureNewline(glue.Code)

	switch glue.InsertionStrategy {
	case models.InsertPrepend:
		lines := glue.Imports
		if len(lines) == 0 {
			lines = strings.Split(strings.TrimRight(code, "\n"), "\n")
		}
		return insertImports(ctx, content, lines), nil
	case models.InsertAppend:
		content = insertImports(ctx, content, glue.Imports)
		if strings.Contains(content, code) {
			return content, nil
		}
		if content == "" {
			return code, nil
		}
		if pysource.CheckSyntax(ctx, file, []byte(content)) == nil {
			return strings.TrimRight(content, "\n") + "\n\n\n" + code, nil
		}
		return ensureNewline(content) + code, nil
	case models.InsertNewFile:
		if strings.TrimSpace(content) == "" {
			return code, nil
		}
		if strings.Contains(content, code) {
			return content, nil
		}
		return ensureNewline(content) + "\n" + code, nil
	default:
		return "", fmt.Errorf("unknown insertion strategy %q", glue.InsertionStrategy)
	}
}

// insertImports adds the statements missing from content after the module
// docstring and leading import block.
func insertImports(ctx context.Context, content string, imports []string) string {
	present := make(map[string]bool)
	for _, l := range strings.Split(content, "\n") {
		present[strings.TrimSpace(l)] = true
	}
	var missing []string
	for _, imp := range imports {
		if imp = strings.TrimSpace(imp); imp != "" && !present[imp] {
			present[imp] = true
			missing = append(missing, imp)
		}
	}
	if len(missing) == 0 {
		return content
	}
	if strings.TrimSpace(content) == "" {
		return strings.Join(missing, "\n") + "\n"
	}

	lines := strings.Split(content, "\n")
	at := pysource.ImportInsertionLine(ctx, []byte(content))
	if at > len(lines) {
		at = len(lines)
	}
	out := make([]string, 0, len(lines)+len(missing))
	out = append(out, lines[:at]...)
	out = append(out, missing...)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
