package conflict

import (
	"regexp"
	"strings"

	"github.com/harrison/weaver/internal/models"
)

var (
	importLine   = regexp.MustCompile(`^(import\s+[\w.]+|from\s+\.*[\w.]*\s+import\s+)`)
	variableLine = regexp.MustCompile(`^[A-Za-z_][\w.]*(\s*:\s*[^=]+)?\s*=[^=]`)
	docstringTok = regexp.MustCompile(`^[rRuUbB]?("""|''')`)
)

// Classify names what a block of changed lines contains. Blank lines are
// ignored; a block that is only blank lines is a generic block.
func Classify(lines []string) models.ChangeKind {
	var text []string
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			text = append(text, t)
		}
	}
	if len(text) == 0 {
		return models.ChangeBlock
	}
	if all(text, IsImport) {
		return models.ChangeImport
	}
	if all(text, isComment) {
		return models.ChangeComment
	}

	first := text[0]
	switch {
	case docstringTok.MatchString(first):
		return models.ChangeDocstring
	case strings.HasPrefix(first, "def "), strings.HasPrefix(first, "async def "), strings.HasPrefix(first, "@"):
		return models.ChangeFunctionDef
	case strings.HasPrefix(first, "class "):
		return models.ChangeClassDef
	case all(text, isAssignment):
		return models.ChangeVariable
	default:
		return models.ChangeBlock
	}
}

// IsImport reports whether a single line is an import statement.
func IsImport(line string) bool {
	return importLine.MatchString(strings.TrimSpace(line))
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "#")
}

func isAssignment(line string) bool {
	return variableLine.MatchString(line) && !strings.HasPrefix(line, "if ") && !strings.HasPrefix(line, "return ")
}

func all(lines []string, pred func(string) bool) bool {
	for _, l := range lines {
		if !pred(l) {
			return false
		}
	}
	return true
}
