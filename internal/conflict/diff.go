package conflict

import (
	"strings"

	"github.com/harrison/weaver/internal/models"
)

// SplitLines splits content into lines and reports whether it ended with a
// newline.
func SplitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n"), trailing
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string, trailing bool) string {
	if len(lines) == 0 {
		return ""
	}
	out := strings.Join(lines, "\n")
	if trailing {
		out += "\n"
	}
	return out
}

// Diff returns the changes that turn base into next as hunks over base line
// ranges, in ascending order. Each hunk is classified by its content.
func Diff(batch string, base, next []string) []models.Change {
	prefix := 0
	for prefix < len(base) && prefix < len(next) && base[prefix] == next[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(base)-prefix && suffix < len(next)-prefix &&
		base[len(base)-1-suffix] == next[len(next)-1-suffix] {
		suffix++
	}
	a := base[prefix : len(base)-suffix]
	b := next[prefix : len(next)-suffix]

	// lcs[i][j] is the longest common subsequence of a[i:] and b[j:]
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var hunks []models.Change
	var cur *models.Change
	flush := func() {
		if cur != nil {
			cur.Kind = Classify(changedText(*cur))
			hunks = append(hunks, *cur)
			cur = nil
		}
	}
	open := func(i int) {
		if cur == nil {
			cur = &models.Change{Batch: batch, StartLine: prefix + i, EndLine: prefix + i}
		}
	}
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			flush()
			i++
			j++
		case j < len(b) && (i == len(a) || lcs[i][j+1] >= lcs[i+1][j]):
			open(i)
			cur.NewLines = append(cur.NewLines, b[j])
			j++
		default:
			open(i)
			cur.OldLines = append(cur.OldLines, a[i])
			i++
			cur.EndLine = prefix + i
		}
	}
	flush()
	return hunks
}

// changedText is what a hunk introduces, or what it removes for deletions.
func changedText(c models.Change) []string {
	if len(c.NewLines) > 0 {
		return c.NewLines
	}
	return c.OldLines
}

// apply rewrites base[start:end] with the given hunks, which must lie inside
// the range and not overlap each other.
func apply(base []string, start, end int, hunks []models.Change) []string {
	out := []string{}
	pos := start
	for _, h := range sortedHunks(hunks) {
		if h.StartLine > pos {
			out = append(out, base[pos:h.StartLine]...)
		}
		out = append(out, h.NewLines...)
		if h.EndLine > pos {
			pos = h.EndLine
		}
	}
	if pos < end {
		out = append(out, base[pos:end]...)
	}
	return out
}
