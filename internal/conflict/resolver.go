// Package conflict merges two batches' edits of the same file: it diffs each
// side against the shared original, pairs overlapping hunks and settles each
// pair with the weakest strategy that is still safe.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harrison/weaver/internal/models"
)

// Marker lines written around unresolved conflicts and merged comments.
const (
	MarkerOurs   = "<<<<<<< "
	MarkerSplit  = "======="
	MarkerTheirs = ">>>>>>> "
	MergedFrom   = "# --- merged from %s ---"
)

// Side is one batch's version of a file.
type Side struct {
	Batch   string
	Content string
}

// cluster is a run of touching hunks from either side.
type cluster struct {
	start, end int
	a, b       []models.Change
}

// Resolve merges a and b, both derived from base. Hunks only one side made
// are applied as is; touching hunks from both sides become conflicts.
// The result is deterministic for a given input.
func Resolve(file, base string, a, b Side) *models.FileResolution {
	baseLines, trailing := SplitLines(base)
	aLines, aTrailing := SplitLines(a.Content)
	bLines, bTrailing := SplitLines(b.Content)
	if len(baseLines) == 0 {
		trailing = aTrailing || bTrailing
	}

	res := &models.FileResolution{File: file, Resolutions: []models.Resolution{}, Applicable: true}
	var out []string
	pos := 0
	for _, c := range clusters(Diff(a.Batch, baseLines, aLines), Diff(b.Batch, baseLines, bLines)) {
		out = append(out, baseLines[pos:c.start]...)
		switch {
		case len(c.b) == 0:
			out = append(out, apply(baseLines, c.start, c.end, c.a)...)
		case len(c.a) == 0:
			out = append(out, apply(baseLines, c.start, c.end, c.b)...)
		default:
			r := resolveCluster(file, baseLines, c, a.Batch, b.Batch)
			res.Resolutions = append(res.Resolutions, r)
			if !r.Strategy.Applicable() {
				res.Applicable = false
			}
			out = append(out, r.ResolvedLines...)
		}
		pos = c.end
	}
	out = append(out, baseLines[pos:]...)
	res.MergedContent = JoinLines(out, trailing)
	return res
}

// ResolveResults folds the versions of file reported by several batch
// results into one resolution. Results that did not change the file are
// ignored; results that disagree on the original content cannot be merged.
// Each further side is merged into the running result against the shared
// original, so no batch's edits are dropped.
func ResolveResults(file string, results ...*models.BatchResult) *models.FileResolution {
	var sides []Side
	var base string
	var batches []string
	for _, r := range results {
		if r != nil {
			batches = append(batches, r.BatchID)
		}
		c, ok := change(r, file)
		if !ok {
			continue
		}
		if len(sides) > 0 && c.OldContent != base {
			return failed(file, batches, "batches disagree on the original content")
		}
		base = c.OldContent
		sides = append(sides, Side{Batch: r.BatchID, Content: c.Content})
	}

	switch len(sides) {
	case 0:
		return failed(file, batches, "no batch reported content for the file")
	case 1:
		return &models.FileResolution{File: file, Resolutions: []models.Resolution{}, MergedContent: sides[0].Content, Applicable: true}
	}

	res := &models.FileResolution{File: file, Resolutions: []models.Resolution{}, Applicable: true}
	acc := sides[0]
	for _, next := range sides[1:] {
		step := Resolve(file, base, acc, next)
		res.Resolutions = append(res.Resolutions, step.Resolutions...)
		res.MergedContent = step.MergedContent
		if !step.Applicable {
			res.Applicable = false
			return res
		}
		acc = Side{Batch: acc.Batch + "+" + next.Batch, Content: step.MergedContent}
	}
	return res
}

func change(r *models.BatchResult, file string) (models.FileChange, bool) {
	if r == nil {
		return models.FileChange{}, false
	}
	c, ok := r.Changes[file]
	return c, ok
}

func failed(file string, batches []string, reason string) *models.FileResolution {
	var aID, bID string
	if len(batches) > 0 {
		aID = batches[0]
	}
	if len(batches) > 1 {
		bID = batches[1]
	}
	return &models.FileResolution{
		File: file,
		Resolutions: []models.Resolution{{
			Conflict: models.Conflict{
				File: file,
				A:    models.Change{Batch: aID, Kind: models.ChangeBlock},
				B:    models.Change{Batch: bID, Kind: models.ChangeBlock},
				Type: models.ChangeBlock,
			},
			Strategy: models.StrategyFail,
			Reason:   reason,
		}},
		Applicable: false,
	}
}

// clusters groups touching hunks of both sides, in order of position.
func clusters(a, b []models.Change) []cluster {
	type tagged struct {
		models.Change
		fromA bool
	}
	all := make([]tagged, 0, len(a)+len(b))
	for _, h := range a {
		all = append(all, tagged{h, true})
	}
	for _, h := range b {
		all = append(all, tagged{h, false})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return hunkLess(all[i].Change, all[j].Change)
	})

	var out []cluster
	for _, h := range all {
		n := len(out)
		if n == 0 || h.StartLine > out[n-1].end {
			out = append(out, cluster{start: h.StartLine, end: h.EndLine})
			n++
		}
		c := &out[n-1]
		if h.EndLine > c.end {
			c.end = h.EndLine
		}
		if h.fromA {
			c.a = append(c.a, h.Change)
		} else {
			c.b = append(c.b, h.Change)
		}
	}
	return out
}

func resolveCluster(file string, base []string, c cluster, batchA, batchB string) models.Resolution {
	orig := append([]string{}, base[c.start:c.end]...)
	sideA := apply(base, c.start, c.end, c.a)
	sideB := apply(base, c.start, c.end, c.b)
	kindA, kindB := kindOf(c.a), kindOf(c.b)

	conflict := models.Conflict{
		File: file,
		A:    models.Change{Batch: batchA, StartLine: c.start, EndLine: c.end, OldLines: orig, NewLines: sideA, Kind: kindA},
		B:    models.Change{Batch: batchB, StartLine: c.start, EndLine: c.end, OldLines: orig, NewLines: sideB, Kind: kindB},
		Type: kindA,
	}
	if kindA != kindB {
		conflict.Type = models.ChangeBlock
	}
	resolved := func(s models.ResolutionStrategy, lines []string, reason string) models.Resolution {
		return models.Resolution{Conflict: conflict, Strategy: s, ResolvedLines: lines, Reason: reason}
	}

	switch {
	case equalLines(sideA, sideB):
		return resolved(models.StrategyTrivial, sideA, "both batches made the same change")
	case kindA == models.ChangeImport && kindB == models.ChangeImport && onlyImports(sideA) && onlyImports(sideB):
		return resolved(models.StrategyAutoMerge, mergeImports(sideA, sideB), "imports merged")
	case kindA == models.ChangeComment && kindB == models.ChangeComment:
		return resolved(models.StrategyAutoMerge, mergeComments(sideA, sideB, batchB), "comments concatenated")
	case kindA == models.ChangeDocstring && kindB == models.ChangeDocstring:
		if len(strings.Join(sideB, "\n")) > len(strings.Join(sideA, "\n")) {
			return resolved(models.StrategyAutoMerge, sideB, "kept the longer docstring from "+batchB)
		}
		return resolved(models.StrategyAutoMerge, sideA, "kept the longer docstring from "+batchA)
	case kindA == kindB && !anyOverlap(c.a, c.b):
		merged := apply(base, c.start, c.end, append(append([]models.Change{}, c.a...), c.b...))
		return resolved(models.StrategyThreeWayMerge, merged, "adjacent changes combined")
	}

	lines := []string{MarkerOurs + batchA}
	lines = append(lines, sideA...)
	lines = append(lines, MarkerSplit)
	lines = append(lines, sideB...)
	lines = append(lines, MarkerTheirs+batchB)
	reason := fmt.Sprintf("conflicting %s and %s changes at lines %d-%d", kindA, kindB, c.start+1, c.end)
	return resolved(models.StrategyManualReview, lines, reason)
}

func kindOf(hunks []models.Change) models.ChangeKind {
	var text []string
	for _, h := range hunks {
		text = append(text, changedText(h)...)
	}
	return Classify(text)
}

func anyOverlap(a, b []models.Change) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}

func onlyImports(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" && !IsImport(l) {
			return false
		}
	}
	return true
}

// mergeImports dedupes and sorts on the stripped statement but keeps each
// line's own indentation.
func mergeImports(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range append(append([]string{}, a...), b...) {
		key := strings.TrimSpace(l)
		if key != "" && !seen[key] {
			seen[key] = true
			out = append(out, strings.TrimRight(l, " \t"))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.TrimSpace(out[i]) < strings.TrimSpace(out[j])
	})
	return out
}

func mergeComments(a, b []string, batchB string) []string {
	have := make(map[string]bool, len(a))
	for _, l := range a {
		have[l] = true
	}
	out := append([]string{}, a...)
	var extra []string
	for _, l := range b {
		if !have[l] {
			extra = append(extra, l)
		}
	}
	if len(extra) > 0 {
		out = append(out, fmt.Sprintf(MergedFrom, batchB))
		out = append(out, extra...)
	}
	return out
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hunkLess orders by start line, insertions before replacements.
func hunkLess(x, y models.Change) bool {
	if x.StartLine != y.StartLine {
		return x.StartLine < y.StartLine
	}
	return x.EndLine < y.EndLine
}

func sortedHunks(hunks []models.Change) []models.Change {
	out := append([]models.Change{}, hunks...)
	sort.SliceStable(out, func(i, j int) bool { return hunkLess(out[i], out[j]) })
	return out
}
