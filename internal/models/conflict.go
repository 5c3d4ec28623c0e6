package models

// ChangeKind classifies what a changed line range contains.
type ChangeKind string

const (
	ChangeImport      ChangeKind = "import"
	ChangeComment     ChangeKind = "comment"
	ChangeDocstring   ChangeKind = "docstring"
	ChangeFunctionDef ChangeKind = "function_def"
	ChangeClassDef    ChangeKind = "class_def"
	ChangeVariable    ChangeKind = "variable"
	ChangeBlock       ChangeKind = "block"
)

// Change is one modified range of the original file as produced by a batch.
// StartLine/EndLine index the original lines, half open: [StartLine, EndLine).
// A pure insertion has StartLine == EndLine.
type Change struct {
	Batch     string     `json:"batch"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	OldLines  []string   `json:"old_lines,omitempty"`
	NewLines  []string   `json:"new_lines,omitempty"`
	Kind      ChangeKind `json:"kind"`
}

// Overlaps reports whether two changes rewrite the same region of the
// original. Insertions at the same anchor overlap each other; an insertion
// overlaps a replacement only when it lands strictly inside it.
func (c Change) Overlaps(o Change) bool {
	ci, oi := c.StartLine == c.EndLine, o.StartLine == o.EndLine
	switch {
	case ci && oi:
		return c.StartLine == o.StartLine
	case ci:
		return o.StartLine < c.StartLine && c.StartLine < o.EndLine
	case oi:
		return c.StartLine < o.StartLine && o.StartLine < c.EndLine
	default:
		return c.StartLine < o.EndLine && o.StartLine < c.EndLine
	}
}

// Touches reports whether two changes overlap or are directly adjacent.
func (c Change) Touches(o Change) bool {
	return c.StartLine <= o.EndLine && o.StartLine <= c.EndLine
}

// Conflict is a pair of overlapping changes from two batches.
type Conflict struct {
	File string     `json:"file"`
	A    Change     `json:"a"`
	B    Change     `json:"b"`
	Type ChangeKind `json:"type"`
}

// ResolutionStrategy is how a conflict was settled.
type ResolutionStrategy string

const (
	StrategyTrivial       ResolutionStrategy = "trivial"
	StrategyAutoMerge     ResolutionStrategy = "auto_merge"
	StrategyThreeWayMerge ResolutionStrategy = "three_way_merge"
	StrategyManualReview  ResolutionStrategy = "manual_review"
	StrategyFail          ResolutionStrategy = "fail"
)

// Applicable reports whether the strategy may be written to disk without a human.
func (s ResolutionStrategy) Applicable() bool {
	switch s {
	case StrategyTrivial, StrategyAutoMerge, StrategyThreeWayMerge:
		return true
	default:
		return false
	}
}

// Resolution is the outcome of resolving one conflict.
type Resolution struct {
	Conflict      Conflict           `json:"conflict"`
	Strategy      ResolutionStrategy `json:"strategy"`
	ResolvedLines []string           `json:"resolved_lines"`
	Reason        string             `json:"reason"`
}

// FileResolution is the merged outcome for one file.
type FileResolution struct {
	File          string       `json:"file"`
	Resolutions   []Resolution `json:"resolutions"`
	MergedContent string       `json:"merged_content"`
	Applicable    bool         `json:"applicable"` // false when any conflict needs manual review
}

// Strategy summarizes a file resolution: the weakest strategy wins.
func (r *FileResolution) Strategy() ResolutionStrategy {
	if len(r.Resolutions) == 0 {
		return StrategyTrivial
	}
	rank := map[ResolutionStrategy]int{
		StrategyTrivial:       0,
		StrategyAutoMerge:     1,
		StrategyThreeWayMerge: 2,
		StrategyManualReview:  3,
		StrategyFail:          4,
	}
	worst := r.Resolutions[0].Strategy
	for _, res := range r.Resolutions[1:] {
		if rank[res.Strategy] > rank[worst] {
			worst = res.Strategy
		}
	}
	return worst
}
