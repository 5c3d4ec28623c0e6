package planner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrison/weaver/internal/models"
)

// DefaultTaskDuration is assumed for tasks without an estimate.
const DefaultTaskDuration = time.Minute

// CycleError reports a circular dependency. Cycle lists the path with the
// first task repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// IsCycleError reports whether err is a CycleError.
func IsCycleError(err error) bool {
	_, ok := err.(*CycleError)
	return ok
}

// FindCycle returns one cycle in the graph, or nil if the graph is acyclic.
// Nodes are visited in id order so the reported cycle is deterministic.
func FindCycle(g *models.DependencyGraph) []string {
	const (
		white = 0 // not visited
		gray  = 1 // on the recursion stack
		black = 2 // finished
	)
	colors := make(map[string]int, len(g.Tasks))
	var stack []string

	var dfs func(string) []string
	dfs = func(node string) []string {
		colors[node] = gray
		stack = append(stack, node)

		next := append([]string(nil), g.Edges[node]...)
		sort.Strings(next)
		for _, neighbor := range next {
			switch colors[neighbor] {
			case gray:
				for i, n := range stack {
					if n == neighbor {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, neighbor)
					}
				}
			case white:
				if cycle := dfs(neighbor); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[node] = black
		return nil
	}

	for _, id := range g.IDs() {
		if colors[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Levels groups tasks with Kahn's algorithm. Level 0 holds tasks without
// prerequisites; each level's ids are sorted.
func Levels(g *models.DependencyGraph) ([][]string, error) {
	if cycle := FindCycle(g); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	inDegree := make(map[string]int, len(g.InDegree))
	for k, v := range g.InDegree {
		inDegree[k] = v
	}

	var levels [][]string
	for len(inDegree) > 0 {
		var current []string
		for id, degree := range inDegree {
			if degree == 0 {
				current = append(current, id)
			}
		}
		if len(current) == 0 {
			// FindCycle guarantees progress; reaching here means the graph's
			// in-degree bookkeeping is corrupt.
			panic("planner: no tasks with zero in-degree in an acyclic graph")
		}
		sort.Strings(current)
		levels = append(levels, current)

		for _, id := range current {
			delete(inDegree, id)
			for _, dependent := range g.Edges[id] {
				if _, ok := inDegree[dependent]; ok {
					inDegree[dependent]--
				}
			}
		}
	}
	return levels, nil
}

// Policy holds the packing thresholds.
type Policy struct {
	MaxBatchRisk            float64
	MaxCollisionProbability float64
	MaxParallelBatches      int
}

// Optimization is the optimizer's output.
type Optimization struct {
	Batches  []models.Batch
	Levels   [][]string
	Findings []string
	Summary  models.PlanSummary
}

// Optimizer levels the graph and packs each level into batches.
type Optimizer struct {
	policy Policy
}

// NewOptimizer panics on a non-positive batch cap, which is a programming error.
func NewOptimizer(policy Policy) *Optimizer {
	if policy.MaxParallelBatches <= 0 {
		panic(fmt.Sprintf("planner: max parallel batches must be positive, got %d", policy.MaxParallelBatches))
	}
	return &Optimizer{policy: policy}
}

// Optimize returns the batch partition. Cyclic graphs yield a *CycleError.
func (o *Optimizer) Optimize(g *models.DependencyGraph, profile *models.RiskProfile) (*Optimization, error) {
	levels, err := Levels(g)
	if err != nil {
		return nil, err
	}

	out := &Optimization{Levels: levels}
	for level, ids := range levels {
		batches, findings := o.packLevel(level, ids, profile)
		for i := range batches {
			batches[i].ID = fmt.Sprintf("batch-%d", len(out.Batches)+1)
			batches[i].Files = batchFiles(g, batches[i].TaskIDs)
			out.Batches = append(out.Batches, batches[i])
		}
		out.Findings = append(out.Findings, findings...)
	}
	out.Findings = append(out.Findings, o.Validate(g, profile, out.Batches, levels)...)
	out.Summary = summarize(g, out.Batches, levels)
	return out, nil
}

// contribution is the risk a task adds to a batch: its expected pairwise
// conflict mass against every member.
func contribution(id string, members []string, p *models.RiskProfile) float64 {
	var sum float64
	for _, m := range members {
		sum += p.Collision(id, m) * p.Risk(id) * p.Risk(m)
	}
	return sum
}

func (o *Optimizer) fits(id string, b *models.Batch, p *models.RiskProfile) bool {
	for _, m := range b.TaskIDs {
		if p.Collision(id, m) > o.policy.MaxCollisionProbability {
			return false
		}
	}
	return roundRisk(b.CumulativeRisk+contribution(id, b.TaskIDs, p)) <= o.policy.MaxBatchRisk
}

func (o *Optimizer) packLevel(level int, ids []string, p *models.RiskProfile) ([]models.Batch, []string) {
	order := append([]string(nil), ids...)
	sort.SliceStable(order, func(i, j int) bool {
		ri, rj := p.Risk(order[i]), p.Risk(order[j])
		if ri != rj {
			return ri > rj
		}
		return order[i] < order[j]
	})

	var batches []models.Batch
	var findings []string
	for _, id := range order {
		placed := false
		for i := range batches {
			if o.fits(id, &batches[i], p) {
				batches[i].CumulativeRisk = roundRisk(batches[i].CumulativeRisk + contribution(id, batches[i].TaskIDs, p))
				batches[i].TaskIDs = append(batches[i].TaskIDs, id)
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		b := models.Batch{TaskIDs: []string{id}, Level: level}
		if len(batches) >= o.policy.MaxParallelBatches {
			b.ForcePlaced = true
			findings = append(findings, fmt.Sprintf(
				"level %d: task %s force-placed alone; level already has %d batches (max %d)",
				level, id, len(batches), o.policy.MaxParallelBatches))
		}
		batches = append(batches, b)
	}
	for i := range batches {
		sort.Strings(batches[i].TaskIDs)
	}
	return batches, findings
}

// Validate re-checks a finished partition and restates every violation as a
// finding. It never fails the plan.
func (o *Optimizer) Validate(g *models.DependencyGraph, p *models.RiskProfile, batches []models.Batch, levels [][]string) []string {
	var findings []string

	perLevel := make(map[int]int)
	seen := make(map[string]string)
	for _, b := range batches {
		perLevel[b.Level]++
		for _, id := range b.TaskIDs {
			if other, dup := seen[id]; dup {
				findings = append(findings, fmt.Sprintf("task %s appears in both %s and %s", id, other, b.ID))
			}
			seen[id] = b.ID
		}
		if b.CumulativeRisk > o.policy.MaxBatchRisk {
			findings = append(findings, fmt.Sprintf("%s cumulative risk %.4f exceeds %.4f", b.ID, b.CumulativeRisk, o.policy.MaxBatchRisk))
		}
		for i := 0; i < len(b.TaskIDs); i++ {
			for j := i + 1; j < len(b.TaskIDs); j++ {
				if c := p.Collision(b.TaskIDs[i], b.TaskIDs[j]); c > o.policy.MaxCollisionProbability {
					findings = append(findings, fmt.Sprintf("%s pair %s/%s collision %.2f exceeds %.2f",
						b.ID, b.TaskIDs[i], b.TaskIDs[j], c, o.policy.MaxCollisionProbability))
				}
			}
		}
	}
	for _, id := range g.IDs() {
		if _, ok := seen[id]; !ok {
			findings = append(findings, fmt.Sprintf("task %s is not in any batch", id))
		}
	}
	for level := range levels {
		if n := perLevel[level]; n > o.policy.MaxParallelBatches {
			findings = append(findings, fmt.Sprintf("level %d has %d batches, exceeding max parallel batches %d",
				level, n, o.policy.MaxParallelBatches))
		}
	}
	if n := len(batches); n > o.policy.MaxParallelBatches {
		findings = append(findings, fmt.Sprintf("plan has %d batches, exceeding max parallel batches %d",
			n, o.policy.MaxParallelBatches))
	}
	return findings
}

func batchFiles(g *models.DependencyGraph, ids []string) []string {
	set := make(map[string]bool)
	for _, id := range ids {
		if t, ok := g.Tasks[id]; ok {
			for _, f := range t.NormalizedFiles() {
				set[f] = true
			}
		}
	}
	files := make([]string, 0, len(set))
	for f := range set {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func taskDuration(t *models.Task) time.Duration {
	if t == nil || t.EstimatedDuration <= 0 {
		return DefaultTaskDuration
	}
	return t.EstimatedDuration
}

func summarize(g *models.DependencyGraph, batches []models.Batch, levels [][]string) models.PlanSummary {
	s := models.PlanSummary{
		TotalTasks:   len(g.Tasks),
		TotalBatches: len(batches),
		TotalLevels:  len(levels),
	}

	levelMax := make(map[int]time.Duration)
	maxSize := 0
	for _, b := range batches {
		// members of a batch run concurrently
		var d time.Duration
		for _, id := range b.TaskIDs {
			td := taskDuration(g.Tasks[id])
			s.SequentialDuration += td
			if td > d {
				d = td
			}
		}
		if d > levelMax[b.Level] {
			levelMax[b.Level] = d
		}
		if len(b.TaskIDs) > maxSize {
			maxSize = len(b.TaskIDs)
		}
	}
	for _, d := range levelMax {
		s.ParallelDuration += d
	}
	if s.TotalTasks > 0 {
		s.ParallelizationFactor = float64(maxSize) / float64(s.TotalTasks)
	}
	if s.ParallelDuration > 0 {
		s.EstimatedSpeedup = float64(s.SequentialDuration) / float64(s.ParallelDuration)
	}
	return s
}
