package models

import (
	"sort"
	"time"
)

// DependencyGraph holds must-run-after edges between tasks.
type DependencyGraph struct {
	Tasks     map[string]*Task    // task id -> task
	Edges     map[string][]string // prerequisite -> dependents
	DependsOn map[string][]string // dependent -> prerequisites
	InDegree  map[string]int      // task id -> number of prerequisites
}

// NewDependencyGraph returns an empty graph ready for AddTask/AddEdge.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		Tasks:     make(map[string]*Task),
		Edges:     make(map[string][]string),
		DependsOn: make(map[string][]string),
		InDegree:  make(map[string]int),
	}
}

// AddTask registers a node. Re-adding an id replaces the task pointer only.
func (g *DependencyGraph) AddTask(t *Task) {
	if _, exists := g.Tasks[t.ID]; !exists {
		g.InDegree[t.ID] = 0
	}
	g.Tasks[t.ID] = t
}

// AddEdge records that dependent must run after prerequisite. Duplicate edges
// are ignored so in-degree stays exact.
func (g *DependencyGraph) AddEdge(prerequisite, dependent string) bool {
	for _, existing := range g.Edges[prerequisite] {
		if existing == dependent {
			return false
		}
	}
	g.Edges[prerequisite] = append(g.Edges[prerequisite], dependent)
	g.DependsOn[dependent] = append(g.DependsOn[dependent], prerequisite)
	g.InDegree[dependent]++
	return true
}

// IDs returns every task id in ascending order.
func (g *DependencyGraph) IDs() []string {
	ids := make([]string, 0, len(g.Tasks))
	for id := range g.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EdgeCount returns the total number of edges.
func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range g.Edges {
		n += len(deps)
	}
	return n
}

// PairKey identifies an unordered task pair. A is always <= B.
type PairKey struct {
	A string
	B string
}

// NewPairKey orders the two ids so (a,b) and (b,a) map to the same key.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// RiskProfile carries per-task risk scores and pairwise collision probabilities.
type RiskProfile struct {
	Individual map[string]float64  // task id -> score in [0, 0.5]
	Pairs      map[PairKey]float64 // task pair -> probability in [0, 1]
}

// Risk returns the individual score of a task (0 if unknown).
func (p *RiskProfile) Risk(id string) float64 {
	return p.Individual[id]
}

// Collision returns the pairwise collision probability for two tasks.
// Unknown pairs report 1.0 so they are never co-scheduled by accident.
func (p *RiskProfile) Collision(a, b string) float64 {
	if a == b {
		return 0
	}
	if v, ok := p.Pairs[NewPairKey(a, b)]; ok {
		return v
	}
	return 1.0
}

// Batch is a group of tasks executed together.
type Batch struct {
	ID             string   `json:"id"`
	TaskIDs        []string `json:"task_ids"`
	Level          int      `json:"level"`
	CumulativeRisk float64  `json:"cumulative_risk"`
	Files          []string `json:"files"`
	ForcePlaced    bool     `json:"force_placed,omitempty"` // placed alone despite exceeding the batch cap
}

// Contains reports whether the batch holds the task.
func (b *Batch) Contains(taskID string) bool {
	for _, id := range b.TaskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}

// PlanStatus is the outcome of a planning run.
type PlanStatus string

const (
	PlanStatusPlanned  PlanStatus = "planned"
	PlanStatusBlocked  PlanStatus = "blocked"
	PlanStatusLocked   PlanStatus = "locked"
	PlanStatusDisabled PlanStatus = "disabled"
	PlanStatusError    PlanStatus = "error"
)

// PlanSummary holds the headline numbers of a batch plan.
type PlanSummary struct {
	TotalTasks            int           `json:"total_tasks"`
	TotalBatches          int           `json:"total_batches"`
	TotalLevels           int           `json:"total_levels"`
	TotalIntersections    int           `json:"total_intersections"`
	ParallelizationFactor float64       `json:"parallelization_factor"`
	EstimatedSpeedup      float64       `json:"estimated_speedup"`
	SequentialDuration    time.Duration `json:"sequential_duration"`
	ParallelDuration      time.Duration `json:"parallel_duration"`
}

// BatchPlan is the full schedule emitted by the planner.
type BatchPlan struct {
	RunID         string         `json:"run_id"`
	CreatedAt     time.Time      `json:"created_at"`
	Status        PlanStatus     `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	Batches       []Batch        `json:"batches"`
	Levels        [][]string     `json:"levels"` // level -> task ids
	Intersections []Intersection `json:"intersections"`
	Findings      []string       `json:"findings,omitempty"` // non-fatal validation notes
	Summary       PlanSummary    `json:"summary"`
}

// Batch returns the batch with the given id, or nil.
func (p *BatchPlan) Batch(id string) *Batch {
	for i := range p.Batches {
		if p.Batches[i].ID == id {
			return &p.Batches[i]
		}
	}
	return nil
}

// BatchOf returns the batch that holds a task, or nil.
func (p *BatchPlan) BatchOf(taskID string) *Batch {
	for i := range p.Batches {
		if p.Batches[i].Contains(taskID) {
			return &p.Batches[i]
		}
	}
	return nil
}

// LevelOf returns the topological level of a task, or -1 if absent.
func (p *BatchPlan) LevelOf(taskID string) int {
	for level, ids := range p.Levels {
		for _, id := range ids {
			if id == taskID {
				return level
			}
		}
	}
	return -1
}
