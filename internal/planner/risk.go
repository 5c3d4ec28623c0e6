package planner

import (
	"math"
	"path"
	"sort"
	"strings"

	"github.com/harrison/weaver/internal/models"
)

const (
	maxIndividualRisk = 0.5
	criticalFileRisk  = 0.1
	migrationRisk     = 0.2

	collisionSequential = 1.0
	collisionSharedFile = 0.9
	collisionMaxDir     = 0.5
	collisionFloor      = 0.1
)

var entrypointFiles = map[string]bool{
	"main.py": true, "app.py": true, "__main__.py": true, "manage.py": true, "wsgi.py": true, "asgi.py": true,
}

// IndividualRisk scores one task in [0, 0.5] from its file set.
func IndividualRisk(t *models.Task) float64 {
	files := t.NormalizedFiles()

	var score float64
	switch n := len(files); {
	case n <= 1:
		score = 0.1
	case n <= 3:
		score = 0.2
	case n <= 5:
		score = 0.3
	default:
		score = 0.5
	}

	migration := false
	for _, f := range files {
		if IsCriticalPath(f) {
			score += criticalFileRisk
		}
		if isMigration(f) {
			migration = true
		}
	}
	if migration {
		score += migrationRisk
	}
	return roundRisk(math.Min(score, maxIndividualRisk))
}

// IsCriticalPath reports whether a file is an entrypoint, package init,
// configuration or database module.
func IsCriticalPath(file string) bool {
	base := strings.ToLower(path.Base(file))
	if entrypointFiles[base] || base == "__init__.py" {
		return true
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	if strings.Contains(stem, "config") || strings.Contains(stem, "settings") || strings.Contains(stem, "database") {
		return true
	}
	for _, tok := range strings.FieldsFunc(stem, func(r rune) bool { return r == '_' || r == '-' || r == '.' }) {
		if tok == "db" || tok == "models" {
			return true
		}
	}
	return false
}

func isMigration(file string) bool {
	lower := strings.ToLower(file)
	return strings.HasPrefix(lower, "migrations/") || strings.Contains(lower, "/migrations/") ||
		strings.Contains(path.Base(lower), "migration")
}

// Reachability maps each task to every task that transitively depends on it.
type Reachability map[string]map[string]bool

// ComputeReachability walks the graph from every node.
func ComputeReachability(g *models.DependencyGraph) Reachability {
	reach := make(Reachability, len(g.Tasks))
	for id := range g.Tasks {
		seen := make(map[string]bool)
		stack := append([]string(nil), g.Edges[id]...)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[n] {
				continue
			}
			seen[n] = true
			stack = append(stack, g.Edges[n]...)
		}
		reach[id] = seen
	}
	return reach
}

// Related reports whether either task depends on the other.
func (r Reachability) Related(a, b string) bool {
	return r[a][b] || r[b][a]
}

// CollisionProbability estimates how likely a and b are to produce
// conflicting edits if run in parallel.
func CollisionProbability(a, b *models.Task, reach Reachability) float64 {
	if reach.Related(a.ID, b.ID) {
		return collisionSequential
	}

	filesA, filesB := a.NormalizedFiles(), b.NormalizedFiles()
	set := make(map[string]bool, len(filesA))
	for _, f := range filesA {
		set[f] = true
	}
	for _, f := range filesB {
		if set[f] {
			return collisionSharedFile
		}
	}

	dirsA, dirsB := ancestorDirs(filesA), ancestorDirs(filesB)
	shared := 0
	for d := range dirsA {
		if dirsB[d] {
			shared++
		}
	}
	if shared > 0 {
		denom := len(dirsA)
		if len(dirsB) > denom {
			denom = len(dirsB)
		}
		return roundRisk(collisionMaxDir * float64(shared) / float64(denom))
	}
	return collisionFloor
}

// ancestorDirs collects every ancestor directory of the files, excluding the
// tree root.
func ancestorDirs(files []string) map[string]bool {
	dirs := make(map[string]bool)
	for _, f := range files {
		for d := path.Dir(f); d != "." && d != "/" && d != ""; d = path.Dir(d) {
			dirs[d] = true
		}
	}
	return dirs
}

// BuildRiskProfile scores every task and every task pair in the graph.
func BuildRiskProfile(g *models.DependencyGraph) *models.RiskProfile {
	reach := ComputeReachability(g)
	ids := g.IDs()
	profile := &models.RiskProfile{
		Individual: make(map[string]float64, len(ids)),
		Pairs:      make(map[models.PairKey]float64, len(ids)*(len(ids)-1)/2+1),
	}
	for _, id := range ids {
		profile.Individual[id] = IndividualRisk(g.Tasks[id])
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			profile.Pairs[models.NewPairKey(ids[i], ids[j])] = CollisionProbability(g.Tasks[ids[i]], g.Tasks[ids[j]], reach)
		}
	}
	return profile
}

// HighRiskPairs returns pairs above threshold, sorted for display.
func HighRiskPairs(p *models.RiskProfile, threshold float64) []models.PairKey {
	var out []models.PairKey
	for k, v := range p.Pairs {
		if v > threshold {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func roundRisk(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
