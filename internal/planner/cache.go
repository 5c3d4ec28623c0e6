package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/harrison/weaver/internal/models"
)

// GraphCache memoizes dependency graphs by input fingerprint.
type GraphCache struct {
	graphs *lru.Cache[string, *models.DependencyGraph]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewGraphCache returns a cache holding at most size graphs.
func NewGraphCache(size int) (*GraphCache, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, *models.DependencyGraph](size)
	if err != nil {
		return nil, err
	}
	return &GraphCache{graphs: c}, nil
}

// Get returns the cached graph for key.
func (c *GraphCache) Get(key string) (*models.DependencyGraph, bool) {
	if c == nil {
		return nil, false
	}
	g, ok := c.graphs.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return g, ok
}

// Add stores a graph under key.
func (c *GraphCache) Add(key string, g *models.DependencyGraph) {
	if c == nil {
		return
	}
	c.graphs.Add(key, g)
}

// Len returns the number of cached graphs.
func (c *GraphCache) Len() int {
	if c == nil {
		return 0
	}
	return c.graphs.Len()
}

// Stats returns hit and miss counts.
func (c *GraphCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Fingerprint hashes the canonical task list, every task field included,
// together with the content of every file the tasks name. Task order does
// not matter.
func Fingerprint(tasks []models.Task, sources map[string][]byte) string {
	sorted := make([]models.Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, t := range sorted {
		canonical := struct {
			ID       string        `json:"id"`
			Name     string        `json:"name"`
			Deps     []string      `json:"deps"`
			File     []string      `json:"files"`
			Duration time.Duration `json:"duration"`
		}{
			ID:       t.ID,
			Name:     t.Name,
			Deps:     sortedCopy(t.Dependencies),
			File:     sortedCopy(t.NormalizedFiles()),
			Duration: t.EstimatedDuration,
		}
		data, _ := json.Marshal(canonical)
		h.Write(data)
		h.Write([]byte{0})
	}

	files := make([]string, 0, len(sources))
	for f := range sources {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		h.Write([]byte(f))
		h.Write([]byte{0})
		sum := sha256.Sum256(sources[f])
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
