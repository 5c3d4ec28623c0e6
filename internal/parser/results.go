package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/harrison/weaver/internal/models"
)

type resultsDocument struct {
	Results []models.BatchResult `yaml:"results" json:"results"`
}

// ParseResultsFile reads the batch results reported by the external
// executor from a YAML or JSON file. A missing status means pending.
func ParseResultsFile(path string) ([]models.BatchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var doc resultsDocument
	switch DetectFormat(path) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unknown results format: %s (supported: .yaml, .yml, .json)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse results %s: %w", path, err)
	}

	if err := normalizeResults(doc.Results); err != nil {
		return nil, fmt.Errorf("invalid results %s: %w", path, err)
	}
	return doc.Results, nil
}

func normalizeResults(results []models.BatchResult) error {
	seen := make(map[string]bool, len(results))
	for i := range results {
		r := &results[i]
		if r.BatchID == "" {
			return fmt.Errorf("result at index %d: batch_id is required", i)
		}
		if seen[r.BatchID] {
			return fmt.Errorf("duplicate result for %s", r.BatchID)
		}
		seen[r.BatchID] = true

		switch r.Status {
		case "":
			r.Status = models.BatchStatusPending
		case models.BatchStatusCompleted, models.BatchStatusFailed, models.BatchStatusPending:
		default:
			return fmt.Errorf("%s: unknown status %q", r.BatchID, r.Status)
		}

		r.CreatedFiles = cleanPaths(r.CreatedFiles)
		r.ModifiedFiles = cleanPaths(r.ModifiedFiles)
		if len(r.Changes) > 0 {
			changes := make(map[string]models.FileChange, len(r.Changes))
			for f, c := range r.Changes {
				changes[cleanPath(f)] = c
			}
			r.Changes = changes
		}
	}
	return nil
}

// LoadPlan reads a batch plan previously written by "weaver plan".
func LoadPlan(path string) (*models.BatchPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan models.BatchPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	if plan.Status != models.PlanStatusPlanned {
		return nil, fmt.Errorf("plan %s has status %q, only planned runs can be woven", path, plan.Status)
	}
	return &plan, nil
}

func cleanPaths(paths []string) []string {
	if len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = cleanPath(p)
	}
	return out
}

func cleanPath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}
