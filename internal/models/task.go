package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Task represents a single unit of code change supplied by the task producer.
type Task struct {
	ID                string        `json:"id" yaml:"id"`                                                     // Unique within a run
	Name              string        `json:"name,omitempty" yaml:"name,omitempty"`                             // Human-readable title (optional)
	Files             []string      `json:"files" yaml:"files"`                                               // Files the task creates or modifies
	Dependencies      []string      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`             // Explicit prerequisite task IDs
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty"` // Zero means "unknown"
}

// Validate checks if the task has all required fields
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	for _, dep := range t.Dependencies {
		if dep == "" {
			return fmt.Errorf("task %s: empty dependency id", t.ID)
		}
	}
	if t.EstimatedDuration < 0 {
		return fmt.Errorf("task %s: negative estimated duration %v", t.ID, t.EstimatedDuration)
	}
	return nil
}

// NormalizedFiles returns the task's files cleaned and with duplicates removed,
// preserving first-seen order.
func (t *Task) NormalizedFiles() []string {
	seen := make(map[string]bool, len(t.Files))
	out := make([]string, 0, len(t.Files))
	for _, f := range t.Files {
		if f == "" {
			continue
		}
		clean := filepath.ToSlash(filepath.Clean(f))
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

// DependsOn reports whether id is one of the task's explicit dependencies.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// ValidateTasks checks IDs are present and unique and that every explicit
// dependency points at a task in the list.
func ValidateTasks(tasks []Task) error {
	seen := make(map[string]bool, len(tasks))
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return err
		}
		if seen[tasks[i].ID] {
			return fmt.Errorf("task %s: duplicate task id", tasks[i].ID)
		}
		seen[tasks[i].ID] = true
	}
	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("task %s: depends on non-existent task %s", task.ID, dep)
			}
		}
	}
	return nil
}
