package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/weaver/internal/models"
)

// YAMLParser parses task lists of the form
//
//	tasks:
//	  - id: "1"
//	    name: Add store
//	    files: [pkg/store.py]
//	    dependencies: []
//	    estimated_duration: 30m
type YAMLParser struct{}

// NewYAMLParser creates a YAML task parser
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Parse decodes the tasks document
func (p *YAMLParser) Parse(r io.Reader) ([]models.Task, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	var doc taskDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc.tasks()
}

// taskDocument is the shared shape of YAML and JSON task lists
type taskDocument struct {
	Tasks []taskEntry `yaml:"tasks" json:"tasks"`
}

type taskEntry struct {
	ID                flexString   `yaml:"id" json:"id"`
	Name              string       `yaml:"name" json:"name"`
	Files             []string     `yaml:"files" json:"files"`
	Dependencies      []flexString `yaml:"dependencies" json:"dependencies"`
	DependsOn         []flexString `yaml:"depends_on" json:"depends_on"` // alias
	EstimatedDuration Duration     `yaml:"estimated_duration" json:"estimated_duration"`
}

func (d *taskDocument) tasks() ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(d.Tasks))
	for i, e := range d.Tasks {
		if e.ID == "" {
			return nil, fmt.Errorf("task at index %d: id is required", i)
		}
		task := models.Task{
			ID:                string(e.ID),
			Name:              strings.TrimSpace(e.Name),
			Files:             e.Files,
			EstimatedDuration: time.Duration(e.EstimatedDuration),
		}
		for _, dep := range append(e.Dependencies, e.DependsOn...) {
			if !task.DependsOn(string(dep)) {
				task.Dependencies = append(task.Dependencies, string(dep))
			}
		}
		task.Files = task.NormalizedFiles()
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// flexString accepts both string and numeric scalars, so "id: 1" works.
type flexString string

// UnmarshalYAML implements yaml.Unmarshaler
func (s *flexString) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", value.Line)
	}
	*s = flexString(strings.TrimSpace(value.Value))
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (s *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	} else if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("expected a string or number, got %s", raw)
	}
	*s = flexString(strings.TrimSpace(raw))
	return nil
}

// Duration is an estimated duration. Strings use Go or shorthand notation
// ("30m", "2h30m", "90s"); bare numbers are seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration", value.Line)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// parseDuration parses Go durations ("30m", "2h30m") and bare seconds
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
