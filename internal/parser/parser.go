// Package parser reads the planner's inputs (task lists in YAML, JSON or
// Markdown) and the weaver's inputs (batch results and saved plans).
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/weaver/internal/fileutil"
	"github.com/harrison/weaver/internal/models"
)

// Format represents the format of an input file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatMarkdown represents a Markdown (.md, .markdown) task plan
	FormatMarkdown
	// FormatYAML represents a YAML (.yaml, .yml) file
	FormatYAML
	// FormatJSON represents a JSON (.json) file
	FormatJSON
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Parser is the interface that all task parsers must implement
type Parser interface {
	// Parse reads from an io.Reader and returns the tasks it declares
	Parse(r io.Reader) ([]models.Task, error)
}

// DetectFormat detects the input format from the file extension
// Supported extensions:
//   - .md, .markdown -> FormatMarkdown
//   - .yaml, .yml -> FormatYAML
//   - .json -> FormatJSON
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// NewParser creates a new task parser for the specified format
// Returns an error if the format is unknown or unsupported
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	case FormatJSON:
		return NewJSONParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile reads the tasks declared in path. A directory is read as a
// split task list: every numbered file (01-setup.yaml, 02-api.md, ...)
// in numeric order, merged. The merged list is validated.
func ParseFile(path string) ([]models.Task, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	var tasks []models.Task
	if info.IsDir() {
		tasks, err = ParseDirectory(path)
	} else {
		tasks, err = parseFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := models.ValidateTasks(tasks); err != nil {
		return nil, fmt.Errorf("invalid task list %s: %w", path, err)
	}
	return tasks, nil
}

// ParseDirectory loads all numbered task files from a directory and
// concatenates their tasks. Duplicate IDs across files are an error.
func ParseDirectory(dirname string) ([]models.Task, error) {
	result, err := fileutil.ScanDirectory(dirname, fileutil.ScanOptions{
		Pattern:    `^\d+-`,
		Extensions: []string{".md", ".markdown", ".yaml", ".yml", ".json"},
	})
	if err != nil {
		return nil, err
	}

	files := result.Files
	sortNumbered(files)

	seen := make(map[string]string)
	tasks := []models.Task{}
	for _, f := range files {
		parsed, err := parseFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(f), err)
		}
		for _, task := range parsed {
			if prev, ok := seen[task.ID]; ok {
				return nil, fmt.Errorf("duplicate task id %s in %s (first declared in %s)", task.ID, filepath.Base(f), prev)
			}
			seen[task.ID] = filepath.Base(f)
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// parseFile parses a single task file
func parseFile(path string) ([]models.Task, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unknown file format: %s (supported: .md, .markdown, .yaml, .yml, .json)", path)
	}

	parser, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	tasks, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tasks: %w", err)
	}
	return tasks, nil
}

// sortNumbered orders paths by their leading number, so 10-x sorts after 2-x.
func sortNumbered(paths []string) {
	index := func(p string) int {
		var n int
		fmt.Sscanf(filepath.Base(p), "%d", &n)
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return index(paths[i]) < index(paths[j]) })
}
