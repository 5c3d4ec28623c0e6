package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestDetectFormat tests format detection based on file extensions
func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Format
	}{
		{name: "markdown .md extension", filename: "plan.md", want: FormatMarkdown},
		{name: "markdown .markdown extension", filename: "tasks.markdown", want: FormatMarkdown},
		{name: "YAML .yaml extension", filename: "tasks.yaml", want: FormatYAML},
		{name: "YAML .yml extension", filename: "tasks.yml", want: FormatYAML},
		{name: "JSON .json extension", filename: "results.json", want: FormatJSON},
		{name: "uppercase .MD extension", filename: "PLAN.MD", want: FormatMarkdown},
		{name: "unknown .txt extension", filename: "readme.txt", want: FormatUnknown},
		{name: "no extension", filename: "tasks", want: FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.filename); got != tt.want {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestNewParser(t *testing.T) {
	for _, f := range []Format{FormatMarkdown, FormatYAML, FormatJSON} {
		p, err := NewParser(f)
		if err != nil || p == nil {
			t.Errorf("NewParser(%v) = %v, %v", f, p, err)
		}
	}
	if _, err := NewParser(FormatUnknown); err == nil {
		t.Error("NewParser(FormatUnknown) expected error")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return p
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "tasks.yaml", `tasks:
  - id: 1
    name: Add store
    files: [pkg/store.py, ./pkg/store.py]
    estimated_duration: 30m
  - id: "2"
    files: [app/main.py]
    dependencies: [1]
`)

	tasks, err := ParseFile(yamlPath)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "1" || tasks[0].EstimatedDuration != 30*time.Minute {
		t.Errorf("task 1 = %+v", tasks[0])
	}
	if !reflect.DeepEqual(tasks[0].Files, []string{"pkg/store.py"}) {
		t.Errorf("files not normalized: %v", tasks[0].Files)
	}
	if !reflect.DeepEqual(tasks[1].Dependencies, []string{"1"}) {
		t.Errorf("dependencies = %v", tasks[1].Dependencies)
	}
}

func TestParseFileRejectsInvalidTaskLists(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "unknown dependency",
			file:    "tasks.yaml",
			content: "tasks:\n  - id: a\n    dependencies: [b]\n",
			wantErr: "non-existent task b",
		},
		{
			name:    "duplicate id",
			file:    "tasks.json",
			content: `{"tasks": [{"id": "a"}, {"id": "a"}]}`,
			wantErr: "duplicate task id",
		},
		{
			name:    "missing id",
			file:    "tasks.yaml",
			content: "tasks:\n  - name: nameless\n",
			wantErr: "id is required",
		},
		{
			name:    "unknown extension",
			file:    "tasks.toml",
			content: "",
			wantErr: "unknown file format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := ParseFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseFile() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-late.yaml", "tasks:\n  - id: c\n    files: [c.py]\n    dependencies: [b]\n")
	writeFile(t, dir, "2-api.md", "## Task b: API\n**Files**: `b.py`\n**Depends on**: Task a\n")
	writeFile(t, dir, "1-setup.json", `{"tasks": [{"id": "a", "files": ["a.py"]}]}`)
	writeFile(t, dir, "notes.md", "## Task z: not numbered\n")

	tasks, err := ParseFile(dir)
	if err != nil {
		t.Fatalf("ParseFile(dir) error = %v", err)
	}
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Errorf("task order = %v, want [a b c]", ids)
	}
}

func TestParseDirectoryDuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1-a.yaml", "tasks:\n  - id: a\n")
	writeFile(t, dir, "2-b.yaml", "tasks:\n  - id: a\n")

	_, err := ParseDirectory(dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate task id a") {
		t.Errorf("ParseDirectory() error = %v", err)
	}
}
