package parser

import (
	"strings"
	"testing"
	"time"
)

func TestYAMLParser(t *testing.T) {
	input := `tasks:
  - id: setup
    name: "  Setup  "
    files:
      - pkg/__init__.py
      - pkg/store.py
    estimated_duration: 90
  - id: api
    files: [pkg/api.py]
    depends_on: [setup]
    dependencies: [setup]
    estimated_duration: 1h30m
`
	tasks, err := NewYAMLParser().Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].Name != "Setup" {
		t.Errorf("name = %q, want trimmed", tasks[0].Name)
	}
	if tasks[0].EstimatedDuration != 90*time.Second {
		t.Errorf("bare number duration = %v, want 90s", tasks[0].EstimatedDuration)
	}
	if tasks[1].EstimatedDuration != 90*time.Minute {
		t.Errorf("duration = %v, want 1h30m", tasks[1].EstimatedDuration)
	}
	if len(tasks[1].Dependencies) != 1 {
		t.Errorf("dependencies not deduplicated: %v", tasks[1].Dependencies)
	}
}

func TestJSONParser(t *testing.T) {
	input := `{"tasks": [
		{"id": 7, "files": ["a.py"], "estimated_duration": "45s"},
		{"id": "8", "files": ["b.py"], "dependencies": [7], "estimated_duration": 60}
	]}`
	tasks, err := NewJSONParser().Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tasks[0].ID != "7" || tasks[0].EstimatedDuration != 45*time.Second {
		t.Errorf("task 0 = %+v", tasks[0])
	}
	if tasks[1].Dependencies[0] != "7" || tasks[1].EstimatedDuration != time.Minute {
		t.Errorf("task 1 = %+v", tasks[1])
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "30m", want: 30 * time.Minute},
		{in: "2h30m", want: 150 * time.Minute},
		{in: "1.5", want: 1500 * time.Millisecond},
		{in: "-5", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestYAMLParserInvalid(t *testing.T) {
	inputs := map[string]string{
		"bad duration": "tasks:\n  - id: a\n    estimated_duration: soon\n",
		"id as list":   "tasks:\n  - id: [a]\n",
		"not yaml":     "tasks: [\n",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := NewYAMLParser().Parse(strings.NewReader(input)); err == nil {
				t.Error("Parse() expected error")
			}
		})
	}
}
