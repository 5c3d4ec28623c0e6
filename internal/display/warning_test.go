package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisplayWarning(t *testing.T) {
	tests := []struct {
		name    string
		warning Warning
		want    []string
		absent  []string
	}{
		{
			name:    "title only",
			warning: Warning{Title: "Configuration Missing"},
			want:    []string{"Warning: Configuration Missing\n"},
			absent:  []string{"Affected", "Suggestion"},
		},
		{
			name:    "single file",
			warning: Warning{Title: "t", Files: []string{"a.py"}},
			want:    []string{"    Affected file:\n", "      1. a.py\n"},
		},
		{
			name:    "several files",
			warning: Warning{Title: "t", Files: []string{"a.py", "b.py"}},
			want:    []string{"    Affected files:\n", "      2. b.py\n"},
		},
		{
			name:    "message and suggestion",
			warning: Warning{Title: "t", Message: "details", Suggestion: "do this"},
			want:    []string{"    details\n", "    Suggestion:\n    do this\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.warning.Display(&buf, false)
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out, a) {
					t.Errorf("output unexpectedly contains %q", a)
				}
			}
			if strings.Contains(out, "\x1b[") {
				t.Error("plain output contains ANSI codes")
			}
		})
	}
}

func TestDisplayWarning_YellowColor(t *testing.T) {
	var buf bytes.Buffer
	Warning{Title: "colored"}.Display(&buf, true)
	if !strings.Contains(buf.String(), "\x1b[33m") {
		t.Errorf("expected yellow ANSI code, got %q", buf.String())
	}
}

func TestWarnManualReview(t *testing.T) {
	w := WarnManualReview([]string{"shared/settings.py"})
	if len(w.Files) != 1 || !strings.Contains(w.Suggestion, "weaver weave") {
		t.Errorf("WarnManualReview() = %+v", w)
	}
}

func TestWarnFindings(t *testing.T) {
	w := WarnFindings([]string{"a", "b"})
	if w.Title != "2 plan findings" || !strings.Contains(w.Message, "a\n    b") {
		t.Errorf("WarnFindings() = %+v", w)
	}
}

func TestUseColorNonTerminal(t *testing.T) {
	if UseColor(&bytes.Buffer{}) {
		t.Error("UseColor() true for a buffer")
	}
}
