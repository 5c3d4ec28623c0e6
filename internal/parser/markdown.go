package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/weaver/internal/models"
)

// MarkdownParser reads task plans written as Markdown:
//
//	## Task 1: Add store
//	**Files**: `pkg/store.py`
//	**Depends on**: none
//	**Estimated time**: 30m
//
// Files and dependencies may also follow as a bullet list under an empty
// field. Other headings end the current task; code blocks are ignored.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a Markdown task parser
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{markdown: goldmark.New()}
}

var (
	taskHeading = regexp.MustCompile(`^Task\s+([\w.-]+)\s*:\s*(.+)$`)
	fieldLine   = regexp.MustCompile(`^\*\*([A-Za-z ]+?):?\*\*\s*:?\s*(.*)$`)
)

const (
	fieldFiles    = "files"
	fieldDepends  = "depends"
	fieldDuration = "duration"
)

// fieldNames maps accepted field labels to their canonical field.
var fieldNames = map[string]string{
	"files":          fieldFiles,
	"file":           fieldFiles,
	"depends on":     fieldDepends,
	"dependencies":   fieldDepends,
	"estimated time": fieldDuration,
	"estimate":       fieldDuration,
	"duration":       fieldDuration,
}

// Parse extracts every "## Task <id>: <name>" section
func (p *MarkdownParser) Parse(r io.Reader) ([]models.Task, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	doc := p.markdown.Parser().Parse(text.NewReader(source))
	b := &taskBuilder{source: source, tasks: []models.Task{}}
	for n := doc.FirstChild(); n != nil && b.err == nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(node)
		case *ast.Paragraph:
			b.lines(node.Lines())
		case *ast.List:
			b.list(node)
		}
	}
	b.flush()
	if b.err != nil {
		return nil, b.err
	}
	return b.tasks, nil
}

type taskBuilder struct {
	source  []byte
	tasks   []models.Task
	current *models.Task
	pending string // field waiting for a bullet list
	err     error
}

func (b *taskBuilder) flush() {
	if b.current != nil {
		b.current.Files = b.current.NormalizedFiles()
		b.tasks = append(b.tasks, *b.current)
	}
	b.current = nil
	b.pending = ""
}

func (b *taskBuilder) heading(h *ast.Heading) {
	if h.Level > 2 {
		return
	}
	b.flush()
	if h.Level != 2 {
		return
	}
	m := taskHeading.FindStringSubmatch(strings.TrimSpace(nodeText(h, b.source)))
	if m == nil {
		return
	}
	b.current = &models.Task{ID: m[1], Name: strings.TrimSpace(m[2])}
}

func (b *taskBuilder) lines(segs *text.Segments) {
	if b.current == nil {
		return
	}
	b.pending = ""
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		line := strings.TrimSpace(string(seg.Value(b.source)))
		m := fieldLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		field, ok := fieldNames[strings.ToLower(strings.TrimSpace(m[1]))]
		if !ok {
			continue
		}
		value := strings.TrimSpace(m[2])
		if value == "" {
			b.pending = field
			continue
		}
		b.set(field, splitValues(value))
	}
}

func (b *taskBuilder) list(l *ast.List) {
	if b.current == nil || b.pending == "" {
		return
	}
	var values []string
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		if block := item.FirstChild(); block != nil {
			values = append(values, splitValues(rawText(block.Lines(), b.source))...)
		}
	}
	b.set(b.pending, values)
	b.pending = ""
}

func (b *taskBuilder) set(field string, values []string) {
	t := b.current
	switch field {
	case fieldFiles:
		t.Files = append(t.Files, values...)
	case fieldDepends:
		for _, v := range values {
			v = strings.TrimSpace(strings.TrimPrefix(v, "Task "))
			if v != "" && !t.DependsOn(v) {
				t.Dependencies = append(t.Dependencies, v)
			}
		}
	case fieldDuration:
		if len(values) == 0 {
			return
		}
		d, err := parseDuration(values[0])
		if err != nil {
			b.err = fmt.Errorf("task %s: %w", t.ID, err)
			return
		}
		t.EstimatedDuration = d
	}
}

// splitValues splits a comma separated field, dropping code quotes and
// placeholder values such as "none".
func splitValues(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), "`"))
		switch strings.ToLower(part) {
		case "", "none", "n/a", "-":
			continue
		}
		out = append(out, part)
	}
	return out
}

func rawText(segs *text.Segments, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		buf.Write(seg.Value(source))
	}
	return strings.TrimSpace(buf.String())
}

// nodeText collects the plain text of n and its inline descendants
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

