package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileTimeFormat is the run timestamp used in audit file names.
const FileTimeFormat = "20060102-150405"

// JSONLWriter appends one JSON object per line to a run's audit file.
type JSONLWriter struct {
	path string
	mu   sync.Mutex
}

// NewJSONLWriter creates dir if needed and targets audit-<runStart>.jsonl.
func NewJSONLWriter(dir string, runStart time.Time) (*JSONLWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	name := fmt.Sprintf("audit-%s.jsonl", runStart.UTC().Format(FileTimeFormat))
	return &JSONLWriter{path: filepath.Join(dir, name)}, nil
}

// Path returns the file backing this writer.
func (w *JSONLWriter) Path() string {
	return w.path
}

// Append writes the entry as a single line and syncs it to disk.
func (w *JSONLWriter) Append(_ context.Context, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	if _, err := buf.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush audit entry: %w", err)
	}
	return f.Sync()
}

// Close is a no-op; the file is opened per append.
func (w *JSONLWriter) Close() error {
	return nil
}

// ReadJSONL loads every entry from an audit file.
func ReadJSONL(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}
