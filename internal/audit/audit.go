// Package audit keeps the append-only record of planning runs, intersection
// executions and weave outcomes. The JSONL file is the source of truth; an
// optional SQLite table mirrors it for querying.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Kind names what an entry records.
type Kind string

const (
	KindPlan         Kind = "plan"
	KindIntersection Kind = "intersection"
	KindWeave        Kind = "weave"
)

// Entry is one audit line.
type Entry struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Sink is an append-only destination for entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// Log fans entries out to every configured sink.
type Log struct {
	mu    sync.Mutex
	sinks []Sink
	now   func() time.Time
}

// NewLog returns a log writing to the given sinks. With no sinks every
// append is a no-op.
func NewLog(sinks ...Sink) *Log {
	var kept []Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Log{sinks: kept, now: time.Now}
}

// Open builds the standard log for a run: a JSONL file under dir keyed by
// the run start time, plus the SQLite mirror when sqlitePath is set.
func Open(dir, sqlitePath string, runStart time.Time) (*Log, error) {
	jsonl, err := NewJSONLWriter(dir, runStart)
	if err != nil {
		return nil, err
	}
	sinks := []Sink{jsonl}
	if sqlitePath != "" {
		mirror, err := OpenSQLite(sqlitePath)
		if err != nil {
			jsonl.Close()
			return nil, fmt.Errorf("open audit mirror: %w", err)
		}
		sinks = append(sinks, mirror)
	}
	return NewLog(sinks...), nil
}

// Append writes e to every sink. A missing timestamp is filled in.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	var errs []error
	for _, s := range l.sinks {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Record is shorthand for Append with the fields spelled out.
func (l *Log) Record(ctx context.Context, runID string, kind Kind, status, reason string, payload any) error {
	return l.Append(ctx, Entry{RunID: runID, Kind: kind, Status: status, Reason: reason, Payload: payload})
}

// Path returns the JSONL file path, if a JSONL sink is configured.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	for _, s := range l.sinks {
		if w, ok := s.(*JSONLWriter); ok {
			return w.Path()
		}
	}
	return ""
}

// Close closes every sink.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
