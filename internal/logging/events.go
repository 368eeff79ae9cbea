package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Event types written to run logs.
const (
	EventRunStart   = "run_start"
	EventStageStart = "stage_start"
	EventStageEnd   = "stage_end"
	EventTask       = "task"
	EventRunEnd     = "run_end"
	EventError      = "error"
)

// Event is one line of a run log.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Stage is generate, evaluate or aggregate.
	Stage string `json:"stage,omitempty"`

	// Task fields
	TaskID     string `json:"task_id,omitempty"`
	Index      int    `json:"index,omitempty"`
	Status     string `json:"status,omitempty"` // ok, error or timeout
	DurationMS int64  `json:"duration_ms,omitempty"`

	// Stage totals
	Total  int `json:"total,omitempty"`
	Failed int `json:"failed,omitempty"`

	Content string `json:"content,omitempty"`
}

// Writer writes log events.
type Writer interface {
	Write(event Event) error
}

// JSONLWriter writes events as JSON lines.
type JSONLWriter struct {
	w io.Writer
}

// NewJSONLWriter creates a writer that encodes events to w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w}
}

// Write writes a single event line.
func (l *JSONLWriter) Write(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}
	data = append(data, '\n')
	_, err = l.w.Write(data)
	return err
}

// MultiWriter writes to multiple writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a writer fanning out to writers. Nil entries are skipped.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	m := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Write writes the event to all underlying writers.
func (m *MultiWriter) Write(event Event) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multi-writer errors: %v", errs)
	}
	return nil
}

// NullWriter is a no-op writer.
type NullWriter struct{}

// Write does nothing.
func (NullWriter) Write(Event) error {
	return nil
}

type lockedWriter struct {
	mu     sync.Mutex
	writer Writer
}

func (l *lockedWriter) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Write(event)
}

// Synchronized returns a writer safe for concurrent use.
func Synchronized(writer Writer) Writer {
	if writer == nil {
		return NullWriter{}
	}
	if _, ok := writer.(*lockedWriter); ok {
		return writer
	}
	return &lockedWriter{writer: writer}
}
