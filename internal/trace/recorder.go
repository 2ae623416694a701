// Package trace records a human-readable per-turn trace artifact. The trace
// is diagnostic only: losing one never affects the turn's outcome.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
)

// Entry is one recorded pipeline moment.
type Entry struct {
	TSUnixMS int64          `json:"ts_unix_ms"`
	Type     string         `json:"type"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Recorder accumulates entries for one trace and writes them as a single
// JSON document.
type Recorder struct {
	dir     string
	traceID string
	service string
	started time.Time

	mu      sync.Mutex
	entries []Entry
}

// NewRecorder starts a trace. An empty traceID gets a fresh one.
func NewRecorder(dir, traceID string) *Recorder {
	if traceID == "" {
		traceID = ulid.Make().String()
	}
	return &Recorder{
		dir:     dir,
		traceID: traceID,
		service: "musubi.orchestrator",
		started: time.Now(),
	}
}

func (r *Recorder) TraceID() string { return r.traceID }

// Emit records one entry.
func (r *Recorder) Emit(entryType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		TSUnixMS: time.Now().UnixMilli(),
		Type:     entryType,
		Payload:  payload,
	})
}

type document struct {
	TraceID          string  `json:"trace_id"`
	Service          string  `json:"service"`
	StartedAtUnixMS  int64   `json:"started_at_unix_ms"`
	FinishedAtUnixMS int64   `json:"finished_at_unix_ms"`
	Events           []Entry `json:"events"`
}

// Write flushes the trace to {dir}/{trace_id}.json atomically and returns
// the path.
func (r *Recorder) Write() (string, error) {
	r.mu.Lock()
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create trace dir: %w", err)
	}

	doc := document{
		TraceID:          r.traceID,
		Service:          r.service,
		StartedAtUnixMS:  r.started.UnixMilli(),
		FinishedAtUnixMS: time.Now().UnixMilli(),
		Events:           entries,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode trace: %w", err)
	}

	path := filepath.Join(r.dir, r.traceID+".json")
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	return path, nil
}
