// Package eventgraph persists the per-turn causal event chain as
// append-only JSONL. Queries are bounded linear scans; the store trades
// read speed for write simplicity and has no index to maintain.
package eventgraph

import (
	"time"

	"github.com/oklog/ulid/v2"
)

var monotonicBase = time.Now()

// Event is one node in the causal chain of a turn. CausationID links to the
// event emitted immediately before it in the same turn.
type Event struct {
	EventID       string         `json:"event_id"`
	TraceID       string         `json:"trace_id"`
	TSUnixMS      int64          `json:"ts_unix_ms"`
	TSMonotonicNS int64          `json:"ts_monotonic_ns"`
	EventType     string         `json:"event_type"`
	Actor         string         `json:"actor,omitempty"`
	PersonID      string         `json:"person_id,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	Attrs         map[string]any `json:"attrs"`
	Payload       map[string]any `json:"payload"`
	CausationID   string         `json:"causation_id,omitempty"`
	ParentEventID string         `json:"parent_event_id,omitempty"`
}

// NewEvent stamps a fresh event. The monotonic component disambiguates
// ordering when two events land in the same wall-clock millisecond.
func NewEvent(traceID, eventType string) Event {
	return Event{
		EventID:       ulid.Make().String(),
		TraceID:       traceID,
		TSUnixMS:      time.Now().UnixMilli(),
		TSMonotonicNS: time.Since(monotonicBase).Nanoseconds(),
		EventType:     eventType,
		Attrs:         map[string]any{},
		Payload:       map[string]any{},
	}
}

// Chain is a per-turn event factory that threads causation ids so the
// emitted events form a linear causal chain.
type Chain struct {
	traceID   string
	personID  string
	sessionID string
	lastID    string
	events    []Event
}

func NewChain(traceID, sessionID, personID string) *Chain {
	return &Chain{traceID: traceID, sessionID: sessionID, personID: personID}
}

// Emit appends one stage event to the chain.
func (c *Chain) Emit(eventType string, attrs map[string]any) {
	evt := NewEvent(c.traceID, eventType)
	evt.Actor = "orchestrator"
	evt.PersonID = c.personID
	evt.SessionID = c.sessionID
	evt.CausationID = c.lastID
	evt.ParentEventID = c.lastID
	if attrs != nil {
		evt.Attrs = attrs
	}
	c.lastID = evt.EventID
	c.events = append(c.events, evt)
}

// Events returns the chain in emission order.
func (c *Chain) Events() []Event { return c.events }
