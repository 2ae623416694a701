package ingress

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Modality classifies how the input reached the pipeline.
type Modality string

const (
	ModalityText   Modality = "text"
	ModalitySpeech Modality = "speech"
)

// InputEvent is the immutable envelope for one inbound user input. It is
// created by ingress and consumed exactly once by the runner.
type InputEvent struct {
	EventID   string         `json:"event_id"`
	TraceID   string         `json:"trace_id"`
	TS        time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Modality  Modality       `json:"modality"`
	Payload   map[string]any `json:"payload"`
	PersonID  string         `json:"person_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// NewInputEvent creates an envelope with fresh ULIDs for event and trace.
func NewInputEvent(source string, modality Modality, text, personID, sessionID string) InputEvent {
	return InputEvent{
		EventID:   ulid.Make().String(),
		TraceID:   ulid.Make().String(),
		TS:        time.Now().UTC(),
		Source:    source,
		Modality:  modality,
		Payload:   map[string]any{"text": text},
		PersonID:  personID,
		SessionID: sessionID,
	}
}

// Text extracts the user text from the payload: "text" for typed input,
// "transcript" for speech.
func (e InputEvent) Text() string {
	for _, key := range []string{"text", "transcript"} {
		if v, ok := e.Payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
