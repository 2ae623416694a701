// Package rom defines the Response Object Model, the single externally
// rendered artifact of a turn.
package rom

// BlockText is the only block type emitted today; the renderer contract
// allows more.
const BlockText = "text"

type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func Text(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ResponseObjectModel is built exactly once per turn.
type ResponseObjectModel struct {
	TraceID   string         `json:"trace_id"`
	SessionID string         `json:"session_id"`
	PersonID  string         `json:"person_id,omitempty"`
	Blocks    []Block        `json:"blocks"`
	Meta      map[string]any `json:"meta"`
}

// Build assembles a single-text ROM. Meta may be nil.
func Build(traceID, sessionID, personID, text string, meta map[string]any) ResponseObjectModel {
	if meta == nil {
		meta = map[string]any{}
	}
	return ResponseObjectModel{
		TraceID:   traceID,
		SessionID: sessionID,
		PersonID:  personID,
		Blocks:    []Block{Text(text)},
		Meta:      meta,
	}
}
