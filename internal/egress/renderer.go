// Package egress pushes render frames to the presentation surface. Emission
// is best-effort: a dead renderer never fails a turn.
package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Frame types emitted per turn.
const (
	FrameIntentRecognized = "intent.recognized"
	FrameROMRender        = "rom.render"
)

// Envelope is the renderer wire format.
type Envelope struct {
	Type      string  `json:"type"`
	Payload   any     `json:"payload"`
	TS        float64 `json:"ts"`
	TraceID   string  `json:"trace_id"`
	SessionID string  `json:"session_id"`
	PersonID  string  `json:"person_id,omitempty"`
}

// RendererEmitter posts envelopes to {url}/events.
type RendererEmitter struct {
	url string
	hc  *http.Client
}

func NewRendererEmitter(url string) *RendererEmitter {
	return &RendererEmitter{
		url: strings.TrimRight(url, "/"),
		hc:  &http.Client{Timeout: 2 * time.Second},
	}
}

// Emit sends one frame. It returns whether the renderer accepted it and the
// HTTP status (zero when the call never completed).
func (e *RendererEmitter) Emit(ctx context.Context, traceID, sessionID, personID, frameType string, payload any) (bool, int) {
	envelope := Envelope{
		Type:      frameType,
		Payload:   payload,
		TS:        float64(time.Now().UnixMilli()) / 1000,
		TraceID:   traceID,
		SessionID: sessionID,
		PersonID:  personID,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("Marshal renderer envelope failed", "error", err)
		return false, 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/events", bytes.NewReader(body))
	if err != nil {
		return false, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", traceID)
	req.Header.Set("x-trace-id", traceID)
	req.Header.Set("traceparent", Traceparent(traceID))

	resp, err := e.hc.Do(req)
	if err != nil {
		slog.Debug("Renderer emit failed", "type", frameType, "error", err)
		return false, 0
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400, resp.StatusCode
}

// Traceparent formats a W3C traceparent header from an arbitrary trace id,
// hex-padding or truncating to the 32-character field.
func Traceparent(traceID string) string {
	id := strings.ReplaceAll(traceID, "-", "")
	id = strings.ToLower(id)
	clean := make([]byte, 0, 32)
	for i := 0; i < len(id) && len(clean) < 32; i++ {
		c := id[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			clean = append(clean, c)
		}
	}
	for len(clean) < 32 {
		clean = append(clean, '0')
	}
	return fmt.Sprintf("00-%s-%s-01", clean, "0000000000000001")
}
