// Package tool executes planned tool calls against the actuation proxy. The
// tool set is closed; every result carries a taxonomy code instead of free
// text so the runner and response generator can branch on it.
package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/errors"
	"github.com/harunnryd/musubi/internal/planner"
)

// Tool names recognized but intentionally not implemented here. They stay in
// the schema for forward compatibility and degrade to not_available.
var reservedTools = map[string]struct{}{
	"system.open_url": {},
	"system.search":   {},
	"context.query":   {},
	"context.upsert":  {},
}

// Statuses from the actuation proxy that mean the VDI integration is absent
// or down rather than the task having failed.
var unavailableStatuses = map[int]struct{}{
	404: {}, 500: {}, 501: {}, 502: {}, 503: {}, 504: {},
}

// Result is the outcome of one tool call execution.
type Result struct {
	ToolCallID string         `json:"tool_call_id"`
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
	Result     map[string]any `json:"result"`
}

// Caller identifies the person and turn a tool call executes for.
type Caller struct {
	PersonID  string
	SessionID string
	TraceID   string
}

// Runtime executes tool calls. A nil actuation service degrades all VDI
// tools to not_available.
type Runtime struct {
	actuation *client.Service
}

func NewRuntime(actuation *client.Service) *Runtime {
	return &Runtime{actuation: actuation}
}

// Execute runs one tool call. The authorization invariant comes first: any
// decision other than allow returns not_authorized without touching the
// network, regardless of tool name.
func (r *Runtime) Execute(ctx context.Context, call planner.ToolCall, caller Caller) Result {
	if call.Authorization.PolicyDecision != planner.DecisionAllow {
		return Result{
			ToolCallID: call.ToolCallID,
			Error:      errors.CodeNotAuthorized.String(),
			Result: map[string]any{
				"tool_name":       call.ToolName,
				"policy_decision": call.Authorization.PolicyDecision,
				"reason":          call.Authorization.Reason,
			},
		}
	}

	switch call.ToolName {
	case planner.ToolNoop:
		return Result{ToolCallID: call.ToolCallID, OK: true, Result: map[string]any{"ok": true}}

	case planner.ToolUseComputer:
		url, ok := call.Args["url"].(string)
		if call.Args["action"] != "open_url" || !ok || strings.TrimSpace(url) == "" {
			return r.invalidArgs(call, map[string]any{"action": "open_url", "url": "https://..."})
		}
		return r.vdiTask(ctx, call, caller, "/vdi/tasks/browse", map[string]any{
			"url":     strings.TrimSpace(url),
			"actions": []any{},
		})

	case planner.ToolFormSubmit:
		url, ok := call.Args["url"].(string)
		if !ok || strings.TrimSpace(url) == "" {
			return r.invalidArgs(call, map[string]any{"url": "https://...", "form": "[...]"})
		}
		form, _ := call.Args["form"].([]any)
		if form == nil {
			form = []any{}
		}
		return r.vdiTask(ctx, call, caller, "/vdi/tasks/form-submit", map[string]any{
			"url":             strings.TrimSpace(url),
			"form":            form,
			"submit_selector": call.Args["submit_selector"],
		})

	case planner.ToolDownload:
		url, ok := call.Args["url"].(string)
		if !ok || strings.TrimSpace(url) == "" {
			return r.invalidArgs(call, map[string]any{"url": "https://..."})
		}
		return r.vdiTask(ctx, call, caller, "/vdi/tasks/download", map[string]any{
			"url":         strings.TrimSpace(url),
			"target_path": call.Args["target_path"],
			"filename":    call.Args["filename"],
		})
	}

	if _, reserved := reservedTools[call.ToolName]; reserved {
		return Result{
			ToolCallID: call.ToolCallID,
			Error:      errors.CodeNotAvailable.String(),
			Result:     map[string]any{"tool_name": call.ToolName, "detail": "tool not implemented"},
		}
	}

	return Result{
		ToolCallID: call.ToolCallID,
		Error:      errors.CodeUnknownTool.String(),
		Result:     map[string]any{"tool_name": call.ToolName},
	}
}

func (r *Runtime) invalidArgs(call planner.ToolCall, expected map[string]any) Result {
	return Result{
		ToolCallID: call.ToolCallID,
		Error:      errors.CodeInvalidArgs.String(),
		Result:     map[string]any{"tool_name": call.ToolName, "expected": expected, "got": call.Args},
	}
}

// vdiTask posts one bounded VDI task to the actuation proxy and normalizes
// the outcome. An absent integration is expected and non-fatal.
func (r *Runtime) vdiTask(ctx context.Context, call planner.ToolCall, caller Caller, path string, extra map[string]any) Result {
	if r.actuation == nil {
		return Result{
			ToolCallID: call.ToolCallID,
			Error:      errors.CodeNotAvailable.String(),
			Result:     map[string]any{"tool_name": call.ToolName, "detail": "actuation service not configured"},
		}
	}
	if strings.TrimSpace(caller.PersonID) == "" {
		return Result{
			ToolCallID: call.ToolCallID,
			Error:      errors.CodeInvalidArgs.String(),
			Result:     map[string]any{"tool_name": call.ToolName, "detail": "person_id required for vdi tasks"},
		}
	}

	payload := map[string]any{
		"action_id":  call.ToolCallID,
		"trace_id":   caller.TraceID,
		"person_id":  caller.PersonID,
		"session_id": caller.SessionID,
		"risk_level": "low",
	}
	for k, v := range extra {
		payload[k] = v
	}

	res := r.actuation.Post(ctx, path, payload, nil)
	if !res.Success() {
		code := errors.CodeVDIFailed
		if !res.OK || statusUnavailable(res.Status) || mentionsUnavailable(res.Body) {
			code = errors.CodeNotAvailable
		}
		slog.Debug("Vdi task did not complete", "tool", call.ToolName, "path", path, "status", res.Status, "code", code)
		return Result{
			ToolCallID: call.ToolCallID,
			Error:      code.String(),
			Result:     map[string]any{"tool_name": call.ToolName, "status": res.Status, "body": res.Body},
		}
	}

	body := res.Body
	if body == nil {
		body = map[string]any{}
	}
	return Result{
		ToolCallID: call.ToolCallID,
		OK:         true,
		Result:     map[string]any{"tool_name": call.ToolName, "status": res.Status, "body": body},
	}
}

func statusUnavailable(status int) bool {
	_, ok := unavailableStatuses[status]
	return ok
}

// mentionsUnavailable catches proxies that answer with a well-formed error
// body carrying the vdi_unavailable marker on an otherwise generic status.
func mentionsUnavailable(body map[string]any) bool {
	if len(body) == 0 {
		return false
	}
	data, err := json.Marshal(body)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "vdi_unavailable")
}
