// Package planner turns one classified input into a schema-valid Intent and
// Plan. Planning is deterministic: while onboarding is incomplete a fixed
// state machine drives the plan, afterwards lexical cues and stored
// preferences do. The planner never talks to the inference service.
package planner

// Step types (closed set, mirrored by the plan schema).
const (
	StepRespond = "respond"
	StepClarify = "clarify"
	StepTool    = "tool"
	StepMemory  = "memory"
)

// Policy decisions attached to a tool call. Only an allow decision permits
// execution.
const (
	DecisionAllow   = "allow"
	DecisionConfirm = "confirm"
	DecisionDeny    = "deny"
)

// Memory operation names and targets.
const (
	OpQuery  = "query"
	OpUpsert = "upsert"
	OpDelete = "delete"

	TargetProfile     = "profile"
	TargetPreferences = "preferences"
)

// Tool names in the closed tool set.
const (
	ToolNoop        = "noop"
	ToolUseComputer = "vdi.use_computer"
	ToolFormSubmit  = "vdi.form_submit"
	ToolDownload    = "vdi.download"
)

// ConfirmationPrompt is the fixed text used when a plan carries tool calls
// that may need user confirmation.
const ConfirmationPrompt = "I can do that. Do you want me to proceed?"

// Intent is produced once per turn, schema-validated, and immutable
// thereafter.
type Intent struct {
	IntentID               string   `json:"intent_id"`
	Timestamp              string   `json:"timestamp"`
	Modality               string   `json:"modality"`
	RawInput               string   `json:"raw_input"`
	NormalizedText         string   `json:"normalized_text"`
	Language               string   `json:"language"`
	Category               string   `json:"category"`
	Confidence             float64  `json:"confidence"`
	Entities               []string `json:"entities"`
	RequiresClarification  bool     `json:"requires_clarification"`
	ClarificationQuestions []string `json:"clarification_questions"`
}

// Step is one planned unit of work.
type Step struct {
	StepID    string   `json:"step_id"`
	Type      string   `json:"type"`
	Summary   string   `json:"summary"`
	DependsOn []string `json:"depends_on"`
}

// Authorization is the policy outcome baked into a tool call at planning
// time. The tool runtime re-checks it before executing.
type Authorization struct {
	PolicyDecision string `json:"policy_decision"`
	Reason         string `json:"reason,omitempty"`
}

// ToolCall is one gated downstream action.
type ToolCall struct {
	ToolCallID    string         `json:"tool_call_id"`
	ToolName      string         `json:"tool_name"`
	Args          map[string]any `json:"args"`
	Authorization Authorization  `json:"authorization"`
	TimeoutMS     int            `json:"timeout_ms"`
}

// MemoryOp is one planned profile/preferences mutation or read.
type MemoryOp struct {
	OpID           string         `json:"op_id"`
	Op             string         `json:"op"`
	Target         string         `json:"target"`
	Payload        map[string]any `json:"payload"`
	ExpectedEffect string         `json:"expected_effect"`
}

// RendererDirectives tell the presentation surface how to render the turn.
type RendererDirectives struct {
	Verbosity          string         `json:"verbosity"`
	VisualDensity      string         `json:"visual_density"`
	Presence           string         `json:"presence"`
	Modality           string         `json:"modality"`
	PacingWPM          int            `json:"pacing_wpm"`
	AllowMotion        bool           `json:"allow_motion"`
	AccessibilityHints map[string]any `json:"accessibility_hints"`
}

// Plan is the schema-valid output of one planning pass.
type Plan struct {
	PlanID               string             `json:"plan_id"`
	IntentID             string             `json:"intent_id"`
	PlannerModel         string             `json:"planner_model"`
	PolicySummary        string             `json:"policy_summary,omitempty"`
	Steps                []Step             `json:"steps"`
	ToolCalls            []ToolCall         `json:"tool_calls"`
	MemoryOps            []MemoryOp         `json:"memory_ops"`
	RendererDirectives   RendererDirectives `json:"renderer_directives"`
	RequiresConfirmation bool               `json:"requires_confirmation"`
	ConfirmationPrompt   string             `json:"confirmation_prompt,omitempty"`
}
