// Package interaction produces the user-facing response text for a turn.
// Onboarding questions are answered deterministically so onboarding keeps
// working when inference is down; everything else goes through the
// inference service with a hard no-tools boundary.
package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/memory"
	"github.com/harunnryd/musubi/internal/planner"
	"github.com/harunnryd/musubi/internal/tool"
)

// Fixed texts. The caller falls back to these when inference yields nothing.
const (
	FallbackConfirm = planner.ConfirmationPrompt
	FallbackDone    = "Done."

	defaultSystemPrompt = "You are a concise multimodal assistant."
	temperature         = 0.4
)

// Onboarding question texts keyed by the stage named in clarify-step
// summaries.
var onboardingQuestions = map[string]string{
	"onboarding.name":           "What name should I use to address you?",
	"onboarding.verbosity":      "How verbose should I be: minimal, normal, or detailed?",
	"onboarding.visual_density": "For the fullscreen experience, do you prefer sparse, balanced, or dense visuals?",
	"onboarding.goals":          "Any goals you want me to keep in mind? You can say “skip”.",
}

const genericClarify = "I have a quick question before we continue."

// Token budgets by verbosity directive.
var tokenBudgets = map[string]int{
	"minimal":  180,
	"normal":   500,
	"detailed": 900,
}

// Result carries the generated text plus provenance when inference was used.
type Result struct {
	OK       bool
	Text     string
	Provider string
	Model    string
	Err      string
}

// Generator turns a completed plan execution into response text.
type Generator struct {
	inference    *client.Service
	systemPrompt string
}

func NewGenerator(inference *client.Service) *Generator {
	return &Generator{inference: inference, systemPrompt: defaultSystemPrompt}
}

// Turn is everything the generator may draw on for one response.
type Turn struct {
	TraceID       string
	SessionID     string
	PersonID      string
	UserText      string
	Plan          planner.Plan
	ToolResults   []tool.Result
	MemoryResults []memory.Result
}

// Generate produces the response text for one turn.
func (g *Generator) Generate(ctx context.Context, turn Turn) Result {
	if text, ok := clarifyText(turn.Plan); ok {
		return Result{OK: true, Text: text}
	}

	if g.inference == nil {
		return Result{Err: "inference not configured"}
	}

	res := g.inference.Post(ctx, "/inference/request", g.request(turn), map[string]string{
		"X-Event-ID": turn.TraceID,
		"X-Trace-ID": turn.TraceID,
	})
	if !res.Success() {
		return Result{Err: fmt.Sprintf("inference failed status=%d", res.Status)}
	}

	// Boundary: the model is never given tools, so any returned tool calls
	// are a protocol violation. Discard them, keep the text.
	if calls, ok := res.Body["tool_calls"].([]any); ok && len(calls) > 0 {
		slog.Warn("Inference returned tool calls on a no-tools request, discarding",
			"trace_id", turn.TraceID, "count", len(calls))
	}

	text, _ := res.Body["result"].(string)
	provider, _ := res.Body["provider"].(string)
	model, _ := res.Body["model"].(string)
	return Result{OK: true, Text: text, Provider: provider, Model: model}
}

// FallbackText is the deterministic response used when Generate produces no
// text: the confirmation prompt when one is pending, otherwise "Done.".
func FallbackText(plan planner.Plan) string {
	if plan.RequiresConfirmation && plan.ConfirmationPrompt != "" {
		return plan.ConfirmationPrompt
	}
	return FallbackDone
}

// clarifyText answers clarify plans from the fixed question table.
func clarifyText(plan planner.Plan) (string, bool) {
	hasClarify := false
	var summaries strings.Builder
	for _, step := range plan.Steps {
		if step.Type == planner.StepClarify {
			hasClarify = true
		}
		summaries.WriteString(step.Summary)
		summaries.WriteByte(' ')
	}
	if !hasClarify {
		return "", false
	}
	for key, question := range onboardingQuestions {
		if strings.Contains(summaries.String(), key) {
			return question, true
		}
	}
	return genericClarify, true
}

func (g *Generator) request(turn Turn) map[string]any {
	verbosity := turn.Plan.RendererDirectives.Verbosity
	maxTokens, ok := tokenBudgets[verbosity]
	if !ok {
		maxTokens = tokenBudgets["normal"]
	}

	personID := turn.PersonID
	if personID == "" {
		personID = "anonymous"
	}

	var contextLines []string
	if len(turn.ToolResults) > 0 {
		contextLines = append(contextLines, "Tool results:")
		for i, tr := range turn.ToolResults {
			if i == 5 {
				break
			}
			status := "ok"
			if !tr.OK {
				status = tr.Error
			}
			contextLines = append(contextLines, fmt.Sprintf("- %v: %s", tr.Result["tool_name"], status))
		}
	}
	if len(turn.MemoryResults) > 0 {
		contextLines = append(contextLines, "Memory results:")
		for i, mr := range turn.MemoryResults {
			if i == 5 {
				break
			}
			status := "ok"
			if !mr.OK {
				status = mr.Error
			}
			contextLines = append(contextLines, fmt.Sprintf("- %v: %s", mr.Result["target"], status))
		}
	}
	if turn.Plan.RequiresConfirmation {
		contextLines = append(contextLines, "The plan requires confirmation before executing tools.")
	}

	userPayload := turn.UserText
	if len(contextLines) > 0 {
		userPayload = turn.UserText + "\n\n" + strings.Join(contextLines, "\n")
	}

	return map[string]any{
		"intent":     "interaction.respond",
		"person_id":  personID,
		"session_id": turn.SessionID,
		"messages": []map[string]any{
			{"role": "system", "content": g.systemPrompt},
			{"role": "user", "content": userPayload},
		},
		"tools":           []any{},
		"tool_choice":     "none",
		"response_format": "text",
		"max_tokens":      maxTokens,
		"temperature":     temperature,
	}
}
