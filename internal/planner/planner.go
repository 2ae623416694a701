package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/musubi/internal/classifier"
	"github.com/harunnryd/musubi/internal/ingress"
	"github.com/harunnryd/musubi/internal/profile"
	"github.com/harunnryd/musubi/internal/schema"
)

const (
	plannerModel  = "deterministic-v1"
	toolTimeoutMS = 60000
	confidence    = 0.72
)

// Planner builds deterministic intents and plans. Every output is validated
// against the embedded schemas before it leaves this package.
type Planner struct {
	validator      *schema.Validator
	allowedDomains []string
}

func New(validator *schema.Validator, allowedDomains []string) *Planner {
	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Planner{validator: validator, allowedDomains: domains}
}

// CreateIntent normalizes the raw input into a schema-valid intent.
func (p *Planner) CreateIntent(rawInput string, modality ingress.Modality) (Intent, error) {
	normalized := strings.TrimSpace(rawInput)
	hint := classifier.Classify(normalized)

	mod := "text"
	if modality == ingress.ModalitySpeech {
		mod = "voice"
	}

	intent := Intent{
		IntentID:               ulid.Make().String(),
		Timestamp:              time.Now().UTC().Format(time.RFC3339),
		Modality:               mod,
		RawInput:               rawInput,
		NormalizedText:         normalized,
		Language:               "en",
		Category:               string(hint.Category),
		Confidence:             confidence,
		Entities:               []string{},
		RequiresClarification:  false,
		ClarificationQuestions: []string{},
	}
	if err := p.validator.Validate(schema.IntentV1, intent); err != nil {
		return Intent{}, fmt.Errorf("create intent: %w", err)
	}
	return intent, nil
}

// CreatePlan builds the plan for one intent against the caller's profile.
// While onboarding is incomplete the onboarding machine owns the plan;
// afterwards planning is cue-driven.
func (p *Planner) CreatePlan(intent Intent, prof profile.Document) (Plan, error) {
	plan := Plan{
		PlanID:       ulid.Make().String(),
		IntentID:     intent.IntentID,
		PlannerModel: plannerModel,
		Steps:        []Step{},
		ToolCalls:    []ToolCall{},
		MemoryOps:    []MemoryOp{},
	}

	modality := ingress.ModalityText
	if intent.Modality == "voice" {
		modality = ingress.ModalitySpeech
	}

	if !prof.Onboarding().Completed {
		out := planOnboarding(intent.NormalizedText, prof)
		plan.PolicySummary = "onboarding"
		plan.Steps = out.steps
		plan.MemoryOps = out.memoryOps
		plan.RendererDirectives = buildDirectives(modality, prof, out.overrides)
		if err := p.validator.Validate(schema.PlanV1, plan); err != nil {
			return Plan{}, fmt.Errorf("create onboarding plan: %w", err)
		}
		return plan, nil
	}

	plan.PolicySummary = "deterministic"
	if url := extractURL(intent.NormalizedText); url != "" {
		decision, reason := decisionForURL(url, p.allowedDomains)
		plan.ToolCalls = append(plan.ToolCalls, ToolCall{
			ToolCallID:    ulid.Make().String(),
			ToolName:      ToolUseComputer,
			Args:          map[string]any{"action": "open_url", "url": url},
			Authorization: Authorization{PolicyDecision: decision, Reason: reason},
			TimeoutMS:     toolTimeoutMS,
		})
		plan.Steps = append(plan.Steps,
			Step{StepID: "step_1", Type: StepTool, Summary: "Open the requested URL in a bounded computer session", DependsOn: []string{}},
			Step{StepID: "step_2", Type: StepRespond, Summary: "Confirm the result and offer next steps", DependsOn: []string{"step_1"}},
		)
	} else {
		plan.Steps = append(plan.Steps,
			Step{StepID: "step_1", Type: StepRespond, Summary: "Answer the user", DependsOn: []string{}},
		)
	}

	plan.RendererDirectives = buildDirectives(modality, prof, Overrides{})
	for _, tc := range plan.ToolCalls {
		if tc.Authorization.PolicyDecision == DecisionConfirm {
			plan.RequiresConfirmation = true
		}
	}
	if len(plan.ToolCalls) > 0 {
		plan.ConfirmationPrompt = ConfirmationPrompt
	}

	if err := p.validator.Validate(schema.PlanV1, plan); err != nil {
		return Plan{}, fmt.Errorf("create plan: %w", err)
	}
	return plan, nil
}

// Plan runs intent creation and planning for one turn.
func (p *Planner) Plan(rawInput string, modality ingress.Modality, prof profile.Document) (Intent, Plan, error) {
	intent, err := p.CreateIntent(rawInput, modality)
	if err != nil {
		return Intent{}, Plan{}, err
	}
	plan, err := p.CreatePlan(intent, prof)
	if err != nil {
		return Intent{}, Plan{}, err
	}
	return intent, plan, nil
}
