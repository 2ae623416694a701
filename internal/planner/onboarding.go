package planner

import (
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/musubi/internal/profile"
)

// globalFinish are honored at any stage and end onboarding immediately.
var globalFinish = map[string]struct{}{
	"skip": {}, "done": {}, "finish": {}, "complete": {},
}

// goalsSkip are accepted at the goals stage as "no goals".
var goalsSkip = map[string]struct{}{
	"skip": {}, "no": {}, "none": {}, "nah": {}, "nope": {}, "nothing": {},
}

func isGlobalFinish(text string) bool {
	_, ok := globalFinish[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func isGoalsSkip(text string) bool {
	_, ok := goalsSkip[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// onboardingOutcome is the result of one onboarding turn: the planned steps
// and memory ops, plus directive overrides when a preference was accepted
// this turn.
type onboardingOutcome struct {
	steps     []Step
	memoryOps []MemoryOp
	overrides Overrides
}

func upsertProfile(payload map[string]any, effect string) MemoryOp {
	return MemoryOp{
		OpID:           ulid.Make().String(),
		Op:             OpUpsert,
		Target:         TargetProfile,
		Payload:        payload,
		ExpectedEffect: effect,
	}
}

// askStage plans the question for a stage. The profile upsert recording the
// awaited stage is only emitted on the first ask; a re-ask after an unparsed
// answer leaves the profile untouched.
func askStage(stage profile.Stage, firstAsk bool) onboardingOutcome {
	out := onboardingOutcome{
		steps: []Step{{
			StepID:    "step_1",
			Type:      StepClarify,
			Summary:   "Collect onboarding." + string(stage),
			DependsOn: []string{},
		}},
		memoryOps: []MemoryOp{},
	}
	if firstAsk {
		out.memoryOps = append(out.memoryOps, upsertProfile(map[string]any{
			"onboarding": map[string]any{"completed": false, "stage": string(stage), "awaiting": string(stage)},
		}, "write"))
	}
	return out
}

// acceptStage plans the persistence of an accepted answer plus the question
// for the following stage.
func acceptStage(payload map[string]any, persistSummary string, next profile.Stage) onboardingOutcome {
	payload["onboarding"] = map[string]any{"stage": string(next), "awaiting": string(next)}
	return onboardingOutcome{
		steps: []Step{
			{StepID: "step_1", Type: StepMemory, Summary: persistSummary, DependsOn: []string{}},
			{StepID: "step_2", Type: StepClarify, Summary: "Collect onboarding." + string(next), DependsOn: []string{"step_1"}},
		},
		memoryOps: []MemoryOp{upsertProfile(payload, "write")},
	}
}

// finishOnboarding plans the terminal write. Extra keys (goals) ride along
// in the same upsert.
func finishOnboarding(extra map[string]any, summary string) onboardingOutcome {
	payload := map[string]any{
		"onboarding": map[string]any{"completed": true, "stage": string(profile.StageDone), "awaiting": nil},
	}
	for k, v := range extra {
		payload[k] = v
	}
	return onboardingOutcome{
		steps: []Step{
			{StepID: "step_1", Type: StepMemory, Summary: summary, DependsOn: []string{}},
			{StepID: "step_2", Type: StepRespond, Summary: "Confirm onboarding completion", DependsOn: []string{"step_1"}},
		},
		memoryOps: []MemoryOp{upsertProfile(payload, "write")},
	}
}

// planOnboarding advances the onboarding state machine by one turn. It is a
// pure function of the input text and the stored profile; all state lives in
// the profile document.
func planOnboarding(text string, prof profile.Document) onboardingOutcome {
	state := prof.Onboarding()

	if state.Awaiting == "" {
		// Nothing asked yet this flow: open with the current stage question.
		if isGlobalFinish(text) {
			return finishOnboarding(nil, "Mark onboarding complete")
		}
		stage := state.Stage
		if stage == "" || stage == profile.StageDone {
			stage = profile.StageName
		}
		return askStage(stage, true)
	}

	// The input answers the awaited stage.
	switch state.Awaiting {
	case profile.StageName:
		if isGlobalFinish(text) {
			return finishOnboarding(nil, "Mark onboarding complete")
		}
		name := strings.TrimSpace(text)
		if name == "" {
			return askStage(profile.StageName, false)
		}
		return acceptStage(map[string]any{"preferred_name": name}, "Persist preferred name", profile.StageVerbosity)

	case profile.StageVerbosity:
		if v, ok := profile.ParseVerbosity(text); ok {
			out := acceptStage(map[string]any{
				"preferences": map[string]any{"verbosity": string(v)},
			}, "Persist verbosity preference", profile.StageVisualDensity)
			out.overrides.Verbosity = string(v)
			return out
		}
		if isGlobalFinish(text) {
			return finishOnboarding(nil, "Mark onboarding complete")
		}
		return askStage(profile.StageVerbosity, false)

	case profile.StageVisualDensity:
		if v, ok := profile.ParseVisualDensity(text); ok {
			out := acceptStage(map[string]any{
				"preferences": map[string]any{"visual_density": string(v)},
			}, "Persist visual density preference", profile.StageGoals)
			out.overrides.VisualDensity = string(v)
			return out
		}
		if isGlobalFinish(text) {
			return finishOnboarding(nil, "Mark onboarding complete")
		}
		return askStage(profile.StageVisualDensity, false)

	default: // goals
		if isGoalsSkip(text) || isGlobalFinish(text) {
			return finishOnboarding(map[string]any{"goals": ""}, "Mark onboarding complete")
		}
		return finishOnboarding(map[string]any{"goals": strings.TrimSpace(text)}, "Persist goals and mark onboarding complete")
	}
}
