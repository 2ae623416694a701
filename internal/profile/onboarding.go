package profile

// Stage is one step of the first-run onboarding flow. The order is fixed:
// name, verbosity, visual_density, goals, done.
type Stage string

const (
	StageName          Stage = "name"
	StageVerbosity     Stage = "verbosity"
	StageVisualDensity Stage = "visual_density"
	StageGoals         Stage = "goals"
	StageDone          Stage = "done"
)

// NextStage returns the stage that follows s. Done is terminal.
func NextStage(s Stage) Stage {
	switch s {
	case StageName:
		return StageVerbosity
	case StageVerbosity:
		return StageVisualDensity
	case StageVisualDensity:
		return StageGoals
	case StageGoals:
		return StageDone
	}
	return StageDone
}

// OnboardingState is derived from the profile's onboarding sub-object, not
// stored separately. A missing or malformed sub-object means onboarding has
// not started.
type OnboardingState struct {
	Completed bool
	Stage     Stage
	Awaiting  Stage
}

func validStage(s string) bool {
	switch Stage(s) {
	case StageName, StageVerbosity, StageVisualDensity, StageGoals, StageDone:
		return true
	}
	return false
}

func awaitable(s string) bool {
	switch Stage(s) {
	case StageName, StageVerbosity, StageVisualDensity, StageGoals:
		return true
	}
	return false
}

// Onboarding derives the onboarding state from the document.
func (d Document) Onboarding() OnboardingState {
	state := OnboardingState{Stage: StageName}
	ob, ok := d["onboarding"].(map[string]any)
	if !ok {
		return state
	}
	state.Completed = ob["completed"] == true
	if s, ok := ob["stage"].(string); ok && validStage(s) {
		state.Stage = Stage(s)
	}
	if a, ok := ob["awaiting"].(string); ok && awaitable(a) {
		state.Awaiting = Stage(a)
	}
	return state
}
