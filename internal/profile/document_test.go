package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_RecursiveMapsScalarReplace(t *testing.T) {
	base := Document{
		"preferred_name": "Ada",
		"preferences": map[string]any{
			"verbosity":  "normal",
			"pacing_wpm": 160,
		},
	}

	merged := base.Merge(map[string]any{
		"preferences": map[string]any{"verbosity": "minimal"},
		"goals":       "ship it",
	})

	assert.Equal(t, "Ada", merged.PreferredName())
	assert.Equal(t, "minimal", merged.Preferences()["verbosity"])
	assert.Equal(t, 160, merged.Preferences()["pacing_wpm"])
	assert.Equal(t, "ship it", merged["goals"])

	// Inputs untouched.
	assert.Equal(t, "normal", base.Preferences()["verbosity"])
	_, ok := base["goals"]
	assert.False(t, ok)
}

func TestMerge_Idempotent(t *testing.T) {
	base := Document{"preferences": map[string]any{"verbosity": "normal"}}
	patch := map[string]any{"preferences": map[string]any{"verbosity": "minimal"}}

	once := base.Merge(patch)
	twice := once.Merge(patch)

	assert.Equal(t, once, twice)
}

func TestMerge_ScalarOverMap(t *testing.T) {
	base := Document{"preferences": map[string]any{"verbosity": "normal"}}
	merged := base.Merge(map[string]any{"preferences": "gone"})
	assert.Equal(t, "gone", merged["preferences"])
}

func TestDeleteKeys(t *testing.T) {
	base := Document{"a": 1, "b": 2, "preferences": map[string]any{"x": 1}}
	out := base.DeleteKeys([]string{"a", "missing"})

	_, ok := out["a"]
	assert.False(t, ok)
	assert.Equal(t, 2, out["b"])
	assert.Equal(t, 1, base["a"], "input untouched")
}

func TestOnboarding_Derivation(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want OnboardingState
	}{
		{
			name: "missing sub-object",
			doc:  Document{},
			want: OnboardingState{Stage: StageName},
		},
		{
			name: "completed",
			doc:  Document{"onboarding": map[string]any{"completed": true, "stage": "done"}},
			want: OnboardingState{Completed: true, Stage: StageDone},
		},
		{
			name: "awaiting verbosity",
			doc:  Document{"onboarding": map[string]any{"completed": false, "stage": "verbosity", "awaiting": "verbosity"}},
			want: OnboardingState{Stage: StageVerbosity, Awaiting: StageVerbosity},
		},
		{
			name: "invalid stage falls back to name",
			doc:  Document{"onboarding": map[string]any{"stage": "bogus", "awaiting": "done"}},
			want: OnboardingState{Stage: StageName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.Onboarding())
		})
	}
}

func TestNextStage_FixedOrder(t *testing.T) {
	require.Equal(t, StageVerbosity, NextStage(StageName))
	require.Equal(t, StageVisualDensity, NextStage(StageVerbosity))
	require.Equal(t, StageGoals, NextStage(StageVisualDensity))
	require.Equal(t, StageDone, NextStage(StageGoals))
	require.Equal(t, StageDone, NextStage(StageDone))
}

func TestParsePreferences(t *testing.T) {
	v, ok := ParseVerbosity(" Brief ")
	require.True(t, ok)
	assert.Equal(t, VerbosityMinimal, v)

	_, ok = ParseVerbosity("loud")
	assert.False(t, ok)

	d, ok := ParseVisualDensity("COMPACT")
	require.True(t, ok)
	assert.Equal(t, DensityDense, d)

	_, ok = ParseVisualDensity("")
	assert.False(t, ok)
}
