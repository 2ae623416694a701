package planner

import (
	"github.com/harunnryd/musubi/internal/ingress"
	"github.com/harunnryd/musubi/internal/profile"
)

const (
	defaultPacingWPM = 160
	minPacingWPM     = 80
	maxPacingWPM     = 240
)

// Overrides carry per-turn directive overrides, e.g. from an onboarding
// answer that was accepted this very turn. Empty fields mean no override.
type Overrides struct {
	Verbosity     string
	VisualDensity string
}

// buildDirectives resolves renderer directives from stored preferences,
// then applies per-turn overrides. Unknown or out-of-range values fall
// back to defaults rather than failing the plan.
func buildDirectives(modality ingress.Modality, prof profile.Document, o Overrides) RendererDirectives {
	d := RendererDirectives{
		Verbosity:          string(profile.VerbosityNormal),
		VisualDensity:      string(profile.DensityBalanced),
		Presence:           string(profile.PresenceCalm),
		Modality:           "renderer",
		PacingWPM:          defaultPacingWPM,
		AllowMotion:        true,
		AccessibilityHints: map[string]any{},
	}
	if modality == ingress.ModalitySpeech {
		d.Modality = "voice"
	}

	prefs := prof.Preferences()
	if v, ok := prefs["verbosity"].(string); ok && profile.ValidVerbosity(v) {
		d.Verbosity = v
	}
	if v, ok := prefs["visual_density"].(string); ok && profile.ValidVisualDensity(v) {
		d.VisualDensity = v
	}
	if v, ok := prefs["presence"].(string); ok && profile.ValidPresence(v) {
		d.Presence = v
	}
	if v, ok := numericPref(prefs["pacing_wpm"]); ok && v >= minPacingWPM && v <= maxPacingWPM {
		d.PacingWPM = v
	}
	if v, ok := prefs["allow_motion"].(bool); ok {
		d.AllowMotion = v
	}
	if v, ok := prefs["accessibility_hints"].(map[string]any); ok {
		d.AccessibilityHints = v
	}

	if o.Verbosity != "" && profile.ValidVerbosity(o.Verbosity) {
		d.Verbosity = o.Verbosity
	}
	if o.VisualDensity != "" && profile.ValidVisualDensity(o.VisualDensity) {
		d.VisualDensity = o.VisualDensity
	}
	return d
}

// numericPref accepts both native ints and JSON-decoded float64 values.
func numericPref(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
