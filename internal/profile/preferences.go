package profile

import "strings"

// Verbosity controls how long generated responses are allowed to be.
type Verbosity string

const (
	VerbosityMinimal  Verbosity = "minimal"
	VerbosityNormal   Verbosity = "normal"
	VerbosityDetailed Verbosity = "detailed"
)

// VisualDensity controls how much the renderer puts on screen.
type VisualDensity string

const (
	DensitySparse   VisualDensity = "sparse"
	DensityBalanced VisualDensity = "balanced"
	DensityDense    VisualDensity = "dense"
)

// Presence is the renderer's ambient character.
type Presence string

const (
	PresenceCalm      Presence = "calm"
	PresenceNeutral   Presence = "neutral"
	PresenceEnergetic Presence = "energetic"
)

// ParseVerbosity maps free text (including synonyms) onto a Verbosity.
func ParseVerbosity(text string) (Verbosity, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "minimal", "min", "brief", "short":
		return VerbosityMinimal, true
	case "normal", "default", "standard":
		return VerbosityNormal, true
	case "detailed", "detail", "verbose", "long":
		return VerbosityDetailed, true
	}
	return "", false
}

// ParseVisualDensity maps free text (including synonyms) onto a VisualDensity.
func ParseVisualDensity(text string) (VisualDensity, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "sparse", "minimal", "low":
		return DensitySparse, true
	case "balanced", "normal", "default", "medium":
		return DensityBalanced, true
	case "dense", "high", "compact":
		return DensityDense, true
	}
	return "", false
}

// ValidVerbosity reports whether s is exactly one of the closed verbosity values.
func ValidVerbosity(s string) bool {
	switch Verbosity(s) {
	case VerbosityMinimal, VerbosityNormal, VerbosityDetailed:
		return true
	}
	return false
}

// ValidVisualDensity reports whether s is exactly one of the closed density values.
func ValidVisualDensity(s string) bool {
	switch VisualDensity(s) {
	case DensitySparse, DensityBalanced, DensityDense:
		return true
	}
	return false
}

// ValidPresence reports whether s is exactly one of the closed presence values.
func ValidPresence(s string) bool {
	switch Presence(s) {
	case PresenceCalm, PresenceNeutral, PresenceEnergetic:
		return true
	}
	return false
}
