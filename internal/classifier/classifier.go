// Package classifier is the router stage: a cheap lexical pass that labels
// raw text with a coarse intent hint before planning. It never touches the
// network.
package classifier

import "strings"

// Category is the coarse intent label used by the planner.
type Category string

const (
	CategoryQA        Category = "qa"
	CategoryActuation Category = "actuation"
	CategoryMemory    Category = "memory"
)

// Hint is the classifier output handed to the planner.
type Hint struct {
	Category        Category
	LatencyBudgetMS int
}

// Classify labels text from lexical cues: a browse/open prefix marks
// actuation, a remember cue marks memory, everything else is qa.
func Classify(text string) Hint {
	normalized := strings.ToLower(strings.TrimSpace(text))

	category := CategoryQA
	switch {
	case strings.HasPrefix(normalized, "browse ") || strings.HasPrefix(normalized, "open "):
		category = CategoryActuation
	case strings.HasPrefix(normalized, "remember") || strings.Contains(normalized, "remember that"):
		category = CategoryMemory
	}

	return Hint{Category: category, LatencyBudgetMS: 250}
}
