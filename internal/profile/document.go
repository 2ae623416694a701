// Package profile models the per-person profile document owned by the
// context store. The pipeline never holds the document as source of truth:
// it reads snapshots and writes merged replacements.
package profile

import "strings"

// Document is a profile snapshot. Known fields have typed accessors; the
// store may carry arbitrary extension fields alongside them.
type Document map[string]any

// Merge returns a new document with patch applied using the recursive-merge
// rule: when both sides of a key are maps they merge recursively, otherwise
// the incoming value replaces the existing one. Neither input is mutated.
func (d Document) Merge(patch map[string]any) Document {
	return Document(deepMerge(d, patch))
}

func deepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		incoming, inOK := v.(map[string]any)
		existing, exOK := out[k].(map[string]any)
		if inOK && exOK {
			out[k] = deepMerge(existing, incoming)
			continue
		}
		out[k] = v
	}
	return out
}

// DeleteKeys returns a new document with the listed top-level keys removed.
func (d Document) DeleteKeys(keys []string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// PreferredName returns the stored preferred name, or "".
func (d Document) PreferredName() string {
	if v, ok := d["preferred_name"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Preferences returns the preferences sub-object, never nil.
func (d Document) Preferences() map[string]any {
	if v, ok := d["preferences"].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// WithPreferences returns a new document whose preferences sub-object has
// patch merged in.
func (d Document) WithPreferences(patch map[string]any) Document {
	out := make(Document, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	out["preferences"] = deepMerge(d.Preferences(), patch)
	return out
}
