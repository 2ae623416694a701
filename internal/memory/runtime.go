// Package memory executes planned memory ops against the context store.
// Writes are read-merge-replace: the runtime fetches the stored profile,
// applies the op locally, then posts the full document back.
package memory

import (
	"context"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/errors"
	"github.com/harunnryd/musubi/internal/planner"
	"github.com/harunnryd/musubi/internal/profile"
)

// Result is the outcome of one memory op.
type Result struct {
	OpID   string         `json:"op_id"`
	OK     bool           `json:"ok"`
	Error  string         `json:"error,omitempty"`
	Result map[string]any `json:"result"`
}

// Runtime executes memory ops for one context store.
type Runtime struct {
	store *client.Service
}

func NewRuntime(store *client.Service) *Runtime {
	return &Runtime{store: store}
}

// Execute runs one memory op for personID. Failures are per-op and never
// abort the turn.
func (r *Runtime) Execute(ctx context.Context, op planner.MemoryOp, personID string) Result {
	if r.store == nil || personID == "" {
		return Result{
			OpID:   op.OpID,
			Error:  errors.CodeNotAvailable.String(),
			Result: map[string]any{"detail": "context store or person not available"},
		}
	}
	if op.Target != planner.TargetProfile && op.Target != planner.TargetPreferences {
		return Result{
			OpID:   op.OpID,
			Error:  errors.CodeNotAvailable.String(),
			Result: map[string]any{"target": op.Target},
		}
	}

	prof, status := r.fetch(ctx, personID)

	switch op.Op {
	case planner.OpQuery:
		if op.Target == planner.TargetProfile {
			return Result{OpID: op.OpID, OK: true, Result: map[string]any{"profile": map[string]any(prof), "status": status}}
		}
		return Result{OpID: op.OpID, OK: true, Result: map[string]any{"preferences": prof.Preferences(), "status": status}}

	case planner.OpUpsert:
		var next profile.Document
		if op.Target == planner.TargetProfile {
			next = prof.Merge(op.Payload)
		} else {
			next = prof.WithPreferences(op.Payload)
		}
		return r.replace(ctx, op, personID, next)

	case planner.OpDelete:
		keys, ok := stringKeys(op.Payload["keys"])
		if !ok {
			return Result{
				OpID:   op.OpID,
				Error:  errors.CodeInvalidArgs.String(),
				Result: map[string]any{"expected": map[string]any{"keys": []string{"..."}}},
			}
		}
		var next profile.Document
		if op.Target == planner.TargetProfile {
			next = prof.DeleteKeys(keys)
		} else {
			next = prof.WithPreferences(nil)
			prefs := next["preferences"].(map[string]any)
			for _, k := range keys {
				delete(prefs, k)
			}
		}
		return r.replace(ctx, op, personID, next)
	}

	return Result{OpID: op.OpID, Error: errors.CodeUnknownOp.String(), Result: map[string]any{"op": op.Op}}
}

// fetch reads the stored profile, tolerating absence: a missing or
// malformed document reads as empty.
func (r *Runtime) fetch(ctx context.Context, personID string) (profile.Document, int) {
	res := r.store.Get(ctx, "/profile/"+personID, nil)
	if !res.Success() {
		return profile.Document{}, res.Status
	}
	if ok, _ := res.Body["ok"].(bool); !ok {
		return profile.Document{}, res.Status
	}
	doc, _ := res.Body["profile"].(map[string]any)
	if doc == nil {
		return profile.Document{}, res.Status
	}
	return profile.Document(doc), res.Status
}

// replace posts the full document back. Upsert through read-merge-replace
// is idempotent: re-applying the same payload writes the same document.
func (r *Runtime) replace(ctx context.Context, op planner.MemoryOp, personID string, next profile.Document) Result {
	res := r.store.Post(ctx, "/profile/"+personID, map[string]any{"profile": map[string]any(next)}, nil)
	if !res.Success() {
		return Result{
			OpID:   op.OpID,
			Error:  errors.CodeWriteFailed.String(),
			Result: map[string]any{"status": res.Status, "target": op.Target},
		}
	}
	return Result{OpID: op.OpID, OK: true, Result: map[string]any{"status": res.Status, "target": op.Target}}
}

func stringKeys(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		keys := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			keys = append(keys, s)
		}
		return keys, true
	default:
		return nil, false
	}
}
