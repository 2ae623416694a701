// Package runner drives the full pipeline for one input event: gate, plan,
// execute, respond, render, persist. Stages run strictly sequentially
// within a turn; only the model-pack gate and schema validation may fail
// the turn, everything else degrades to its taxonomy code.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/musubi/internal/concurrency"
	"github.com/harunnryd/musubi/internal/egress"
	"github.com/harunnryd/musubi/internal/eventgraph"
	"github.com/harunnryd/musubi/internal/ingress"
	"github.com/harunnryd/musubi/internal/interaction"
	"github.com/harunnryd/musubi/internal/logger"
	"github.com/harunnryd/musubi/internal/memory"
	"github.com/harunnryd/musubi/internal/modelpack"
	"github.com/harunnryd/musubi/internal/planner"
	"github.com/harunnryd/musubi/internal/policy"
	"github.com/harunnryd/musubi/internal/rom"
	"github.com/harunnryd/musubi/internal/snapshot"
	"github.com/harunnryd/musubi/internal/tool"
	"github.com/harunnryd/musubi/internal/trace"
	"github.com/harunnryd/musubi/internal/writebehind"
)

// Deps are the wired pipeline components. Optional integrations (renderer,
// events, write-behind, pack gate) may be nil.
type Deps struct {
	Planner     *planner.Planner
	PolicyGate  *policy.Gate
	Tools       *tool.Runtime
	Memory      *memory.Runtime
	Generator   *interaction.Generator
	Snapshots   *snapshot.Reader
	PackGate    *modelpack.Gate
	Events      *eventgraph.Store
	Renderer    *egress.RendererEmitter
	WriteBehind *writebehind.Queue
	TraceDir    string
}

// Result is everything one turn produced.
type Result struct {
	TraceID        string
	SessionID      string
	PersonID       string
	Intent         planner.Intent
	Plan           planner.Plan
	ToolResults    []tool.Result
	MemoryResults  []memory.Result
	ResponseText   string
	ROM            rom.ResponseObjectModel
	RendererOK     bool
	RendererStatus int
	TracePath      string
}

type Runner struct {
	deps  Deps
	locks *concurrency.SessionLocks
}

func New(deps Deps) *Runner {
	return &Runner{deps: deps, locks: concurrency.NewSessionLocks()}
}

// Run processes one input event end to end. The returned error is non-nil
// only for the two fatal classes: an unmet model-pack gate (the Result
// still carries a remediation ROM) and schema validation failure.
func (r *Runner) Run(ctx context.Context, evt ingress.InputEvent) (Result, error) {
	r.locks.Acquire(evt.SessionID)
	defer r.locks.Release(evt.SessionID)

	rec := trace.NewRecorder(r.deps.TraceDir, evt.TraceID)
	traceID := rec.TraceID()
	chain := eventgraph.NewChain(traceID, evt.SessionID, evt.PersonID)

	ctx = logger.WithTraceID(ctx, traceID)
	ctx = logger.WithSessionID(ctx, evt.SessionID)
	ctx = logger.WithPersonID(ctx, evt.PersonID)

	res := Result{
		TraceID:   traceID,
		SessionID: evt.SessionID,
		PersonID:  evt.PersonID,
	}
	rawText := evt.Text()

	rec.Emit("pipeline.started", map[string]any{"event_id": evt.EventID, "modality": string(evt.Modality)})
	chain.Emit("pipeline.started", map[string]any{"event_id": evt.EventID})

	// Step 1: model-pack gate. Unmet is fatal with a fixed remediation ROM.
	if r.deps.PackGate != nil && r.deps.PackGate.Enabled() {
		if err := r.deps.PackGate.Check(ctx); err != nil {
			rec.Emit("modelpack.gate.failed", map[string]any{"error": err.Error()})
			chain.Emit("modelpack.gate.failed", map[string]any{"error": err.Error()})
			res.ResponseText = r.deps.PackGate.Remediation()
			res.ROM = rom.Build(traceID, evt.SessionID, evt.PersonID, res.ResponseText, map[string]any{
				"error": "modelpack_missing_or_invalid",
			})
			r.finish(ctx, rec, chain, &res)
			return res, fmt.Errorf("model pack gate: %w", err)
		}
		chain.Emit("modelpack.gate.passed", nil)
	}

	// Step 2: profile snapshot, best-effort.
	snap := r.readSnapshot(ctx, evt.PersonID)
	rec.Emit("context.snapshot.read", map[string]any{"person_id": evt.PersonID, "profile_present": len(snap.Profile) > 0})
	chain.Emit("context.snapshot.read", map[string]any{"profile_present": len(snap.Profile) > 0})

	// Step 3: onboarding or planner. Schema failure here is fatal.
	intent, plan, err := r.deps.Planner.Plan(rawText, evt.Modality, snap.Profile)
	if err != nil {
		rec.Emit("planner.failed", map[string]any{"error": err.Error()})
		chain.Emit("planner.failed", map[string]any{"error": err.Error()})
		r.finish(ctx, rec, chain, &res)
		return res, err
	}
	res.Intent = intent
	res.Plan = plan
	rec.Emit("intent.created", map[string]any{"intent_id": intent.IntentID, "category": intent.Category, "modality": intent.Modality})
	chain.Emit("intent.created", map[string]any{"intent_id": intent.IntentID, "category": intent.Category})
	rec.Emit("plan.created", map[string]any{"plan_id": plan.PlanID, "steps": len(plan.Steps), "tool_calls": len(plan.ToolCalls)})
	chain.Emit("plan.created", map[string]any{"plan_id": plan.PlanID, "tool_calls": len(plan.ToolCalls)})

	// Step 4: tool calls in list order. Failures are per-call.
	caller := tool.Caller{PersonID: evt.PersonID, SessionID: evt.SessionID, TraceID: traceID}
	for _, call := range plan.ToolCalls {
		call = r.recheckPolicy(ctx, call, rawText)
		chain.Emit("tool_call.started", map[string]any{"tool_call_id": call.ToolCallID, "tool_name": call.ToolName})
		tr := r.deps.Tools.Execute(ctx, call, caller)
		res.ToolResults = append(res.ToolResults, tr)
		rec.Emit("tool_call.finished", map[string]any{"tool_call_id": tr.ToolCallID, "ok": tr.OK, "error": tr.Error})
		chain.Emit("tool_call.finished", map[string]any{"tool_call_id": tr.ToolCallID, "ok": tr.OK, "error": tr.Error})
	}

	// Step 5: memory ops in list order.
	for _, op := range plan.MemoryOps {
		chain.Emit("memory_op.started", map[string]any{"op_id": op.OpID, "op": op.Op, "target": op.Target})
		mr := r.deps.Memory.Execute(ctx, op, evt.PersonID)
		res.MemoryResults = append(res.MemoryResults, mr)
		rec.Emit("memory_op.finished", map[string]any{"op_id": mr.OpID, "ok": mr.OK, "error": mr.Error})
		chain.Emit("memory_op.finished", map[string]any{"op_id": mr.OpID, "ok": mr.OK, "error": mr.Error})
	}

	// Step 6: re-read the snapshot so later stages see fresh preferences.
	if len(plan.MemoryOps) > 0 && r.deps.Snapshots != nil && evt.PersonID != "" {
		r.deps.Snapshots.Invalidate(evt.PersonID)
		snap = r.deps.Snapshots.Read(ctx, evt.PersonID)
		chain.Emit("context.snapshot.refreshed", nil)
	}

	// Step 7: response text.
	gen := r.deps.Generator.Generate(ctx, interaction.Turn{
		TraceID:       traceID,
		SessionID:     evt.SessionID,
		PersonID:      evt.PersonID,
		UserText:      rawText,
		Plan:          plan,
		ToolResults:   res.ToolResults,
		MemoryResults: res.MemoryResults,
	})
	res.ResponseText = gen.Text
	if !gen.OK || gen.Text == "" {
		res.ResponseText = interaction.FallbackText(plan)
		if gen.Err != "" {
			rec.Emit("interaction.fallback", map[string]any{"error": gen.Err})
		}
	}
	chain.Emit("interaction.generated", map[string]any{"ok": gen.OK, "provider": gen.Provider})

	// Step 8: build the ROM, exactly once.
	res.ROM = rom.Build(traceID, evt.SessionID, evt.PersonID, res.ResponseText, map[string]any{
		"intent_id":             intent.IntentID,
		"plan_id":               plan.PlanID,
		"requires_confirmation": plan.RequiresConfirmation,
		"renderer_directives":   plan.RendererDirectives,
	})
	chain.Emit("rom.built", map[string]any{"blocks": len(res.ROM.Blocks)})

	// Step 9: renderer emission, best-effort.
	if r.deps.Renderer != nil {
		r.deps.Renderer.Emit(ctx, traceID, evt.SessionID, evt.PersonID, egress.FrameIntentRecognized, map[string]any{
			"intent_id": intent.IntentID,
			"category":  intent.Category,
		})
		ok, status := r.deps.Renderer.Emit(ctx, traceID, evt.SessionID, evt.PersonID, egress.FrameROMRender, res.ROM)
		res.RendererOK = ok
		res.RendererStatus = status
		rec.Emit("renderer.frame.emitted", map[string]any{"ok": ok, "status": status})
		chain.Emit("renderer.frame.emitted", map[string]any{"ok": ok, "status": status})
	}

	// Step 10: write-behind, best-effort. A failed synchronous flush falls
	// back to the background worker.
	if r.deps.WriteBehind != nil && evt.PersonID != "" {
		batch := writebehind.NewLastInteraction(evt.PersonID, evt.SessionID, traceID, rawText)
		if err := r.deps.WriteBehind.FlushSync(ctx, batch); err != nil {
			slog.Debug("Synchronous write-behind flush failed, queueing", "error", err)
			r.deps.WriteBehind.Enqueue(batch)
		}
		chain.Emit("write_behind.flushed", map[string]any{"batch_id": batch.BatchID})
	}

	// Step 11: trace artifact and event graph.
	r.finish(ctx, rec, chain, &res)
	return res, nil
}

// recheckPolicy gives the policy service the final word on calls the
// planner allowed. A denial demotes the call so the tool runtime's
// authorization invariant rejects it; the rest of the plan proceeds.
func (r *Runner) recheckPolicy(ctx context.Context, call planner.ToolCall, rawText string) planner.ToolCall {
	if r.deps.PolicyGate == nil || call.Authorization.PolicyDecision != planner.DecisionAllow {
		return call
	}
	decision := r.deps.PolicyGate.Check(ctx, call.ToolName, map[string]any{
		"text": rawText,
		"args": call.Args,
	})
	if !decision.Allowed {
		call.Authorization = planner.Authorization{
			PolicyDecision: planner.DecisionDeny,
			Reason:         decision.Reason,
		}
	} else if decision.RequireConfirmation {
		call.Authorization = planner.Authorization{
			PolicyDecision: planner.DecisionConfirm,
			Reason:         decision.Reason,
		}
	}
	return call
}

func (r *Runner) readSnapshot(ctx context.Context, personID string) snapshot.Snapshot {
	if r.deps.Snapshots == nil || personID == "" {
		return snapshot.Snapshot{Profile: map[string]any{}}
	}
	return r.deps.Snapshots.Read(ctx, personID)
}

func (r *Runner) finish(_ context.Context, rec *trace.Recorder, chain *eventgraph.Chain, res *Result) {
	chain.Emit("pipeline.finished", map[string]any{"response_len": len(res.ResponseText)})
	if r.deps.Events != nil {
		if _, err := r.deps.Events.Append(chain.Events()...); err != nil {
			slog.Warn("Event graph append failed", "trace_id", res.TraceID, "error", err)
		}
	}
	path, err := rec.Write()
	if err != nil {
		slog.Warn("Trace write failed", "trace_id", res.TraceID, "error", err)
		return
	}
	res.TracePath = path
}
