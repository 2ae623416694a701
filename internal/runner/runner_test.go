package runner

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/eventgraph"
	"github.com/harunnryd/musubi/internal/ingress"
	"github.com/harunnryd/musubi/internal/interaction"
	"github.com/harunnryd/musubi/internal/memory"
	"github.com/harunnryd/musubi/internal/modelpack"
	"github.com/harunnryd/musubi/internal/planner"
	"github.com/harunnryd/musubi/internal/policy"
	"github.com/harunnryd/musubi/internal/schema"
	"github.com/harunnryd/musubi/internal/snapshot"
	"github.com/harunnryd/musubi/internal/tool"
)

// contextService serves profile documents the way the context store does.
func contextService(t *testing.T, profiles map[string]map[string]any) *client.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/profile/") && r.Method == http.MethodGet:
			id := strings.TrimPrefix(r.URL.Path, "/profile/")
			prof, ok := profiles[id]
			if prof == nil {
				prof = map[string]any{}
			}
			json.NewEncoder(w).Encode(map[string]any{"ok": ok, "profile": prof})
		case strings.HasPrefix(r.URL.Path, "/profile/") && r.Method == http.MethodPost:
			id := strings.TrimPrefix(r.URL.Path, "/profile/")
			var payload struct {
				Profile map[string]any `json:"profile"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			profiles[id] = payload.Profile
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case r.URL.Path == "/kv/put":
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": false})
		}
	}))
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return client.New("context", host, port, client.WithMaxRetries(0))
}

func newRunner(t *testing.T, ctxSvc, actuation *client.Service, allowed []string) (*Runner, *eventgraph.Store) {
	t.Helper()
	validator, err := schema.Load("")
	require.NoError(t, err)

	events, err := eventgraph.NewStore(t.TempDir(), "events.jsonl", true)
	require.NoError(t, err)

	return New(Deps{
		Planner:    planner.New(validator, allowed),
		PolicyGate: policy.NewGate(nil, policy.FailClosed),
		Tools:      tool.NewRuntime(actuation),
		Memory:     memory.NewRuntime(ctxSvc),
		Generator:  interaction.NewGenerator(nil),
		Snapshots:  snapshot.NewReader(ctxSvc, snapshot.NopCache{}),
		Events:     events,
		TraceDir:   t.TempDir(),
	}), events
}

func textEvent(text, personID string) ingress.InputEvent {
	return ingress.NewInputEvent("test", ingress.ModalityText, text, personID, "session-test")
}

func onboardedProfiles() map[string]map[string]any {
	return map[string]map[string]any{
		"p1": {"onboarding": map[string]any{"completed": true, "stage": "done"}},
	}
}

func TestRunFirstTurnStartsOnboarding(t *testing.T) {
	ctxSvc := contextService(t, map[string]map[string]any{})
	r, _ := newRunner(t, ctxSvc, nil, []string{"example.com"})

	res, err := r.Run(context.Background(), textEvent("hi", "p1"))
	require.NoError(t, err)

	assert.Empty(t, res.Plan.ToolCalls)
	require.Len(t, res.Plan.MemoryOps, 1)
	assert.Equal(t, "What name should I use to address you?", res.ResponseText)
	require.Len(t, res.ROM.Blocks, 1)
	assert.Equal(t, res.ResponseText, res.ROM.Blocks[0].Text)

	// The stage has not advanced past awaiting=name yet.
	var prof map[string]any
	{
		resGet := ctxSvc.Get(context.Background(), "/profile/p1", nil)
		prof = resGet.Body["profile"].(map[string]any)
	}
	ob := prof["onboarding"].(map[string]any)
	assert.Equal(t, "name", ob["awaiting"])

	// Supplying a name on the next turn advances to verbosity.
	res, err = r.Run(context.Background(), textEvent("Ada", "p1"))
	require.NoError(t, err)
	assert.Equal(t, "How verbose should I be: minimal, normal, or detailed?", res.ResponseText)
}

func TestRunAllowlistedBrowseWithoutActuation(t *testing.T) {
	ctxSvc := contextService(t, onboardedProfiles())
	r, _ := newRunner(t, ctxSvc, nil, []string{"example.com"})

	res, err := r.Run(context.Background(), textEvent("browse https://example.com", "p1"))
	require.NoError(t, err)

	require.Len(t, res.Plan.ToolCalls, 1)
	assert.Equal(t, planner.DecisionAllow, res.Plan.ToolCalls[0].Authorization.PolicyDecision)
	assert.False(t, res.Plan.RequiresConfirmation)

	require.Len(t, res.ToolResults, 1)
	assert.False(t, res.ToolResults[0].OK)
	assert.Equal(t, "not_available", res.ToolResults[0].Error)

	// Inference is not wired: deterministic fallback text.
	assert.Equal(t, interaction.FallbackDone, res.ResponseText)
}

func TestRunUnlistedBrowseRequiresConfirmation(t *testing.T) {
	ctxSvc := contextService(t, onboardedProfiles())
	r, _ := newRunner(t, ctxSvc, nil, []string{"example.com"})

	res, err := r.Run(context.Background(), textEvent("browse https://google.com", "p1"))
	require.NoError(t, err)

	require.Len(t, res.Plan.ToolCalls, 1)
	assert.Equal(t, planner.DecisionConfirm, res.Plan.ToolCalls[0].Authorization.PolicyDecision)
	assert.True(t, res.Plan.RequiresConfirmation)

	require.Len(t, res.ToolResults, 1)
	assert.Equal(t, "not_authorized", res.ToolResults[0].Error)
}

func TestRunActuationUnavailableNormalized(t *testing.T) {
	actuationSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"detail": "vdi_unavailable"})
	}))
	defer actuationSrv.Close()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(actuationSrv.URL, "http://"))
	require.NoError(t, err)
	actuation := client.New("actuation", host, port, client.WithMaxRetries(0))

	ctxSvc := contextService(t, onboardedProfiles())
	r, _ := newRunner(t, ctxSvc, actuation, []string{"example.com"})

	res, err := r.Run(context.Background(), textEvent("browse https://example.com", "p1"))
	require.NoError(t, err)

	require.Len(t, res.ToolResults, 1)
	assert.Equal(t, "not_available", res.ToolResults[0].Error)
}

func TestRunEmitsCausallyChainedEvents(t *testing.T) {
	ctxSvc := contextService(t, onboardedProfiles())
	r, events := newRunner(t, ctxSvc, nil, []string{"example.com"})

	res, err := r.Run(context.Background(), textEvent("hello", "p1"))
	require.NoError(t, err)

	got, err := events.Query(eventgraph.Query{TraceID: res.TraceID})
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.Equal(t, "pipeline.started", got[0].EventType)
	assert.Equal(t, "pipeline.finished", got[len(got)-1].EventType)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].EventID, got[i].CausationID, "event %d must chain to its predecessor", i)
	}
}

func TestRunWritesTraceArtifact(t *testing.T) {
	ctxSvc := contextService(t, onboardedProfiles())
	r, _ := newRunner(t, ctxSvc, nil, nil)

	res, err := r.Run(context.Background(), textEvent("hello", "p1"))
	require.NoError(t, err)
	require.NotEmpty(t, res.TracePath)

	data, err := os.ReadFile(res.TracePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), res.TraceID)
	assert.Contains(t, string(data), "plan.created")
}

func TestRunModelPackGateFailsTurn(t *testing.T) {
	inferenceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"packs": []any{}})
	}))
	defer inferenceSrv.Close()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(inferenceSrv.URL, "http://"))
	require.NoError(t, err)
	inference := client.New("inference", host, port, client.WithMaxRetries(0))

	ctxSvc := contextService(t, onboardedProfiles())
	r, _ := newRunner(t, ctxSvc, nil, nil)
	r.deps.PackGate = modelpack.NewGate(inference, "assistant-core@1.0.0")

	res, err := r.Run(context.Background(), textEvent("hello", "p1"))
	require.Error(t, err)

	// The turn still ends with a remediation ROM.
	require.Len(t, res.ROM.Blocks, 1)
	assert.Contains(t, res.ROM.Blocks[0].Text, "assistant-core@1.0.0")
	assert.Empty(t, res.Plan.PlanID, "planning must not run when the gate fails")
}

func TestRunWithoutPersonSkipsContext(t *testing.T) {
	r, _ := newRunner(t, nil, nil, nil)

	res, err := r.Run(context.Background(), textEvent("hi", ""))
	require.NoError(t, err)

	// No profile means onboarding starts; the memory op fails gracefully.
	require.Len(t, res.MemoryResults, 1)
	assert.Equal(t, "not_available", res.MemoryResults[0].Error)
	assert.Equal(t, "What name should I use to address you?", res.ResponseText)
}
