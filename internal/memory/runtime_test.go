package memory

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/planner"
)

// fakeStore mimics the context service profile endpoints with an in-memory
// document per person.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]map[string]any
	writes   int
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]map[string]any{}}
}

func (f *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		personID := strings.TrimPrefix(r.URL.Path, "/profile/")
		switch r.Method {
		case http.MethodGet:
			prof, ok := f.profiles[personID]
			if !ok {
				prof = map[string]any{}
			}
			json.NewEncoder(w).Encode(map[string]any{"ok": ok, "profile": prof})
		case http.MethodPost:
			if f.failNext {
				f.failNext = false
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			var payload struct {
				Profile map[string]any `json:"profile"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			f.profiles[personID] = payload.Profile
			f.writes++
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	})
}

func runtimeFor(t *testing.T, store *fakeStore) *Runtime {
	t.Helper()
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return NewRuntime(client.New("context", host, port, client.WithMaxRetries(0)))
}

func upsertOp(target string, payload map[string]any) planner.MemoryOp {
	return planner.MemoryOp{
		OpID:           "op-00000001",
		Op:             planner.OpUpsert,
		Target:         target,
		Payload:        payload,
		ExpectedEffect: "write",
	}
}

func TestUpsertMergesAndReplaces(t *testing.T) {
	store := newFakeStore()
	store.profiles["p1"] = map[string]any{
		"preferred_name": "Ada",
		"onboarding":     map[string]any{"completed": false, "stage": "verbosity"},
	}
	rt := runtimeFor(t, store)

	res := rt.Execute(context.Background(), upsertOp(planner.TargetProfile, map[string]any{
		"onboarding": map[string]any{"stage": "visual_density", "awaiting": "visual_density"},
	}), "p1")

	require.True(t, res.OK)
	got := store.profiles["p1"]
	assert.Equal(t, "Ada", got["preferred_name"])
	ob := got["onboarding"].(map[string]any)
	assert.Equal(t, "visual_density", ob["stage"])
	assert.Equal(t, false, ob["completed"], "sibling keys survive a nested merge")
}

func TestUpsertIdempotent(t *testing.T) {
	store := newFakeStore()
	rt := runtimeFor(t, store)
	op := upsertOp(planner.TargetProfile, map[string]any{"preferred_name": "Grace"})

	res := rt.Execute(context.Background(), op, "p1")
	require.True(t, res.OK)
	first := store.profiles["p1"]

	res = rt.Execute(context.Background(), op, "p1")
	require.True(t, res.OK)
	assert.Equal(t, first, store.profiles["p1"])
}

func TestUpsertPreferencesTarget(t *testing.T) {
	store := newFakeStore()
	store.profiles["p1"] = map[string]any{"preferences": map[string]any{"verbosity": "normal"}}
	rt := runtimeFor(t, store)

	res := rt.Execute(context.Background(), upsertOp(planner.TargetPreferences, map[string]any{"visual_density": "dense"}), "p1")
	require.True(t, res.OK)

	prefs := store.profiles["p1"]["preferences"].(map[string]any)
	assert.Equal(t, "normal", prefs["verbosity"])
	assert.Equal(t, "dense", prefs["visual_density"])
}

func TestQueryReturnsStoredState(t *testing.T) {
	store := newFakeStore()
	store.profiles["p1"] = map[string]any{
		"preferred_name": "Ada",
		"preferences":    map[string]any{"verbosity": "minimal"},
	}
	rt := runtimeFor(t, store)

	res := rt.Execute(context.Background(), planner.MemoryOp{
		OpID: "op-00000002", Op: planner.OpQuery, Target: planner.TargetPreferences,
		Payload: map[string]any{}, ExpectedEffect: "read",
	}, "p1")

	require.True(t, res.OK)
	prefs := res.Result["preferences"].(map[string]any)
	assert.Equal(t, "minimal", prefs["verbosity"])
	assert.Zero(t, store.writes, "query must not write")
}

func TestDeleteRemovesKeys(t *testing.T) {
	store := newFakeStore()
	store.profiles["p1"] = map[string]any{"preferred_name": "Ada", "goals": "piano"}
	rt := runtimeFor(t, store)

	res := rt.Execute(context.Background(), planner.MemoryOp{
		OpID: "op-00000003", Op: planner.OpDelete, Target: planner.TargetProfile,
		Payload: map[string]any{"keys": []any{"goals"}}, ExpectedEffect: "write",
	}, "p1")

	require.True(t, res.OK)
	_, hasGoals := store.profiles["p1"]["goals"]
	assert.False(t, hasGoals)
	assert.Equal(t, "Ada", store.profiles["p1"]["preferred_name"])
}

func TestDeleteMalformedKeys(t *testing.T) {
	rt := runtimeFor(t, newFakeStore())

	res := rt.Execute(context.Background(), planner.MemoryOp{
		OpID: "op-00000004", Op: planner.OpDelete, Target: planner.TargetProfile,
		Payload: map[string]any{"keys": "goals"}, ExpectedEffect: "write",
	}, "p1")

	assert.False(t, res.OK)
	assert.Equal(t, "invalid_args", res.Error)
}

func TestWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.failNext = true
	rt := runtimeFor(t, store)

	res := rt.Execute(context.Background(), upsertOp(planner.TargetProfile, map[string]any{"a": "b"}), "p1")
	assert.False(t, res.OK)
	assert.Equal(t, "write_failed", res.Error)
}

func TestUnavailableWithoutStoreOrPerson(t *testing.T) {
	rt := NewRuntime(nil)
	res := rt.Execute(context.Background(), upsertOp(planner.TargetProfile, map[string]any{"a": "b"}), "p1")
	assert.Equal(t, "not_available", res.Error)

	rt = runtimeFor(t, newFakeStore())
	res = rt.Execute(context.Background(), upsertOp(planner.TargetProfile, map[string]any{"a": "b"}), "")
	assert.Equal(t, "not_available", res.Error)
}

func TestUnknownOpAndTarget(t *testing.T) {
	rt := runtimeFor(t, newFakeStore())

	res := rt.Execute(context.Background(), planner.MemoryOp{
		OpID: "op-00000005", Op: "compact", Target: planner.TargetProfile,
		Payload: map[string]any{}, ExpectedEffect: "write",
	}, "p1")
	assert.Equal(t, "unknown_op", res.Error)

	res = rt.Execute(context.Background(), planner.MemoryOp{
		OpID: "op-00000006", Op: planner.OpQuery, Target: "episodic",
		Payload: map[string]any{}, ExpectedEffect: "read",
	}, "p1")
	assert.Equal(t, "not_available", res.Error)
}
