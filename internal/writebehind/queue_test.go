package writebehind

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/musubi/internal/client"
)

type kvRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (k *kvRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		k.mu.Lock()
		k.payloads = append(k.payloads, payload)
		k.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
}

func (k *kvRecorder) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.payloads)
}

func storeFor(t *testing.T, h http.Handler) *client.Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return client.New("context", host, port, client.WithMaxRetries(0))
}

func TestFlushSyncPostsKVPut(t *testing.T) {
	rec := &kvRecorder{}
	q := NewQueue(storeFor(t, rec.handler()), 10)

	batch := NewLastInteraction("p1", "s1", "t1", "browse https://example.com")
	require.NoError(t, q.FlushSync(context.Background(), batch))

	require.Equal(t, 1, rec.count())
	payload := rec.payloads[0]
	assert.Equal(t, "p1", payload["person_id"])
	assert.Equal(t, "B", payload["tier"])
	items := payload["items"].(map[string]any)
	item := items["p1:profile:last_interaction"].(map[string]any)
	assert.Equal(t, "t1", item["trace_id"])
	assert.Equal(t, "browse https://example.com", item["text"])
}

func TestLastInteractionTextCapped(t *testing.T) {
	long := strings.Repeat("x", 1200)
	batch := NewLastInteraction("p1", "s1", "t1", long)
	item := batch.Updates[0].Items["p1:profile:last_interaction"].(map[string]any)
	assert.Len(t, item["text"], 500)
}

func TestBackgroundWorkerDrains(t *testing.T) {
	rec := &kvRecorder{}
	q := NewQueue(storeFor(t, rec.handler()), 10)
	q.Start()
	defer q.Stop()

	require.True(t, q.Enqueue(NewLastInteraction("p1", "s1", "t1", "hello")))
	require.True(t, q.Enqueue(NewLastInteraction("p1", "s1", "t2", "again")))

	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	// No worker running: the channel fills and new batches are dropped.
	q := NewQueue(nil, 2)

	assert.True(t, q.Enqueue(NewLastInteraction("p", "s", "t1", "a")))
	assert.True(t, q.Enqueue(NewLastInteraction("p", "s", "t2", "b")))
	assert.False(t, q.Enqueue(NewLastInteraction("p", "s", "t3", "c")))
}

func TestFlushSyncStoreRejection(t *testing.T) {
	q := NewQueue(storeFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false})
	})), 10)

	err := q.FlushSync(context.Background(), NewLastInteraction("p1", "s1", "t1", "x"))
	assert.Error(t, err)
}

func TestFlushSyncSkipsUnknownOps(t *testing.T) {
	rec := &kvRecorder{}
	q := NewQueue(storeFor(t, rec.handler()), 10)

	err := q.FlushSync(context.Background(), Batch{
		BatchID:  "b1",
		PersonID: "p1",
		Updates:  []Update{{Op: "kv.delete", Items: map[string]any{"k": "v"}}},
	})
	require.NoError(t, err)
	assert.Zero(t, rec.count())
}
