package snapshot

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/musubi/internal/client"
)

func contextStore(t *testing.T, hits *atomic.Int64) *client.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/profile/"):
			json.NewEncoder(w).Encode(map[string]any{
				"ok":      true,
				"profile": map[string]any{"preferred_name": "Ada"},
			})
		case strings.HasPrefix(r.URL.Path, "/dashboard/"):
			json.NewEncoder(w).Encode(map[string]any{
				"ok":        true,
				"dashboard": map[string]any{"cards": []any{}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return client.New("context", host, port, client.WithMaxRetries(0))
}

func TestReadFetchesProfileAndDashboard(t *testing.T) {
	r := NewReader(contextStore(t, nil), nil)

	snap := r.Read(context.Background(), "p1")
	assert.Equal(t, "Ada", snap.Profile.PreferredName())
	assert.NotNil(t, snap.Dashboard)
	assert.NotZero(t, snap.FetchedAtUnixMS)
}

func TestReadWithoutStore(t *testing.T) {
	r := NewReader(nil, nil)
	snap := r.Read(context.Background(), "p1")
	assert.NotNil(t, snap.Profile)
	assert.Empty(t, snap.Profile)
}

func TestTTLCacheServesWithinTTL(t *testing.T) {
	var hits atomic.Int64
	now := time.Now()
	clock := func() time.Time { return now }
	r := NewReader(contextStore(t, &hits), NewTTLCache(time.Minute, clock))

	r.Read(context.Background(), "p1")
	first := hits.Load()
	r.Read(context.Background(), "p1")
	assert.Equal(t, first, hits.Load(), "second read must come from cache")

	// Advance past the TTL: the next read refetches.
	now = now.Add(2 * time.Minute)
	r.Read(context.Background(), "p1")
	assert.Greater(t, hits.Load(), first)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var hits atomic.Int64
	r := NewReader(contextStore(t, &hits), NewTTLCache(time.Hour, nil))

	r.Read(context.Background(), "p1")
	first := hits.Load()

	r.Invalidate("p1")
	r.Read(context.Background(), "p1")
	assert.Greater(t, hits.Load(), first)
}

func TestNopCacheAlwaysFetches(t *testing.T) {
	var hits atomic.Int64
	r := NewReader(contextStore(t, &hits), NopCache{})

	r.Read(context.Background(), "p1")
	first := hits.Load()
	r.Read(context.Background(), "p1")
	assert.Greater(t, hits.Load(), first)
}
