// Package writebehind persists small context updates asynchronously. The
// queue is bounded and drops new batches on overload: losing a last-seen
// marker is preferable to stalling a turn.
package writebehind

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/musubi/internal/client"
)

const defaultQueueSize = 1000

// Update is one store mutation inside a batch. Only kv.put is understood;
// other ops are skipped during flush.
type Update struct {
	Op    string         `json:"op"`
	Tier  string         `json:"tier"`
	Items map[string]any `json:"items"`
}

// Batch groups updates queued together for one person.
type Batch struct {
	BatchID        string   `json:"batch_id"`
	PersonID       string   `json:"person_id"`
	SessionID      string   `json:"session_id"`
	QueuedAtUnixMS int64    `json:"queued_at_unix_ms"`
	Updates        []Update `json:"updates"`
}

// Queue is a bounded in-process write-behind queue with one background
// worker. The same flush logic serves both the worker and synchronous
// per-turn flushes.
type Queue struct {
	store *client.Service
	ch    chan Batch
	stop  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewQueue(store *client.Service, size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		store: store,
		ch:    make(chan Batch, size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the background worker. Safe to call more than once.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

// Stop signals the worker and waits for it to drain the current batch.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		case batch := <-q.ch:
			q.flushGuarded(batch)
		}
	}
}

// flushGuarded keeps a panicking flush from killing the worker.
func (q *Queue) flushGuarded(batch Batch) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Write-behind flush panicked", "batch_id", batch.BatchID, "panic", r)
		}
	}()
	if err := q.FlushSync(context.Background(), batch); err != nil {
		slog.Warn("Write-behind flush failed", "batch_id", batch.BatchID, "error", err)
	}
}

// Enqueue hands a batch to the worker. It never blocks: a full queue drops
// the new batch and reports false.
func (q *Queue) Enqueue(batch Batch) bool {
	select {
	case q.ch <- batch:
		return true
	default:
		slog.Warn("Write-behind queue full, dropping batch", "batch_id", batch.BatchID)
		return false
	}
}

// FlushSync pushes a batch's updates to the context store immediately so a
// turn can wait for its own write.
func (q *Queue) FlushSync(ctx context.Context, batch Batch) error {
	if q.store == nil {
		return fmt.Errorf("context store not configured")
	}
	for _, upd := range batch.Updates {
		if upd.Op != "kv.put" {
			continue
		}
		tier := upd.Tier
		if tier == "" {
			tier = "B"
		}
		res := q.store.Post(ctx, "/kv/put", map[string]any{
			"person_id": batch.PersonID,
			"tier":      tier,
			"items":     upd.Items,
		}, nil)
		if !res.Success() {
			return fmt.Errorf("kv.put failed status=%d", res.Status)
		}
		if ok, _ := res.Body["ok"].(bool); !ok {
			return fmt.Errorf("kv.put rejected by store")
		}
	}
	return nil
}

// NewLastInteraction builds the standard batch recording the last turn for
// a person. Text is capped so the stored marker stays small.
func NewLastInteraction(personID, sessionID, traceID, text string) Batch {
	if len(text) > 500 {
		text = text[:500]
	}
	now := time.Now().UnixMilli()
	return Batch{
		BatchID:        ulid.Make().String(),
		PersonID:       personID,
		SessionID:      sessionID,
		QueuedAtUnixMS: now,
		Updates: []Update{{
			Op:   "kv.put",
			Tier: "B",
			Items: map[string]any{
				personID + ":profile:last_interaction": map[string]any{
					"trace_id":   traceID,
					"session_id": sessionID,
					"text":       text,
					"ts_unix_ms": now,
				},
			},
		}},
	}
}
