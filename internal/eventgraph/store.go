package eventgraph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

const (
	defaultQueryLimit = 500
	maxQueryLimit     = 5000
)

// Store appends events to a single JSONL file. A file lock guards the
// append so multiple processes can share one graph file; the mutex guards
// in-process concurrency.
type Store struct {
	path     string
	redact   bool
	fileLock *flock.Flock
	mu       sync.Mutex
}

// NewStore creates the directory if needed and returns a store for
// dir/file. With redact enabled, sensitive values are replaced before they
// ever reach disk.
func NewStore(dir, file string, redact bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event graph dir: %w", err)
	}
	path := filepath.Join(dir, file)
	return &Store{
		path:     path,
		redact:   redact,
		fileLock: flock.New(path + ".lock"),
	}, nil
}

// Append writes one line per event and returns the number written.
func (s *Store) Append(events ...Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileLock.Lock(); err != nil {
		return 0, fmt.Errorf("lock event graph: %w", err)
	}
	defer s.fileLock.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open event graph: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, evt := range events {
		if s.redact {
			evt = redactEvent(evt)
		}
		line, err := json.Marshal(evt)
		if err != nil {
			return 0, fmt.Errorf("encode event %s: %w", evt.EventID, err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("append event graph: %w", err)
	}
	return len(events), nil
}

// Query selects matching events. Filters with empty values are ignored.
type Query struct {
	TraceID   string
	SessionID string
	PersonID  string
	Limit     int
}

// Query scans the file line by line, stopping once limit matches are
// collected, then orders the result by (ts_unix_ms, ts_monotonic_ns).
// Corrupt lines are skipped, not fatal.
func (s *Store) Query(q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("open event graph: %w", err)
	}
	defer f.Close()

	out := make([]Event, 0, 64)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}
		if q.TraceID != "" && evt.TraceID != q.TraceID {
			continue
		}
		if q.SessionID != "" && evt.SessionID != q.SessionID {
			continue
		}
		if q.PersonID != "" && evt.PersonID != q.PersonID {
			continue
		}
		out = append(out, evt)
		if len(out) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event graph: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TSUnixMS != out[j].TSUnixMS {
			return out[i].TSUnixMS < out[j].TSUnixMS
		}
		return out[i].TSMonotonicNS < out[j].TSMonotonicNS
	})
	return out, nil
}
