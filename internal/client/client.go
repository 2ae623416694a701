// Package client provides the shared HTTP layer for the downstream platform
// services (context store, policy evaluator, inference, actuation proxy).
// Every call returns a Result value instead of an error so pipeline stages
// can branch on availability without unwinding the turn.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/harunnryd/musubi/internal/logger"
)

// Result is the outcome of one downstream call. OK is false on transport
// failure or when retries were exhausted; Status is zero when no response
// was received at all.
type Result struct {
	OK     bool
	Status int
	Body   map[string]any
}

// Success reports a completed call with a 2xx/3xx status.
func (r Result) Success() bool { return r.OK && r.Status < 400 }

// Service is an HTTP client for a single downstream service, with a bounded
// per-call timeout and capped exponential-backoff retries on transport
// failures and 5xx responses.
type Service struct {
	name       string
	baseURL    string
	hc         *http.Client
	maxRetries uint64
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.hc.Timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = uint64(n)
		}
	}
}

// New builds a Service for host:port. The name is used only for logging.
func New(name, host, port string, opts ...Option) *Service {
	s := &Service{
		name:       name,
		baseURL:    fmt.Sprintf("http://%s:%s", host, port),
		hc:         &http.Client{Timeout: 2 * time.Second},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, path string, headers map[string]string) Result {
	return s.do(ctx, http.MethodGet, path, nil, headers)
}

func (s *Service) Post(ctx context.Context, path string, payload any, headers map[string]string) Result {
	return s.do(ctx, http.MethodPost, path, payload, headers)
}

func (s *Service) do(ctx context.Context, method, path string, payload any, headers map[string]string) Result {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			slog.Error("Marshal request payload failed", "service", s.name, "path", path, "error", err)
			return Result{}
		}
	}

	var out Result
	attempt := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := s.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			out = decode(resp.StatusCode, data)
			return fmt.Errorf("%s %s: status %d", s.name, path, resp.StatusCode)
		}

		out = decode(resp.StatusCode, data)
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(100*time.Millisecond),
			backoff.WithMaxInterval(2*time.Second),
		), s.maxRetries),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil {
		slog.Debug("Downstream call failed",
			"service", s.name, "method", method, "path", path,
			"trace_id", logger.GetTraceID(ctx), "error", err)
		// A 5xx captured on the final attempt is still a completed exchange.
		if out.Status >= 500 {
			return out
		}
		return Result{}
	}
	return out
}

func decode(status int, data []byte) Result {
	res := Result{OK: true, Status: status}
	if len(data) > 0 {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err == nil {
			res.Body = m
		}
	}
	return res
}

// Clients bundles the downstream services the pipeline talks to. Actuation
// is optional and nil when the integration is not configured.
type Clients struct {
	Context   *Service
	Policy    *Service
	Inference *Service
	Actuation *Service
}
