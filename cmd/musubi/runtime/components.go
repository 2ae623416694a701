// Package runtime assembles the pipeline components from resolved
// configuration. Downstream services with an empty host are wired as nil,
// which the pipeline treats as the integration being absent.
package runtime

import (
	"fmt"
	"time"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/config"
	"github.com/harunnryd/musubi/internal/egress"
	"github.com/harunnryd/musubi/internal/eventgraph"
	"github.com/harunnryd/musubi/internal/interaction"
	"github.com/harunnryd/musubi/internal/memory"
	"github.com/harunnryd/musubi/internal/modelpack"
	"github.com/harunnryd/musubi/internal/planner"
	"github.com/harunnryd/musubi/internal/policy"
	"github.com/harunnryd/musubi/internal/runner"
	"github.com/harunnryd/musubi/internal/schema"
	"github.com/harunnryd/musubi/internal/snapshot"
	"github.com/harunnryd/musubi/internal/tool"
	"github.com/harunnryd/musubi/internal/writebehind"
)

// Components holds everything one process needs to run turns. Stop flushes
// and shuts down background workers.
type Components struct {
	Runner *runner.Runner
	Events *eventgraph.Store

	queue *writebehind.Queue
}

// Build wires all pipeline components from cfg.
func Build(cfg *config.Config) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	timeout, err := config.DurationOrDefault(cfg.Clients.Timeout, config.DefaultClientTimeout)
	if err != nil {
		return nil, fmt.Errorf("clients.timeout: %w", err)
	}
	opts := []client.Option{
		client.WithTimeout(timeout),
		client.WithMaxRetries(cfg.Clients.MaxRetries),
	}

	newService := func(name string, ep config.EndpointConfig) *client.Service {
		if !ep.Configured() {
			return nil
		}
		return client.New(name, ep.Host, ep.Port, opts...)
	}

	contextSvc := newService("context", cfg.Clients.Context)
	policySvc := newService("policy", cfg.Clients.Policy)
	inferenceSvc := newService("inference", cfg.Clients.Inference)
	actuationSvc := newService("actuation", cfg.Clients.Actuation)

	validator, err := schema.Load(cfg.Schema.Dir)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	cacheTTL, err := config.DurationOrDefault(cfg.Snapshot.CacheTTL, config.DefaultSnapshotCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("snapshot.cache_ttl: %w", err)
	}
	var cache snapshot.Cache = snapshot.NopCache{}
	if cacheTTL > 0 {
		cache = snapshot.NewTTLCache(cacheTTL, time.Now)
	}

	var events *eventgraph.Store
	if cfg.EventGraph.Enabled {
		dir, err := config.ExpandPath(cfg.EventGraph.Dir)
		if err != nil {
			return nil, fmt.Errorf("event_graph.dir: %w", err)
		}
		events, err = eventgraph.NewStore(dir, cfg.EventGraph.File, cfg.EventGraph.Redact)
		if err != nil {
			return nil, fmt.Errorf("open event graph: %w", err)
		}
	}

	var renderer *egress.RendererEmitter
	if cfg.Renderer.URL != "" {
		renderer = egress.NewRendererEmitter(cfg.Renderer.URL)
	}

	traceDir, err := config.ExpandPath(cfg.Trace.Dir)
	if err != nil {
		return nil, fmt.Errorf("trace.dir: %w", err)
	}

	queue := writebehind.NewQueue(contextSvc, cfg.WriteBehind.QueueSize)
	queue.Start()

	deps := runner.Deps{
		Planner:     planner.New(validator, cfg.VDI.Domains()),
		PolicyGate:  policy.NewGate(policySvc, cfg.Policy.FailMode),
		Tools:       tool.NewRuntime(actuationSvc),
		Memory:      memory.NewRuntime(contextSvc),
		Generator:   interaction.NewGenerator(inferenceSvc),
		Snapshots:   snapshot.NewReader(contextSvc, cache),
		PackGate:    modelpack.NewGate(inferenceSvc, cfg.ModelPack.Required),
		Events:      events,
		Renderer:    renderer,
		WriteBehind: queue,
		TraceDir:    traceDir,
	}

	return &Components{
		Runner: runner.New(deps),
		Events: events,
		queue:  queue,
	}, nil
}

// Stop drains background workers. Safe to call more than once.
func (c *Components) Stop() {
	if c == nil {
		return
	}
	if c.queue != nil {
		c.queue.Stop()
	}
}
