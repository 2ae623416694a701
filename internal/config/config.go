package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Clients     ClientsConfig     `koanf:"clients"`
	Schema      SchemaConfig      `koanf:"schema"`
	ModelPack   ModelPackConfig   `koanf:"modelpack"`
	VDI         VDIConfig         `koanf:"vdi"`
	Policy      PolicyConfig      `koanf:"policy"`
	EventGraph  EventGraphConfig  `koanf:"event_graph"`
	Renderer    RendererConfig    `koanf:"renderer"`
	Trace       TraceConfig       `koanf:"trace"`
	WriteBehind WriteBehindConfig `koanf:"write_behind"`
	Snapshot    SnapshotConfig    `koanf:"snapshot"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
}

// EndpointConfig addresses one downstream service. An empty host disables the
// client, which the pipeline treats as the integration being absent.
type EndpointConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
}

func (e EndpointConfig) Configured() bool { return strings.TrimSpace(e.Host) != "" }

type ClientsConfig struct {
	Context    EndpointConfig `koanf:"context"`
	Policy     EndpointConfig `koanf:"policy"`
	Inference  EndpointConfig `koanf:"inference"`
	Actuation  EndpointConfig `koanf:"actuation"`
	Timeout    string         `koanf:"timeout"`
	MaxRetries int            `koanf:"max_retries"`
}

type SchemaConfig struct {
	// Dir overrides the embedded schema documents when set.
	Dir string `koanf:"dir"`
}

type ModelPackConfig struct {
	// Required is a "pack_id@version" requirement. Empty disables the gate.
	Required string `koanf:"required"`
}

type VDIConfig struct {
	// AllowedDomains is a comma-separated hostname allow-list for open_url.
	AllowedDomains string `koanf:"allowed_domains"`
}

type PolicyConfig struct {
	// FailMode is "fail_closed" (default) or "fail_open".
	FailMode string `koanf:"fail_mode"`
}

type EventGraphConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	File    string `koanf:"file"`
	Redact  bool   `koanf:"redact"`
}

type RendererConfig struct {
	URL string `koanf:"url"`
}

type TraceConfig struct {
	Dir string `koanf:"dir"`
}

type WriteBehindConfig struct {
	QueueSize int `koanf:"queue_size"`
}

type SnapshotConfig struct {
	CacheTTL string `koanf:"cache_ttl"`
}

const (
	DefaultLogLevel             = "info"
	DefaultContextHost          = "context"
	DefaultContextPort          = "8081"
	DefaultPolicyHost           = "policy"
	DefaultPolicyPort           = "8083"
	DefaultInferenceHost        = "inference"
	DefaultInferencePort        = "8087"
	DefaultClientTimeout        = "2s"
	DefaultClientMaxRetries     = 3
	DefaultVDIAllowedDomains    = "example.com"
	DefaultPolicyFailMode       = "fail_closed"
	DefaultEventGraphEnabled    = true
	DefaultEventGraphDir        = "event_graph"
	DefaultEventGraphFile       = "events.jsonl"
	DefaultEventGraphRedact     = true
	DefaultTraceDir             = "traces"
	DefaultWriteBehindQueueSize = 1000
	DefaultSnapshotCacheTTL     = "0s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.log_level":        DefaultLogLevel,
		"clients.context.host":    DefaultContextHost,
		"clients.context.port":    DefaultContextPort,
		"clients.policy.host":     DefaultPolicyHost,
		"clients.policy.port":     DefaultPolicyPort,
		"clients.inference.host":  DefaultInferenceHost,
		"clients.inference.port":  DefaultInferencePort,
		"clients.actuation.host":  "",
		"clients.actuation.port":  "",
		"clients.timeout":         DefaultClientTimeout,
		"clients.max_retries":     DefaultClientMaxRetries,
		"schema.dir":              "",
		"modelpack.required":      "",
		"vdi.allowed_domains":     DefaultVDIAllowedDomains,
		"policy.fail_mode":        DefaultPolicyFailMode,
		"event_graph.enabled":     DefaultEventGraphEnabled,
		"event_graph.dir":         DefaultEventGraphDir,
		"event_graph.file":        DefaultEventGraphFile,
		"event_graph.redact":      DefaultEventGraphRedact,
		"renderer.url":            "",
		"trace.dir":               DefaultTraceDir,
		"write_behind.queue_size": DefaultWriteBehindQueueSize,
		"snapshot.cache_ttl":      DefaultSnapshotCacheTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		expanded, err := ExpandPath(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(expanded), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".musubi", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("MUSUBI_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "MUSUBI_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Domains splits the configured comma-separated allow-list into lowercase
// hostnames.
func (c VDIConfig) Domains() []string {
	parts := strings.Split(c.AllowedDomains, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
