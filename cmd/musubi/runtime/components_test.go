package runtime

import (
	"path/filepath"
	"testing"

	"github.com/harunnryd/musubi/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Clients: config.ClientsConfig{
			Context: config.EndpointConfig{Host: "context", Port: "8081"},
		},
		Policy: config.PolicyConfig{FailMode: config.DefaultPolicyFailMode},
		EventGraph: config.EventGraphConfig{
			Enabled: true,
			Dir:     filepath.Join(dir, "event_graph"),
			File:    "events.jsonl",
			Redact:  true,
		},
		Trace: config.TraceConfig{Dir: filepath.Join(dir, "traces")},
	}
}

func TestBuild(t *testing.T) {
	components, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	defer components.Stop()

	if components.Runner == nil {
		t.Error("Runner is nil")
	}
	if components.Events == nil {
		t.Error("Events is nil with event graph enabled")
	}
}

func TestBuildEventGraphDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventGraph.Enabled = false

	components, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	defer components.Stop()

	if components.Events != nil {
		t.Error("Events should be nil with event graph disabled")
	}
}

func TestBuildNilConfig(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Error("Build(nil) should fail")
	}
}

func TestBuildBadTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Clients.Timeout = "not-a-duration"

	if _, err := Build(cfg); err == nil {
		t.Error("Build() should reject an unparseable client timeout")
	}
}
