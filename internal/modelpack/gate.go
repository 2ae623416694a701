// Package modelpack enforces the required-model-pack gate. When a
// deployment pins a pack, turns must not start until the inference service
// reports it installed.
package modelpack

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/errors"
)

// Gate checks one pinned pack. An empty requirement disables the gate.
type Gate struct {
	inference *client.Service
	packID    string
	version   string
	enabled   bool
}

// NewGate parses a "pack_id@version" requirement. A requirement without a
// version accepts any installed version of the pack.
func NewGate(inference *client.Service, required string) *Gate {
	required = strings.TrimSpace(required)
	if required == "" {
		return &Gate{}
	}
	packID, version, _ := strings.Cut(required, "@")
	return &Gate{
		inference: inference,
		packID:    packID,
		version:   version,
		enabled:   true,
	}
}

func (g *Gate) Enabled() bool { return g.enabled }

// Check queries the installed packs. Unreachable inference or a missing
// pack both fail the gate: the turn must not proceed on guesswork.
func (g *Gate) Check(ctx context.Context) error {
	if !g.enabled {
		return nil
	}
	if g.inference == nil {
		return fmt.Errorf("inference service not configured: %w", errors.ErrModelPackMissing)
	}

	res := g.inference.Get(ctx, "/models/packs", nil)
	if !res.Success() {
		return fmt.Errorf("model pack listing failed status=%d: %w", res.Status, errors.ErrModelPackMissing)
	}

	packs, _ := res.Body["packs"].([]any)
	for _, raw := range packs {
		pack, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := pack["id"].(string)
		version, _ := pack["version"].(string)
		if id != g.packID {
			continue
		}
		if g.version != "" && version != g.version {
			continue
		}
		// Absent status counts as installed; only an explicit non-ready
		// status disqualifies the pack.
		if status, ok := pack["status"].(string); ok && status != "ready" {
			continue
		}
		return nil
	}
	return fmt.Errorf("required pack %s@%s not installed: %w", g.packID, g.version, errors.ErrModelPackMissing)
}

// Remediation is the fixed user-facing text shown when the gate fails.
func (g *Gate) Remediation() string {
	req := g.packID
	if g.version != "" {
		req += "@" + g.version
	}
	return fmt.Sprintf("The required model pack %s is not installed. Install it on the inference service, then try again.", req)
}
