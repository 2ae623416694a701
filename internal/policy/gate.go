// Package policy gates capability use through the policy service. When the
// service is unreachable the gate degrades per its configured fail mode
// rather than erroring the turn.
package policy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/errors"
)

// Fail modes accepted by config.
const (
	FailOpen   = "fail_open"
	FailClosed = "fail_closed"
)

// denyMarker triggers a deny from the stub evaluator, for exercising the
// deny path without a policy service.
const denyMarker = "deny:"

// Decision is the gate's verdict for one capability use.
type Decision struct {
	Allowed             bool   `json:"allowed"`
	RequireConfirmation bool   `json:"require_confirmation"`
	Reason              string `json:"reason,omitempty"`
}

// Gate evaluates capability requests. A nil service puts the gate in stub
// mode, which is deterministic and never touches the network.
type Gate struct {
	service  *client.Service
	failOpen bool
}

func NewGate(service *client.Service, failMode string) *Gate {
	return &Gate{service: service, failOpen: failMode == FailOpen}
}

// Check evaluates one capability use. evalContext travels to the policy
// service unmodified.
func (g *Gate) Check(ctx context.Context, capabilityID string, evalContext map[string]any) Decision {
	if g.service == nil {
		return g.stub(evalContext)
	}

	res := g.service.Post(ctx, "/evaluate", map[string]any{
		"capability_id": capabilityID,
		"context":       evalContext,
	}, nil)
	if !res.Success() {
		return g.unavailable(capabilityID, res.Status)
	}

	decision, ok := res.Body["decision"].(map[string]any)
	if !ok {
		return g.unavailable(capabilityID, res.Status)
	}
	allowed, _ := decision["allowed"].(bool)
	confirm, _ := decision["require_confirmation"].(bool)
	reason, _ := decision["reason"].(string)
	return Decision{Allowed: allowed, RequireConfirmation: confirm, Reason: reason}
}

// ReadinessAllowed evaluates a synthetic capability as a health probe.
func (g *Gate) ReadinessAllowed(ctx context.Context) bool {
	d := g.Check(ctx, "test.ACTION", map[string]any{
		"actor":  "local-user",
		"intent": "readiness-check",
	})
	return d.Allowed
}

func (g *Gate) unavailable(capabilityID string, status int) Decision {
	if g.failOpen {
		slog.Warn("Policy unavailable, failing open", "capability_id", capabilityID, "status", status)
		return Decision{Allowed: true, Reason: errors.CodePolicyUnavailableFailOpen.String()}
	}
	slog.Warn("Policy unavailable, failing closed", "capability_id", capabilityID, "status", status)
	return Decision{Allowed: false, Reason: errors.CodePolicyUnavailableFailClosed.String()}
}

// stub denies only when the evaluation context carries the deny marker in
// any string value.
func (g *Gate) stub(evalContext map[string]any) Decision {
	for _, v := range evalContext {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), denyMarker) {
			return Decision{Allowed: false, Reason: "stub_denied"}
		}
	}
	return Decision{Allowed: true, Reason: "stub_allowed"}
}
