package errors

import (
	"errors"
)

// Code is a fixed taxonomy token returned by the tool and memory executors.
// Callers branch on the token, never on free text.
type Code string

const (
	// CodeNotAuthorized - policy did not allow the action.
	CodeNotAuthorized Code = "not_authorized"

	// CodeNotAvailable - optional integration absent or unreachable. Expected
	// and non-fatal; distinct from a genuine tool failure.
	CodeNotAvailable Code = "not_available"

	// CodeInvalidArgs - malformed tool or memory-op arguments.
	CodeInvalidArgs Code = "invalid_args"

	// CodeUnknownTool - tool name outside the closed tool set.
	CodeUnknownTool Code = "unknown_tool"

	// CodeUnknownOp - memory operation outside query/upsert/delete.
	CodeUnknownOp Code = "unknown_op"

	// CodeWriteFailed - downstream rejected a write.
	CodeWriteFailed Code = "write_failed"

	// CodeVDIFailed - actuation call failed for a reason other than the
	// integration being unavailable.
	CodeVDIFailed Code = "vdi_failed"

	// CodePolicyUnavailableFailOpen - policy service unreachable, gate
	// configured to allow.
	CodePolicyUnavailableFailOpen Code = "policy_unavailable_fail_open"

	// CodePolicyUnavailableFailClosed - policy service unreachable, gate
	// configured to deny.
	CodePolicyUnavailableFailClosed Code = "policy_unavailable_fail_closed"

	// CodeModelPackMissing - required model pack absent or invalid. Fatal;
	// aborts the turn before planning.
	CodeModelPackMissing Code = "modelpack_missing_or_invalid"
)

// Sentinel errors for the fatal classes. Everything else in the pipeline is
// reported per-item through Code values and never crosses a stage boundary
// as an error.
var (
	// ErrSchemaValidation - planner output failed schema validation. A
	// programming error, not surfaced to the end user as a graceful message.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrModelPackMissing - the required-model-pack gate is unmet.
	ErrModelPackMissing = errors.New("model pack missing or invalid")

	// ErrInvalidInput - malformed input to a constructor or stage.
	ErrInvalidInput = errors.New("invalid input")
)

func (c Code) String() string { return string(c) }
