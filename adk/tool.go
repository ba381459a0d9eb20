// Package adk is the Agent Development Kit: composers over child agents
// (Sequential/Parallel/Loop), an LLM-backed agent and its specializations,
// a schema-driven Tool interface, and the specialized
// boundary/context/review/self-argue agents the workflow coordinator
// relies on.
package adk

import (
	"context"
	"errors"
	"fmt"
)

// Tool is any callable value with a stable id, a JSON-Schema input
// contract, and a synchronous-in-contract Execute. Grounded on the
// teacher's core.BaseTool + AITool pairing (ai/ai_tool.go), generalized
// into a plain interface since this module has no HTTP-transport leg to
// carry along.
type Tool interface {
	ID() string
	Name() string
	Description() string
	Schema() *Schema
	Execute(ctx context.Context, parameters map[string]interface{}) (interface{}, error)
}

// Tool error sentinels, matching spec.md §7's tool-specific taxonomy.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrExecutionFailed  = errors.New("tool execution failed")
	ErrToolTimeout      = errors.New("tool timed out")
)

// ToolError wraps one of the sentinels above with the offending
// parameter name (when applicable) and a human-readable reason.
type ToolError struct {
	ToolID string
	Param  string
	Reason string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("tool %q: %s (%s): %v", e.ToolID, e.Param, e.Reason, e.Err)
	}
	return fmt.Sprintf("tool %q: %s: %v", e.ToolID, e.Reason, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewMissingParameterError reports that a required parameter was absent.
func NewMissingParameterError(toolID, param string) *ToolError {
	return &ToolError{ToolID: toolID, Param: param, Reason: "missing parameter", Err: ErrMissingParameter}
}

// NewInvalidParameterError reports that a parameter was present but
// unusable.
func NewInvalidParameterError(toolID, param, reason string) *ToolError {
	return &ToolError{ToolID: toolID, Param: param, Reason: reason, Err: ErrInvalidParameter}
}

// NewExecutionFailedError reports that Execute could not produce a result.
func NewExecutionFailedError(toolID, reason string) *ToolError {
	return &ToolError{ToolID: toolID, Reason: reason, Err: ErrExecutionFailed}
}

// NewToolTimeoutError reports that Execute exceeded its allotted time.
func NewToolTimeoutError(toolID string) *ToolError {
	return &ToolError{ToolID: toolID, Reason: "timed out", Err: ErrToolTimeout}
}
