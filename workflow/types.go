// Package workflow implements the workflow coordinator: the Workflow and
// WorkflowStep data model, retry/backoff policy, the event stream, and the
// Coordinator that walks a Workflow's steps over registered core.Agents.
// Grounded on the teacher's orchestration/workflow_engine.go (step
// execution, retry, timeout) and orchestration/workflow_dag.go
// (dependency bookkeeping), generalized from the teacher's HTTP/discovery
// service-mesh model to spec.md's in-process agent model.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/nimbuslabs/conductor/core"
)

// ConditionKind selects how a WorkflowStep's execution condition is
// evaluated against the outputs produced so far.
type ConditionKind string

const (
	// ConditionAlways always proceeds.
	ConditionAlways ConditionKind = "always"
	// ConditionConfidenceAbove proceeds iff the last produced output's
	// confidence is at or above Threshold (true when no outputs exist yet).
	ConditionConfidenceAbove ConditionKind = "confidence-above"
	// ConditionOutputContains proceeds iff the last output's content
	// contains Substring (true when no outputs exist yet).
	ConditionOutputContains ConditionKind = "output-contains"
	// ConditionPreviousSuccess proceeds iff at least one output exists.
	ConditionPreviousSuccess ConditionKind = "previous-success"
	// ConditionCustom is opaque and always treated as true (spec.md §4.5).
	ConditionCustom ConditionKind = "custom"
)

// Condition gates whether a step runs, evaluated against the outputs
// accumulated by the coordinator so far.
type Condition struct {
	Kind      ConditionKind
	Threshold float64
	Substring string
}

// Always builds the always-proceed condition, the zero-value default.
func Always() Condition { return Condition{Kind: ConditionAlways} }

// ConfidenceAbove builds a confidence-gated condition.
func ConfidenceAbove(threshold float64) Condition {
	return Condition{Kind: ConditionConfidenceAbove, Threshold: threshold}
}

// OutputContains builds a substring-gated condition.
func OutputContains(substring string) Condition {
	return Condition{Kind: ConditionOutputContains, Substring: substring}
}

// PreviousSuccess builds a condition requiring at least one prior output.
func PreviousSuccess() Condition { return Condition{Kind: ConditionPreviousSuccess} }

// Custom builds the opaque always-true condition.
func Custom() Condition { return Condition{Kind: ConditionCustom} }

// evaluate reports whether cond permits the step to run, given the
// outputs produced by the workflow so far (spec.md §4.5 step 7b).
func (c Condition) evaluate(outputs []core.AgentOutput) bool {
	switch c.Kind {
	case ConditionConfidenceAbove:
		if len(outputs) == 0 {
			return true
		}
		return outputs[len(outputs)-1].Confidence >= c.Threshold
	case ConditionOutputContains:
		if len(outputs) == 0 {
			return true
		}
		return strings.Contains(outputs[len(outputs)-1].Content, c.Substring)
	case ConditionPreviousSuccess:
		return len(outputs) > 0
	case ConditionAlways, ConditionCustom:
		return true
	default:
		return true
	}
}

// WorkflowStep binds one registered agent to one position in a Workflow.
// Grounded on spec.md §3's WorkflowStep data model and the teacher's
// WorkflowStepDefinition (orchestration/workflow_engine.go), trimmed of
// the HTTP-discovery fields (Capability/Tool/Action lookup) this module
// doesn't need since agents are registered directly by id.
type WorkflowStep struct {
	ID              string
	Name            string
	AgentID         string
	InputOverrides  map[string]core.DynamicValue
	DependsOn       []string
	Condition       Condition
	IsRequired      bool
	Timeout         time.Duration
	Retry           *RetryPolicy // nil means "use the workflow default"
}

// Options are workflow-wide defaults and feature toggles, threaded from
// spec.md §3's Workflow.globalOptions.
type Options struct {
	SelfArgumentationCycles int
	EnableBoundary          bool
	EnableReview            bool
	MaxParallelFanout       int
	DefaultTimeout          time.Duration
	DefaultRetry            RetryPolicy
}

// DefaultOptions returns the options a Workflow gets when none are
// supplied explicitly.
func DefaultOptions() Options {
	return Options{
		SelfArgumentationCycles: 5,
		EnableBoundary:          false,
		EnableReview:            false,
		MaxParallelFanout:       4,
		DefaultTimeout:          30 * time.Second,
		DefaultRetry:            DefaultRetryPolicy(),
	}
}

// Workflow is an ordered list of steps over registered agents, plus the
// initial input and the global options controlling retries, timeouts,
// and the boundary/review gates.
type Workflow struct {
	ID           string
	Name         string
	Description  string
	Steps        []WorkflowStep
	InitialInput core.AgentInput
	Options      Options
}

// Validate checks the structural invariants the coordinator relies on:
// unique, non-empty step ids and DependsOn references resolving to an
// earlier step. It does not check that referenced agent ids are
// registered - that is an Execute-time concern (spec.md's agentNotFound).
func (w Workflow) Validate() error {
	seen := make(map[string]int, len(w.Steps))
	for i, step := range w.Steps {
		if step.ID == "" {
			return fmt.Errorf("workflow %q: step %d has no id", w.ID, i)
		}
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("workflow %q: duplicate step id %q", w.ID, step.ID)
		}
		seen[step.ID] = i
	}
	for _, step := range w.Steps {
		for _, dep := range step.DependsOn {
			idx, ok := seen[dep]
			if !ok {
				return fmt.Errorf("workflow %q: step %q depends on unknown step %q", w.ID, step.ID, dep)
			}
			if idx >= seen[step.ID] {
				return fmt.Errorf("workflow %q: step %q depends on later step %q", w.ID, step.ID, dep)
			}
		}
	}
	return nil
}
