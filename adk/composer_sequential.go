package adk

import (
	"context"
	"strings"
	"time"

	"github.com/nimbuslabs/conductor/core"
)

// Sequential iterates its children in order, threading accumulated
// outputs forward exactly as the workflow coordinator does between steps.
// Grounded on spec.md §4.2; structurally it plays the same "drive a list
// of sub-units with a shared options struct" role as the teacher's
// ChainClient (ai/chain_client.go), generalized from provider failover to
// generic agent composition.
type Sequential struct {
	core.BaseAgent
	children     []core.Agent
	passOutputs  bool
	stopOnError  bool
	logger       core.Logger
}

// SequentialOption configures a Sequential composer.
type SequentialOption func(*Sequential)

// WithPassOutputs controls whether later children see earlier children's
// outputs in PreviousOutputs. Defaults to true.
func WithPassOutputs(v bool) SequentialOption {
	return func(s *Sequential) { s.passOutputs = v }
}

// WithStopOnError controls whether a child error fails the whole composer
// (default true) or is logged and skipped.
func WithStopOnError(v bool) SequentialOption {
	return func(s *Sequential) { s.stopOnError = v }
}

// WithSequentialLogger attaches a logger for skipped/dropped-child events.
func WithSequentialLogger(logger core.Logger) SequentialOption {
	return func(s *Sequential) { s.logger = logger }
}

// NewSequential builds a Sequential composer over children, run in the
// given order.
func NewSequential(id, name string, children []core.Agent, opts ...SequentialOption) *Sequential {
	s := &Sequential{
		BaseAgent:   core.NewBaseAgent(id, name, "sequential composer", core.CapabilityReasoning),
		children:    children,
		passOutputs: true,
		stopOnError: true,
		logger:      core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanHandle reports false only when there are no children: an empty
// composer has nothing it could possibly do (spec.md §8 boundary
// behavior).
func (s *Sequential) CanHandle(_ context.Context, _ core.AgentInput) bool {
	return len(s.children) > 0
}

// Process runs every eligible child in order, building each successor's
// input from the running output list.
func (s *Sequential) Process(ctx context.Context, input core.AgentInput) (core.AgentOutput, error) {
	start := time.Now()

	if len(s.children) == 0 {
		return core.AgentOutput{}, core.NewConfigurationError("adk.Sequential.Process", "no children configured")
	}

	var outputs []core.AgentOutput
	current := input
	var childIDs []string

	for _, child := range s.children {
		if !child.CanHandle(ctx, current) {
			s.logger.Warn("skipping child that cannot handle input", map[string]interface{}{
				"agent_id": child.ID(),
			})
			continue
		}

		out, err := child.Process(ctx, current)
		if err != nil {
			if s.stopOnError {
				return core.AgentOutput{}, core.NewChildAgentFailedError("adk.Sequential.Process", child.ID(), err)
			}
			s.logger.Warn("dropping failed child", map[string]interface{}{
				"agent_id": child.ID(),
				"error":    err.Error(),
			})
			continue
		}

		outputs = append(outputs, out)
		childIDs = append(childIDs, child.ID())

		if s.passOutputs {
			current = current.WithAppendedOutputs(out)
		}
	}

	return synthesizeSequential(s.ID(), outputs, childIDs, time.Since(start).Seconds()), nil
}

func synthesizeSequential(selfID string, outputs []core.AgentOutput, childIDs []string, elapsed float64) core.AgentOutput {
	if len(outputs) == 0 {
		out := core.NewAgentOutput(selfID, "sequential composer produced no output", 0)
		out.ProcessingSeconds = elapsed
		return out
	}

	contents := make([]string, len(outputs))
	var confidenceSum float64
	var timeSum float64
	for i, o := range outputs {
		contents[i] = o.Content
		confidenceSum += o.Confidence
		timeSum += o.ProcessingSeconds
	}

	out := core.NewAgentOutput(selfID, strings.Join(contents, "\n\n"), confidenceSum/float64(len(outputs)))
	out.ProcessingSeconds = timeSum
	out = out.WithStructuredData(map[string]core.DynamicValue{
		"agent_count": core.NewIntValue(int64(len(outputs))),
		"child_ids":   core.FromNative(toInterfaceSlice(childIDs)),
	})
	return out
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

var _ core.Agent = (*Sequential)(nil)
