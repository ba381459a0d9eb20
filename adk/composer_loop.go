package adk

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/nimbuslabs/conductor/core"
)

// LoopExitKind selects a Loop composer's exit condition.
type LoopExitKind string

const (
	// ExitIterations stops when the iteration count reaches a fixed k.
	ExitIterations LoopExitKind = "iterations"
	// ExitConfidenceThreshold stops when the last iteration's aggregated
	// confidence is at or above a threshold.
	ExitConfidenceThreshold LoopExitKind = "confidence-threshold"
	// ExitConvergence stops when the absolute difference between the last
	// two iteration confidences is below an epsilon.
	ExitConvergence LoopExitKind = "convergence"
	// ExitCustom is reserved: no expression evaluator is specified, so it
	// is always treated as "not satisfied" (spec.md §9 Open Question 3).
	ExitCustom LoopExitKind = "custom"
)

// LoopExitCondition configures when a Loop composer stops iterating.
type LoopExitCondition struct {
	Kind      LoopExitKind
	Target    int     // for ExitIterations
	Threshold float64 // for ExitConfidenceThreshold
	Epsilon   float64 // for ExitConvergence
}

// Iterations builds an ExitIterations condition.
func Iterations(k int) LoopExitCondition { return LoopExitCondition{Kind: ExitIterations, Target: k} }

// ConfidenceThreshold builds an ExitConfidenceThreshold condition.
func ConfidenceThreshold(t float64) LoopExitCondition {
	return LoopExitCondition{Kind: ExitConfidenceThreshold, Threshold: t}
}

// Convergence builds an ExitConvergence condition.
func Convergence(eps float64) LoopExitCondition {
	return LoopExitCondition{Kind: ExitConvergence, Epsilon: eps}
}

// Loop repeatedly executes its children in sequence, up to maxIterations,
// stopping early once minIterations have run and the exit condition is
// satisfied. Grounded on spec.md §4.2; the inner per-iteration execution
// reuses Sequential's semantics (children see each other's outputs within
// one iteration).
type Loop struct {
	core.BaseAgent
	children      []core.Agent
	minIterations int
	maxIterations int
	exit          LoopExitCondition
	logger        core.Logger
}

// LoopOption configures a Loop composer.
type LoopOption func(*Loop)

// WithMinIterations sets the floor before the exit condition is even
// consulted. Defaults to 0.
func WithMinIterations(n int) LoopOption {
	return func(l *Loop) { l.minIterations = n }
}

// WithLoopLogger attaches a logger for iteration diagnostics.
func WithLoopLogger(logger core.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop builds a Loop composer over children, running up to
// maxIterations times and stopping per exit.
func NewLoop(id, name string, children []core.Agent, maxIterations int, exit LoopExitCondition, opts ...LoopOption) *Loop {
	l := &Loop{
		BaseAgent:     core.NewBaseAgent(id, name, "loop composer", core.CapabilityReasoning),
		children:      children,
		maxIterations: maxIterations,
		exit:          exit,
		logger:        core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewSelfArgumentation builds the "self-argumentation" convenience
// factory from spec.md §4.2: a Loop over one child with
// minIterations=cycles (default 5), maxIterations=cycles+2, exiting on
// confidenceThreshold(0.95).
func NewSelfArgumentation(id, name string, child core.Agent, cycles int, opts ...LoopOption) *Loop {
	if cycles <= 0 {
		cycles = 5
	}
	l := NewLoop(id, name, []core.Agent{child}, cycles+2, ConfidenceThreshold(0.95), opts...)
	l.minIterations = cycles
	return l
}

// CanHandle reports false only when there are no children.
func (l *Loop) CanHandle(_ context.Context, _ core.AgentInput) bool {
	return len(l.children) > 0
}

type loopIteration struct {
	index      int
	output     core.AgentOutput
	confidence float64
}

// Process runs children in sequence for each iteration, injecting the
// running iteration count, prior contents, and confidence trend into
// context, until the exit condition (checked only once minIterations have
// completed) is satisfied or maxIterations is reached.
func (l *Loop) Process(ctx context.Context, input core.AgentInput) (core.AgentOutput, error) {
	start := time.Now()

	if len(l.children) == 0 {
		return core.AgentOutput{}, core.NewConfigurationError("adk.Loop.Process", "no children configured")
	}

	var iterations []loopIteration
	var priorContents []string
	var confidenceTrend []float64

	for iter := 0; iter < l.maxIterations; iter++ {
		if iter >= l.minIterations && l.satisfied(confidenceTrend) {
			break
		}

		iterInput := input.
			WithContext("iteration", core.NewIntValue(int64(iter))).
			WithContext("prior_contents", core.FromNative(toInterfaceSlice(priorContents))).
			WithContext("confidence_trend", core.FromNative(float64SliceToInterface(confidenceTrend)))

		out, err := l.runOneIteration(ctx, iterInput)
		if err != nil {
			return core.AgentOutput{}, err
		}

		iterations = append(iterations, loopIteration{index: iter, output: out, confidence: out.Confidence})
		priorContents = append(priorContents, out.Content)
		confidenceTrend = append(confidenceTrend, out.Confidence)
	}

	return synthesizeLoop(l.ID(), iterations, time.Since(start).Seconds()), nil
}

// runOneIteration plays one pass of the children in sequence; within one
// iteration, children see each other's outputs exactly as Sequential's
// children do.
func (l *Loop) runOneIteration(ctx context.Context, input core.AgentInput) (core.AgentOutput, error) {
	seq := NewSequential(l.ID()+"-iter", l.Name()+" iteration", l.children)
	return seq.Process(ctx, input)
}

func (l *Loop) satisfied(confidenceTrend []float64) bool {
	switch l.exit.Kind {
	case ExitIterations:
		return len(confidenceTrend) >= l.exit.Target
	case ExitConfidenceThreshold:
		if len(confidenceTrend) == 0 {
			return false
		}
		return confidenceTrend[len(confidenceTrend)-1] >= l.exit.Threshold
	case ExitConvergence:
		if len(confidenceTrend) < 2 {
			return false
		}
		last := confidenceTrend[len(confidenceTrend)-1]
		prev := confidenceTrend[len(confidenceTrend)-2]
		return math.Abs(last-prev) < l.exit.Epsilon
	case ExitCustom:
		return false
	default:
		return false
	}
}

func synthesizeLoop(selfID string, iterations []loopIteration, elapsed float64) core.AgentOutput {
	if len(iterations) == 0 {
		out := core.NewAgentOutput(selfID, "", 0)
		out.ProcessingSeconds = elapsed
		out = out.WithStructuredData(map[string]core.DynamicValue{
			"total_iterations": core.NewIntValue(0),
		})
		return out
	}

	last := iterations[len(iterations)-1]
	contents := make([]string, len(iterations))
	for i, it := range iterations {
		contents[i] = it.output.Content
	}

	out := core.NewAgentOutput(selfID, last.output.Content, last.confidence)
	out.ProcessingSeconds = elapsed
	out = out.WithStructuredData(map[string]core.DynamicValue{
		"total_iterations": core.NewIntValue(int64(len(iterations))),
		"iteration_summary": core.NewStringValue(strings.Join(contents, " -> ")),
	})
	return out
}

func float64SliceToInterface(fs []float64) []interface{} {
	out := make([]interface{}, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

var _ core.Agent = (*Loop)(nil)
