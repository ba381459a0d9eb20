package adk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nimbuslabs/conductor/core"
)

// AggregationStrategy selects how Parallel synthesizes one output from its
// children's outputs.
type AggregationStrategy string

const (
	// Concatenate labels each child's content with its agent id and joins
	// them; confidence is the mean. This is the default.
	Concatenate AggregationStrategy = "concatenate"
	// BestConfidence keeps the single output with the highest confidence,
	// ties broken by earlier original index.
	BestConfidence AggregationStrategy = "best-confidence"
	// Merge joins contents with a newline and namespaces each child's
	// structured data under its agent id.
	Merge AggregationStrategy = "merge"
)

// Parallel runs children concurrently, bounded by maxConcurrent, and
// aggregates their results per the configured AggregationStrategy. The
// "custom" strategy from the source framework carries a non-portable
// closure (spec.md §9 Open Question 5) and is intentionally not offered
// here.
type Parallel struct {
	core.BaseAgent
	children      []core.Agent
	maxConcurrent int
	strategy      AggregationStrategy
	failFast      bool
	logger        core.Logger
}

// ParallelOption configures a Parallel composer.
type ParallelOption func(*Parallel)

// WithMaxConcurrent bounds in-flight child executions. Defaults to
// len(children) (fully concurrent).
func WithMaxConcurrent(n int) ParallelOption {
	return func(p *Parallel) { p.maxConcurrent = n }
}

// WithAggregationStrategy selects concatenate/best-confidence/merge.
func WithAggregationStrategy(s AggregationStrategy) ParallelOption {
	return func(p *Parallel) { p.strategy = s }
}

// WithFailFast controls whether any child error aborts the whole composer
// (true) or is logged and the child omitted (false, default).
func WithFailFast(v bool) ParallelOption {
	return func(p *Parallel) { p.failFast = v }
}

// WithParallelLogger attaches a logger for omitted-child events.
func WithParallelLogger(logger core.Logger) ParallelOption {
	return func(p *Parallel) { p.logger = logger }
}

// NewParallel builds a Parallel composer over children.
func NewParallel(id, name string, children []core.Agent, opts ...ParallelOption) *Parallel {
	p := &Parallel{
		BaseAgent:     core.NewBaseAgent(id, name, "parallel composer", core.CapabilityReasoning),
		children:      children,
		maxConcurrent: len(children),
		strategy:      Concatenate,
		logger:        core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxConcurrent <= 0 {
		p.maxConcurrent = len(children)
		if p.maxConcurrent == 0 {
			p.maxConcurrent = 1
		}
	}
	return p
}

// CanHandle reports false only when there are no children.
func (p *Parallel) CanHandle(_ context.Context, _ core.AgentInput) bool {
	return len(p.children) > 0
}

type parallelResult struct {
	index int
	agent core.Agent
	out   core.AgentOutput
	err   error
}

// Process runs every child concurrently, bounded by maxConcurrent, and
// aggregates according to the configured strategy. Collection order
// always matches original child order, independent of completion order.
func (p *Parallel) Process(ctx context.Context, input core.AgentInput) (core.AgentOutput, error) {
	start := time.Now()

	if len(p.children) == 0 {
		return core.AgentOutput{}, core.NewConfigurationError("adk.Parallel.Process", "no children configured")
	}

	sem := make(chan struct{}, p.maxConcurrent)
	results := make(chan parallelResult, len(p.children))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, child := range p.children {
		sem <- struct{}{}
		go func(i int, child core.Agent) {
			defer func() { <-sem }()
			if !child.CanHandle(runCtx, input) {
				results <- parallelResult{index: i, agent: child, err: core.NewInvalidInputError("adk.Parallel.Process", "child cannot handle input")}
				return
			}
			out, err := child.Process(runCtx, input)
			results <- parallelResult{index: i, agent: child, out: out, err: err}
		}(i, child)
	}

	collected := make([]parallelResult, 0, len(p.children))
	var firstErr *parallelResult
	for range p.children {
		r := <-results
		collected = append(collected, r)
		if r.err != nil && firstErr == nil {
			firstErr = &r
		}
	}

	if p.failFast && firstErr != nil {
		cancel()
		return core.AgentOutput{}, core.NewChildAgentFailedError("adk.Parallel.Process", firstErr.agent.ID(), firstErr.err)
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	var successes []parallelResult
	for _, r := range collected {
		if r.err != nil {
			p.logger.Warn("omitting failed child from parallel aggregation", map[string]interface{}{
				"agent_id": r.agent.ID(),
				"error":    r.err.Error(),
			})
			continue
		}
		successes = append(successes, r)
	}

	out := p.aggregate(successes)
	out.ProcessingSeconds = time.Since(start).Seconds()
	return out, nil
}

func (p *Parallel) aggregate(successes []parallelResult) core.AgentOutput {
	if len(successes) == 0 {
		out := core.NewAgentOutput(p.ID(), "parallel composer produced no successful output", 0)
		return out
	}

	switch p.strategy {
	case BestConfidence:
		return p.aggregateBestConfidence(successes)
	case Merge:
		return p.aggregateMerge(successes)
	case Concatenate:
		fallthrough
	default:
		return p.aggregateConcatenate(successes)
	}
}

func (p *Parallel) aggregateConcatenate(successes []parallelResult) core.AgentOutput {
	parts := make([]string, len(successes))
	var confidenceSum float64
	childIDs := make([]string, len(successes))
	for i, r := range successes {
		parts[i] = fmt.Sprintf("[%s]: %s", r.agent.ID(), r.out.Content)
		confidenceSum += r.out.Confidence
		childIDs[i] = r.agent.ID()
	}
	out := core.NewAgentOutput(p.ID(), strings.Join(parts, "\n"), confidenceSum/float64(len(successes)))
	out = out.WithStructuredData(map[string]core.DynamicValue{
		"agent_count": core.NewIntValue(int64(len(successes))),
		"child_ids":   core.FromNative(toInterfaceSlice(childIDs)),
	})
	return out
}

func (p *Parallel) aggregateBestConfidence(successes []parallelResult) core.AgentOutput {
	best := successes[0]
	for _, r := range successes[1:] {
		if r.out.Confidence > best.out.Confidence {
			best = r
		}
	}
	out := core.NewAgentOutput(p.ID(), best.out.Content, best.out.Confidence)
	out = out.WithStructuredData(map[string]core.DynamicValue{
		"winning_agent_id": core.NewStringValue(best.agent.ID()),
	})
	return out
}

func (p *Parallel) aggregateMerge(successes []parallelResult) core.AgentOutput {
	contents := make([]string, len(successes))
	merged := make(map[string]core.DynamicValue)
	var confidenceSum float64
	for i, r := range successes {
		contents[i] = r.out.Content
		confidenceSum += r.out.Confidence
		for k, v := range r.out.StructuredData {
			merged[fmt.Sprintf("%s.%s", r.agent.ID(), k)] = v
		}
	}
	out := core.NewAgentOutput(p.ID(), strings.Join(contents, "\n"), confidenceSum/float64(len(successes)))
	out = out.WithStructuredData(merged)
	return out
}

var _ core.Agent = (*Parallel)(nil)
