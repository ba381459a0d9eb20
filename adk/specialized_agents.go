package adk

import (
	"context"

	"github.com/nimbuslabs/conductor/core"
	"github.com/nimbuslabs/conductor/generator"
)

// NewBoundaryAgent builds the Boundary specialization (spec.md §4.6):
// given an input, its output confidence reflects whether the input is
// safe/appropriate to process. The coordinator treats this as advisory
// only - it logs the result but does not gate on it unless the agent
// itself errors.
func NewBoundaryAgent(id, model string, gen generator.Generator, opts ...LLMAgentOption) *LLMAgent {
	base := []LLMAgentOption{
		WithTemperature(0.0),
		WithSystemInstruction("Assess whether the task content is safe and appropriate to process. Respond with a brief assessment; your confidence in this response reflects how safe the input is."),
	}
	return NewLLMAgent(id, "Boundary Agent", "advisory safety check", model, gen,
		[]core.Capability{core.CapabilityBoundaryValidation}, append(base, opts...)...)
}

// NewContextAgent builds the Context specialization: summarizes context
// carried forward with no visible side effects on the input itself.
func NewContextAgent(id, model string, gen generator.Generator, opts ...LLMAgentOption) *LLMAgent {
	base := []LLMAgentOption{
		WithTemperature(0.2),
		WithSystemInstruction("Summarize the relevant context carried into this step in one or two sentences."),
	}
	return NewLLMAgent(id, "Context Agent", "summarizes carried-forward context", model, gen,
		[]core.Capability{core.CapabilityReasoning}, append(base, opts...)...)
}

// ReviewAgent is the Review specialization from spec.md §4.6: given an
// input bearing the full PreviousOutputs of a finished workflow, it
// produces a quality-review output. It wraps NewReviewAgent with a helper
// that assembles that synthetic input from a WorkflowResult-shaped list of
// outputs, since the coordinator calls it after all steps complete rather
// than as a step itself.
type ReviewAgent struct {
	*LLMAgent
}

// NewWorkflowReviewAgent builds the Review specialization used by the
// coordinator's post-run review pass.
func NewWorkflowReviewAgent(id, model string, gen generator.Generator, opts ...LLMAgentOption) *ReviewAgent {
	return &ReviewAgent{LLMAgent: NewReviewAgent(id, model, gen, opts...)}
}

// ReviewOutputs builds a synthetic input from every output a finished
// workflow produced and runs the review agent on it.
func (r *ReviewAgent) ReviewOutputs(ctx context.Context, outputs []core.AgentOutput) (core.AgentOutput, error) {
	input := core.NewAgentInput("Review the following workflow outputs for errors, inconsistencies, and overall quality.").
		WithAppendedOutputs(outputs...)
	return r.Process(ctx, input)
}

// NewSelfArgue builds the Self-Argue specialization from spec.md §4.6: a
// Loop composer over a single child driving iterative refinement with the
// "confidence >= 0.95 within 5-7 cycles" contract (NewSelfArgumentation
// implements the exact iteration bounds).
func NewSelfArgue(id string, child core.Agent, cycles int) *Loop {
	return NewSelfArgumentation(id, "Self-Argue", child, cycles)
}
