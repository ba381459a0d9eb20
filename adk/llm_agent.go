package adk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nimbuslabs/conductor/core"
	"github.com/nimbuslabs/conductor/generator"
)

// ConfidenceHeuristic derives a confidence score from generated text. The
// default, wordCountHeuristic, follows spec.md §4.3's bucketed word-count
// rule; callers may substitute their own.
type ConfidenceHeuristic func(text string) float64

// wordCountHeuristic is the default heuristic: <10 words -> 0.5, <50 ->
// 0.7, <200 -> 0.85, else 0.9.
func wordCountHeuristic(text string) float64 {
	n := len(strings.Fields(text))
	switch {
	case n < 10:
		return 0.5
	case n < 50:
		return 0.7
	case n < 200:
		return 0.85
	default:
		return 0.9
	}
}

// LLMAgent wraps a single external generation call. Per spec.md §9's
// design notes, Analysis/Extraction/Review are specializations built by
// composition (a parameterized constructor), not by subclassing - the
// source language used inheritance for this, which doesn't translate.
type LLMAgent struct {
	core.BaseAgent
	gen               generator.Generator
	model             string
	systemInstruction string
	temperature       float32
	maxOutputTokens   int
	confidence        ConfidenceHeuristic
	logger            core.Logger
}

// LLMAgentOption configures an LLMAgent at construction, following the
// teacher's functional-options style (ai/provider.go's AIOption).
type LLMAgentOption func(*LLMAgent)

// WithSystemInstruction sets the frozen system instruction passed to the
// generator alongside every prompt.
func WithSystemInstruction(instruction string) LLMAgentOption {
	return func(a *LLMAgent) { a.systemInstruction = instruction }
}

// WithTemperature sets the generation temperature.
func WithTemperature(t float32) LLMAgentOption {
	return func(a *LLMAgent) { a.temperature = t }
}

// WithMaxOutputTokens caps generated output length.
func WithMaxOutputTokens(n int) LLMAgentOption {
	return func(a *LLMAgent) { a.maxOutputTokens = n }
}

// WithConfidenceHeuristic overrides the default word-count heuristic.
func WithConfidenceHeuristic(fn ConfidenceHeuristic) LLMAgentOption {
	return func(a *LLMAgent) { a.confidence = fn }
}

// WithAgentLogger attaches a logger for prompt-assembly diagnostics.
func WithAgentLogger(logger core.Logger) LLMAgentOption {
	return func(a *LLMAgent) { a.logger = logger }
}

// NewLLMAgent creates a general-purpose LLM-backed agent. model is passed
// through to the generator unmodified (e.g. "gpt-4").
func NewLLMAgent(id, name, description, model string, gen generator.Generator, caps []core.Capability, opts ...LLMAgentOption) *LLMAgent {
	a := &LLMAgent{
		BaseAgent:   core.NewBaseAgent(id, name, description, caps...),
		gen:         gen,
		model:       model,
		temperature: 0.7,
		confidence:  wordCountHeuristic,
		logger:      core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAnalysisAgent builds the Analysis specialization: temperature 0.3,
// structured-sections instruction.
func NewAnalysisAgent(id, model string, gen generator.Generator, opts ...LLMAgentOption) *LLMAgent {
	base := []LLMAgentOption{
		WithTemperature(0.3),
		WithSystemInstruction("Analyze the given content and respond with sections: Key Findings, Data Patterns, Recommendations, Confidence Level."),
	}
	return NewLLMAgent(id, "Analysis Agent", "performs structured analysis", model, gen,
		[]core.Capability{core.CapabilityDataAnalysis, core.CapabilityReasoning}, append(base, opts...)...)
}

// NewExtractionAgent builds the Extraction specialization: temperature
// 0.1, JSON-output instruction.
func NewExtractionAgent(id, model string, gen generator.Generator, opts ...LLMAgentOption) *LLMAgent {
	base := []LLMAgentOption{
		WithTemperature(0.1),
		WithSystemInstruction("Extract the requested fields and respond with JSON matching the supplied schema exactly."),
	}
	return NewLLMAgent(id, "Extraction Agent", "extracts structured data", model, gen,
		[]core.Capability{core.CapabilityDocumentExtraction}, append(base, opts...)...)
}

// NewReviewAgent builds the Review specialization: temperature 0.5,
// error/quality instruction.
func NewReviewAgent(id, model string, gen generator.Generator, opts ...LLMAgentOption) *LLMAgent {
	base := []LLMAgentOption{
		WithTemperature(0.5),
		WithSystemInstruction("Identify errors or inconsistencies in the given content and assign a quality score from 0 to 1."),
	}
	return NewLLMAgent(id, "Review Agent", "reviews quality and consistency", model, gen,
		[]core.Capability{core.CapabilityReview}, append(base, opts...)...)
}

// CanHandle reports true for any non-empty content; an LLM agent has no
// further input-shape requirement.
func (a *LLMAgent) CanHandle(_ context.Context, input core.AgentInput) bool {
	return input.Content != ""
}

// Process assembles the deterministic three-block prompt described in
// spec.md §4.3, calls the generator, and derives a heuristic confidence
// from the response.
func (a *LLMAgent) Process(ctx context.Context, input core.AgentInput) (core.AgentOutput, error) {
	start := time.Now()

	if !a.CanHandle(ctx, input) {
		return core.AgentOutput{}, core.NewInvalidInputError("adk.LLMAgent.Process", "empty content")
	}

	prompt := a.assemblePrompt(input)

	resp, err := a.gen.Generate(ctx, prompt, a.systemInstruction, generator.Config{
		Model:           a.model,
		Temperature:     a.temperature,
		MaxOutputTokens: a.maxOutputTokens,
	})
	if err != nil {
		return core.AgentOutput{}, fmt.Errorf("adk.LLMAgent.Process: %w", err)
	}
	if resp.Text == "" {
		return core.AgentOutput{}, core.NewProcessingFailedError("adk.LLMAgent.Process", "generator returned no text")
	}

	confidence := a.confidence(resp.Text)
	out := core.NewAgentOutput(a.ID(), resp.Text, confidence)
	out.ProcessingSeconds = time.Since(start).Seconds()
	if resp.StructuredResponse != nil {
		sd := make(map[string]core.DynamicValue, len(resp.StructuredResponse))
		for k, v := range resp.StructuredResponse {
			sd[k] = core.FromNative(v)
		}
		out = out.WithStructuredData(sd)
	}
	return out, nil
}

func (a *LLMAgent) assemblePrompt(input core.AgentInput) string {
	var b strings.Builder

	if len(input.PreviousOutputs) > 0 {
		b.WriteString("Previous Context:\n")
		for _, o := range input.PreviousOutputs {
			fmt.Fprintf(&b, "[%s]: %s\n", o.AgentID, o.Content)
		}
		b.WriteString("\n")
	}

	if len(input.Context) > 0 {
		b.WriteString("Context Variables:\n")
		keys := make([]string, 0, len(input.Context))
		for k := range input.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			val := input.Context[key]
			fmt.Fprintf(&b, "- %s: %s\n", key, val.AsPrimitiveString())
		}
		b.WriteString("\n")
	}

	b.WriteString("Task:\n")
	b.WriteString(input.Content)

	return b.String()
}

var _ core.Agent = (*LLMAgent)(nil)
