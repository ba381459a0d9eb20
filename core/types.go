package core

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a short unique identifier, matching the teacher's
// core/tool.go generateID helper.
func NewID() string {
	return uuid.New().String()[:8]
}

// Priority ranks an AgentInput's urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Metadata travels alongside an AgentInput or AgentOutput.
type Metadata struct {
	Timestamp  time.Time
	Tags       []string
	Priority   Priority
	RetryCount int
	MaxRetries int
}

// Capability is one entry of the closed enumeration an Agent may declare.
type Capability string

const (
	CapabilityTextGeneration     Capability = "text-generation"
	CapabilityImageGeneration    Capability = "image-generation"
	CapabilityDocumentExtraction Capability = "document-extraction"
	CapabilityDataAnalysis       Capability = "data-analysis"
	CapabilityCodeGeneration     Capability = "code-generation"
	CapabilitySearch             Capability = "search"
	CapabilityReasoning          Capability = "reasoning"
	CapabilityReview             Capability = "review"
	CapabilitySelfArgumentation  Capability = "self-argumentation"
	CapabilityBoundaryValidation Capability = "boundary-validation"
)

// AgentInput carries one processing request. Inputs are immutable once
// constructed: every field is either a value type or copied on
// construction, and the derivation helpers (WithAppendedOutputs, ...)
// always return a new value rather than mutating the receiver.
type AgentInput struct {
	ID              string
	Content         string
	Context         map[string]DynamicValue
	Metadata        Metadata
	PreviousOutputs []AgentOutput
}

// NewAgentInput constructs an input with a fresh id and default metadata
// (normal priority, no retries) stamped with the current time.
func NewAgentInput(content string) AgentInput {
	return AgentInput{
		ID:      NewID(),
		Content: content,
		Context: map[string]DynamicValue{},
		Metadata: Metadata{
			Timestamp:  time.Now(),
			Priority:   PriorityNormal,
			MaxRetries: 0,
		},
	}
}

// WithContext returns a copy of in with key set to value in Context,
// leaving the receiver untouched.
func (in AgentInput) WithContext(key string, value DynamicValue) AgentInput {
	out := in.clone()
	out.Context[key] = value
	return out
}

// WithMergedContext returns a copy of in with every key of extra written
// into Context, overwriting on key collision.
func (in AgentInput) WithMergedContext(extra map[string]DynamicValue) AgentInput {
	out := in.clone()
	for k, v := range extra {
		out.Context[k] = v
	}
	return out
}

// WithAppendedOutputs returns a copy of in whose PreviousOutputs is the
// receiver's outputs followed by more. This is how composers and the
// workflow coordinator thread accumulated outputs forward as the input to
// the next step, per spec.md §3.
func (in AgentInput) WithAppendedOutputs(more ...AgentOutput) AgentInput {
	out := in.clone()
	combined := make([]AgentOutput, 0, len(in.PreviousOutputs)+len(more))
	combined = append(combined, in.PreviousOutputs...)
	combined = append(combined, more...)
	out.PreviousOutputs = combined
	return out
}

// WithContent returns a copy of in with Content replaced.
func (in AgentInput) WithContent(content string) AgentInput {
	out := in.clone()
	out.Content = content
	return out
}

func (in AgentInput) clone() AgentInput {
	ctx := make(map[string]DynamicValue, len(in.Context))
	for k, v := range in.Context {
		ctx[k] = v
	}
	prev := make([]AgentOutput, len(in.PreviousOutputs))
	copy(prev, in.PreviousOutputs)
	return AgentInput{
		ID:              in.ID,
		Content:         in.Content,
		Context:         ctx,
		Metadata:        in.Metadata,
		PreviousOutputs: prev,
	}
}

// AgentOutput carries one processing result. Outputs are immutable;
// composers synthesize new outputs from child outputs rather than mutating
// one in place.
type AgentOutput struct {
	ID                string
	AgentID           string
	Content           string
	StructuredData    map[string]DynamicValue
	Confidence        float64
	ProcessingSeconds float64
	Metadata          Metadata
}

// NewAgentOutput constructs an output with a fresh id.
func NewAgentOutput(agentID, content string, confidence float64) AgentOutput {
	return AgentOutput{
		ID:         NewID(),
		AgentID:    agentID,
		Content:    content,
		Confidence: confidence,
		Metadata:   Metadata{Timestamp: time.Now()},
	}
}

// WithStructuredData returns a copy of out with its StructuredData replaced.
func (out AgentOutput) WithStructuredData(data map[string]DynamicValue) AgentOutput {
	cp := out
	cp.StructuredData = data
	return cp
}
