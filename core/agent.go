package core

import "context"

// Agent is an addressable processor that maps one input to one output.
// Implementations must not mutate the input they're given, must honor
// every capability they declare, and must be safe to call concurrently as
// long as each call receives a distinct input (spec.md §3).
type Agent interface {
	ID() string
	Name() string
	Description() string
	Capabilities() []Capability
	CanHandle(ctx context.Context, in AgentInput) bool
	Process(ctx context.Context, in AgentInput) (AgentOutput, error)
}

// BaseAgent is embeddable scaffolding for concrete Agent implementations;
// it stores the addressable identity so each implementation only needs to
// supply CanHandle/Process. Mirrors the teacher's BaseTool/BaseAgent
// pattern of embedding shared identity fields (core/tool.go, core/agent.go)
// without dragging in the HTTP/discovery machinery those carry.
type BaseAgent struct {
	id           string
	name         string
	description  string
	capabilities []Capability
}

// NewBaseAgent constructs identity scaffolding for an Agent. If id is
// empty a fresh one is generated.
func NewBaseAgent(id, name, description string, capabilities ...Capability) BaseAgent {
	if id == "" {
		id = NewID()
	}
	return BaseAgent{id: id, name: name, description: description, capabilities: capabilities}
}

func (b BaseAgent) ID() string                  { return b.id }
func (b BaseAgent) Name() string                { return b.name }
func (b BaseAgent) Description() string         { return b.description }
func (b BaseAgent) Capabilities() []Capability  { return b.capabilities }

// HasCapability reports whether cap is in the agent's declared set.
func (b BaseAgent) HasCapability(cap Capability) bool {
	for _, c := range b.capabilities {
		if c == cap {
			return true
		}
	}
	return false
}
