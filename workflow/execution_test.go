package workflow

import (
	"testing"

	"github.com/nimbuslabs/conductor/core"
	"github.com/stretchr/testify/assert"
)

func TestExecutionContextLifecycle(t *testing.T) {
	ec := newExecutionContext("wf1", 3)
	assert.Equal(t, StatePending, ec.State())

	ec.setState(StateRunning)
	assert.Equal(t, StateRunning, ec.State())

	ec.setCurrentStep(1)
	assert.Equal(t, 1, ec.CurrentStep())

	ec.appendOutput(core.NewAgentOutput("a1", "hello", 0.9))
	assert.Len(t, ec.Outputs(), 1)

	ec.recordSuccess("s1", 1.5)
	ec.recordFailure()
	ec.recordRetry()

	m := ec.Metrics()
	assert.Equal(t, 3, m.TotalSteps)
	assert.Equal(t, 1, m.CompletedSteps)
	assert.Equal(t, 1, m.FailedSteps)
	assert.Equal(t, 1, m.RetryCount)
	assert.Equal(t, 1.5, m.TotalProcessingSeconds)
	assert.Equal(t, 1.5, m.PerStepSeconds["s1"])
}

func TestExecutionContextOutputsSnapshotIsIndependent(t *testing.T) {
	ec := newExecutionContext("wf1", 1)
	ec.appendOutput(core.NewAgentOutput("a1", "first", 0.5))

	snap := ec.Outputs()
	ec.appendOutput(core.NewAgentOutput("a1", "second", 0.5))

	assert.Len(t, snap, 1, "a previously taken snapshot must not observe later appends")
	assert.Len(t, ec.Outputs(), 2)
}

func TestBuildResultPicksLastNonEmptyContentAndMeanConfidence(t *testing.T) {
	outputs := []core.AgentOutput{
		core.NewAgentOutput("a1", "first", 0.4),
		core.NewAgentOutput("a2", "", 0.6),
		core.NewAgentOutput("a3", "last", 0.8),
	}
	result := buildResult("wf1", StateCompleted, outputs, Metrics{TotalSteps: 3, CompletedSteps: 3})

	assert.Equal(t, "last", result.FinalOutput)
	assert.InDelta(t, 0.6, result.Confidence, 0.001)
	assert.Equal(t, StateCompleted, result.State)
}

func TestBuildResultEmptyOutputs(t *testing.T) {
	result := buildResult("wf1", StateCancelled, nil, Metrics{})
	assert.Equal(t, "", result.FinalOutput)
	assert.Equal(t, 0.0, result.Confidence)
}
