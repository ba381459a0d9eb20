package adk

import (
	"context"
	"testing"

	"github.com/nimbuslabs/conductor/core"
	"github.com/nimbuslabs/conductor/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopStopsAtConfidenceThreshold(t *testing.T) {
	mock := generator.NewMock().Enqueue(
		generator.MockResponse{Text: "r1"},
		generator.MockResponse{Text: "r2"},
		generator.MockResponse{Text: "r3"},
		generator.MockResponse{Text: "r4"},
		generator.MockResponse{Text: "r5"},
		generator.MockResponse{Text: "r6"},
	)
	confidences := []float64{0.60, 0.72, 0.80, 0.88, 0.96, 0.96}
	call := 0
	agent := NewLLMAgent("child", "Child", "", "gpt-4", mock, nil, WithConfidenceHeuristic(func(string) float64 {
		c := confidences[call]
		call++
		return c
	}))

	loop := NewLoop("loop1", "Loop", []core.Agent{agent}, 10, ConfidenceThreshold(0.95), WithMinIterations(1))
	out, err := loop.Process(context.Background(), core.NewAgentInput("go"))
	require.NoError(t, err)

	assert.InDelta(t, 0.96, out.Confidence, 0.0001)
	total, ok := out.StructuredData["total_iterations"].Int()
	require.True(t, ok)
	assert.Equal(t, int64(5), total)
}

func TestLoopIterationsExitCondition(t *testing.T) {
	agent := agentWithConfidence("child", "r", 0.5)
	loop := NewLoop("loop1", "Loop", []core.Agent{agent}, 10, Iterations(3))

	out, err := loop.Process(context.Background(), core.NewAgentInput("go"))
	require.NoError(t, err)
	total, _ := out.StructuredData["total_iterations"].Int()
	assert.Equal(t, int64(3), total)
}

func TestLoopZeroIterationsBoundary(t *testing.T) {
	agent := agentWithConfidence("child", "r", 0.5)
	loop := NewLoop("loop1", "Loop", []core.Agent{agent}, 10, Iterations(0))

	out, err := loop.Process(context.Background(), core.NewAgentInput("go"))
	require.NoError(t, err)
	assert.Equal(t, "", out.Content)
	assert.Equal(t, float64(0), out.Confidence)
	total, _ := out.StructuredData["total_iterations"].Int()
	assert.Equal(t, int64(0), total)
}

func TestSelfArgumentationFactoryDefaults(t *testing.T) {
	agent := agentWithConfidence("child", "r", 0.5)
	loop := NewSelfArgumentation("self1", "Self-Argue", agent, 0)
	assert.Equal(t, 7, loop.maxIterations)
	assert.Equal(t, 5, loop.minIterations)
	assert.Equal(t, ExitConfidenceThreshold, loop.exit.Kind)
	assert.Equal(t, 0.95, loop.exit.Threshold)
}

func TestLoopEmptyChildrenConfigError(t *testing.T) {
	loop := NewLoop("loop1", "Loop", nil, 5, Iterations(1))
	_, err := loop.Process(context.Background(), core.NewAgentInput("go"))
	require.Error(t, err)
}
