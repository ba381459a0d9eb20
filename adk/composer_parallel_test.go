package adk

import (
	"context"
	"testing"

	"github.com/nimbuslabs/conductor/core"
	"github.com/nimbuslabs/conductor/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agentWithConfidence(id, content string, confidence float64) core.Agent {
	return NewLLMAgent(id, id, "", "gpt-4", generator.NewMock().EnqueueText(content), nil,
		WithConfidenceHeuristic(func(string) float64 { return confidence }))
}

func TestParallelFanOutBestConfidence(t *testing.T) {
	children := []core.Agent{
		agentWithConfidence("a", "a", 0.6),
		agentWithConfidence("b", "b", 0.9),
		agentWithConfidence("c", "c", 0.8),
	}
	p := NewParallel("p1", "Parallel", children, WithMaxConcurrent(2), WithAggregationStrategy(BestConfidence))

	out, err := p.Process(context.Background(), core.NewAgentInput("go"))
	require.NoError(t, err)
	assert.Equal(t, "b", out.Content)
	assert.Equal(t, 0.9, out.Confidence)
}

func TestParallelConcatenatePreservesOriginalOrder(t *testing.T) {
	children := []core.Agent{
		agentWithConfidence("a", "a", 0.6),
		agentWithConfidence("b", "b", 0.9),
		agentWithConfidence("c", "c", 0.8),
	}
	p := NewParallel("p1", "Parallel", children)

	out, err := p.Process(context.Background(), core.NewAgentInput("go"))
	require.NoError(t, err)
	assert.Equal(t, "[a]: a\n[b]: b\n[c]: c", out.Content)
}

func TestParallelEmptyChildrenConfigError(t *testing.T) {
	p := NewParallel("p1", "Parallel", nil)
	_, err := p.Process(context.Background(), core.NewAgentInput("go"))
	require.Error(t, err)
}

func TestParallelFailFastPropagatesChildError(t *testing.T) {
	failing := NewLLMAgent("bad", "Bad", "", "gpt-4", generator.NewMock().Enqueue(generator.MockResponse{Err: assert.AnError}), nil)
	ok := agentWithConfidence("good", "fine", 0.5)

	p := NewParallel("p1", "Parallel", []core.Agent{failing, ok}, WithFailFast(true))
	_, err := p.Process(context.Background(), core.NewAgentInput("go"))
	require.Error(t, err)
}

func TestParallelLenientModeOmitsFailedChild(t *testing.T) {
	failing := NewLLMAgent("bad", "Bad", "", "gpt-4", generator.NewMock().Enqueue(generator.MockResponse{Err: assert.AnError}), nil)
	ok := agentWithConfidence("good", "fine", 0.5)

	p := NewParallel("p1", "Parallel", []core.Agent{failing, ok})
	out, err := p.Process(context.Background(), core.NewAgentInput("go"))
	require.NoError(t, err)
	assert.Contains(t, out.Content, "fine")
}

func TestParallelMaxConcurrentOneMatchesSequentialOrder(t *testing.T) {
	children := []core.Agent{
		agentWithConfidence("a", "ALPHA", 0.7),
		agentWithConfidence("b", "BETA", 0.85),
	}
	p := NewParallel("p1", "Parallel", children, WithMaxConcurrent(1), WithAggregationStrategy(Concatenate))
	out, err := p.Process(context.Background(), core.NewAgentInput("go"))
	require.NoError(t, err)
	assert.Equal(t, "[a]: ALPHA\n[b]: BETA", out.Content)
	assert.InDelta(t, 0.775, out.Confidence, 0.0001)
}
