package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerateQueuedResponses(t *testing.T) {
	m := NewMock().EnqueueText("first").EnqueueText("second")

	r1, err := m.Generate(context.Background(), "p1", "", Config{})
	require.NoError(t, err)
	assert.Equal(t, "first", r1.Text)

	r2, err := m.Generate(context.Background(), "p2", "", Config{})
	require.NoError(t, err)
	assert.Equal(t, "second", r2.Text)

	r3, err := m.Generate(context.Background(), "p3", "", Config{})
	require.NoError(t, err)
	assert.Equal(t, "echo: p3", r3.Text)

	assert.Equal(t, 3, m.CallCount())
}

func TestMockGenerateQueuedError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMock().Enqueue(MockResponse{Err: boom})

	_, err := m.Generate(context.Background(), "p", "", Config{})
	assert.ErrorIs(t, err, boom)
}
