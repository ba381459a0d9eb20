package adk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslabs/conductor/generator"
)

func TestStructuredOutputToolMissingParameters(t *testing.T) {
	tool := NewStructuredOutputTool("tool-1", "test-model", generator.NewMock())

	_, err := tool.Execute(context.Background(), map[string]interface{}{"schema": map[string]interface{}{}})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.ErrorIs(t, toolErr, ErrMissingParameter)
	assert.Equal(t, "prompt", toolErr.Param)

	_, err = tool.Execute(context.Background(), map[string]interface{}{"prompt": "hi"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "schema", toolErr.Param)
}

func TestStructuredOutputToolReturnsPreParsedStructuredResponse(t *testing.T) {
	mock := generator.NewMock()
	mock.Enqueue(generator.MockResponse{
		Text:               `{"name":"ada"}`,
		StructuredResponse: map[string]interface{}{"name": "ada"},
	})
	tool := NewStructuredOutputTool("tool-1", "test-model", mock)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"prompt": "describe ada",
		"schema": map[string]interface{}{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "ada"}, result)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "application/json", mock.Calls[0].Config.ResponseMIMEType)
}

func TestStructuredOutputToolParsesRawTextWhenGeneratorDidNotPreParse(t *testing.T) {
	mock := generator.NewMock()
	mock.Enqueue(generator.MockResponse{Text: `{"score":5}`})
	tool := NewStructuredOutputTool("tool-1", "test-model", mock)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"prompt": "score it",
		"schema": map[string]interface{}{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"score": float64(5)}, result)
}

func TestStructuredOutputToolInvalidJSONIsExecutionFailed(t *testing.T) {
	mock := generator.NewMock()
	mock.Enqueue(generator.MockResponse{Text: `not json`})
	tool := NewStructuredOutputTool("tool-1", "test-model", mock)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"prompt": "score it",
		"schema": map[string]interface{}{"type": "object"},
	})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.ErrorIs(t, toolErr, ErrExecutionFailed)
}

func TestStructuredOutputToolGeneratorErrorSurfacesAsExecutionFailed(t *testing.T) {
	mock := generator.NewMock()
	mock.Enqueue(generator.MockResponse{Err: errors.New("upstream boom")})
	tool := NewStructuredOutputTool("tool-1", "test-model", mock)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"prompt": "score it",
		"schema": map[string]interface{}{"type": "object"},
	})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.ErrorIs(t, toolErr, ErrExecutionFailed)
	assert.Contains(t, toolErr.Error(), "upstream boom")
}

type fakeCache struct {
	store map[string]map[string]interface{}
	hits  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]map[string]interface{}{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (map[string]interface{}, bool) {
	v, ok := c.store[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, key string, value map[string]interface{}) {
	c.store[key] = value
}

func TestStructuredOutputToolCachesIdenticalCalls(t *testing.T) {
	mock := generator.NewMock()
	mock.Enqueue(generator.MockResponse{StructuredResponse: map[string]interface{}{"ok": true}})
	cache := newFakeCache()
	tool := NewStructuredOutputTool("tool-1", "test-model", mock, WithSchemaCache(cache))

	params := map[string]interface{}{
		"prompt": "same prompt",
		"schema": map[string]interface{}{"type": "object"},
	}

	first, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	second, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.CallCount(), "second call should be served from cache, not the generator")
	assert.Equal(t, 1, cache.hits)
}

func TestStructuredOutputToolSchemaDescribesOwnContract(t *testing.T) {
	tool := NewStructuredOutputTool("tool-1", "test-model", generator.NewMock())
	schema := tool.Schema()

	assert.Equal(t, "object", schema.Type)
	assert.ElementsMatch(t, []string{"prompt", "schema"}, schema.Required)
	assert.Equal(t, "string", schema.Properties["prompt"].Type)
	assert.Equal(t, "object", schema.Properties["schema"].Type)
}
