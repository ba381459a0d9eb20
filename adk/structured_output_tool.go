package adk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimbuslabs/conductor/core"
	"github.com/nimbuslabs/conductor/generator"
)

// StructuredOutputTool accepts {prompt, schema} and returns the generator's
// JSON response parsed into a plain value. Grounded on spec.md §4.4;
// wiring-wise it plays the same "schema in, generator call, parsed value
// out" role as the teacher's AITool (ai/ai_tool.go) but synchronous and
// JSON-typed rather than free text.
type StructuredOutputTool struct {
	id     string
	model  string
	gen    generator.Generator
	logger core.Logger
	cache  SchemaCache
}

// SchemaCache optionally memoizes {prompt,schema} -> parsed result, so
// repeated structured-output calls with identical inputs skip the
// generator round trip. A nil cache (the default) disables memoization.
type SchemaCache interface {
	Get(ctx context.Context, key string) (map[string]interface{}, bool)
	Set(ctx context.Context, key string, value map[string]interface{})
}

// StructuredOutputOption configures a StructuredOutputTool.
type StructuredOutputOption func(*StructuredOutputTool)

// WithSchemaCache attaches a SchemaCache (e.g. the Redis-backed one in
// this package) to memoize identical calls.
func WithSchemaCache(cache SchemaCache) StructuredOutputOption {
	return func(t *StructuredOutputTool) { t.cache = cache }
}

// WithToolLogger attaches a logger for cache hit/miss diagnostics.
func WithToolLogger(logger core.Logger) StructuredOutputOption {
	return func(t *StructuredOutputTool) { t.logger = logger }
}

// NewStructuredOutputTool builds the tool, calling model through gen.
func NewStructuredOutputTool(id, model string, gen generator.Generator, opts ...StructuredOutputOption) *StructuredOutputTool {
	t := &StructuredOutputTool{id: id, model: model, gen: gen, logger: core.NoOpLogger{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *StructuredOutputTool) ID() string   { return t.id }
func (t *StructuredOutputTool) Name() string { return "structured-output" }

func (t *StructuredOutputTool) Description() string {
	return "generates JSON matching a supplied schema"
}

// Schema describes this tool's own input contract: {prompt: string,
// schema: object}.
func (t *StructuredOutputTool) Schema() *Schema {
	return NewSchemaBuilder().
		StringProp("prompt", true).
		ObjectProp("schema", NewSchemaBuilder(), true).
		Build()
}

// Execute invokes the generator with responseMimeType=application/json
// and the caller-supplied schema, then parses the result.
func (t *StructuredOutputTool) Execute(ctx context.Context, parameters map[string]interface{}) (interface{}, error) {
	prompt, ok := parameters["prompt"].(string)
	if !ok || prompt == "" {
		return nil, NewMissingParameterError(t.id, "prompt")
	}
	schema, ok := parameters["schema"].(map[string]interface{})
	if !ok {
		return nil, NewMissingParameterError(t.id, "schema")
	}

	cacheKey := ""
	if t.cache != nil {
		if key, err := cacheKeyFor(prompt, schema); err == nil {
			cacheKey = key
			if cached, hit := t.cache.Get(ctx, cacheKey); hit {
				t.logger.Debug("structured output cache hit", map[string]interface{}{"tool_id": t.id})
				return cached, nil
			}
		}
	}

	resp, err := t.gen.Generate(ctx, prompt, "", generator.Config{
		Model:            t.model,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, NewExecutionFailedError(t.id, err.Error())
	}

	structured := resp.StructuredResponse
	if structured == nil {
		// Some Generator implementations only pre-parse JSON when they
		// already know the caller wants it; fall back to parsing the raw
		// text ourselves per spec.md §4.4 before giving up.
		if resp.Text == "" {
			return nil, NewExecutionFailedError(t.id, "generator returned no structured response")
		}
		if err := json.Unmarshal([]byte(resp.Text), &structured); err != nil {
			return nil, NewExecutionFailedError(t.id, "response was not valid JSON: "+err.Error())
		}
	}

	if t.cache != nil && cacheKey != "" {
		t.cache.Set(ctx, cacheKey, structured)
	}

	return structured, nil
}

func cacheKeyFor(prompt string, schema map[string]interface{}) (string, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("structured-output:%s:%s", prompt, string(data)), nil
}

var _ Tool = (*StructuredOutputTool)(nil)
