// Package generator defines the single external capability the core
// depends on: turning a prompt into text. spec.md §6 treats the hosted
// multimodal backend purely as a collaborator - generate(prompt,
// systemInstruction, generationConfig) -> text - so that's the entire
// surface kept here. Everything upload/codec/camera-related in the source
// SDK is out of scope per spec.md §1.
package generator

import "context"

// Config configures one generation call.
type Config struct {
	Model            string
	Temperature      float32
	MaxOutputTokens  int
	ResponseMIMEType string // e.g. "application/json" for the structured-output tool
	ResponseSchema   map[string]interface{}
}

// Response is what a Generator returns for one call.
type Response struct {
	Text               string
	StructuredResponse map[string]interface{}
}

// Generator is the external capability LLM-backed agents and the
// structured-output tool call through. Implementations surface transport
// errors as opaque errors; the key manager only cares that a call failed,
// not why.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string, cfg Config) (*Response, error)
}
