package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/nimbuslabs/conductor/core"
)

// ErrHTTPStatus is the wrapped cause for non-200, non-429 provider
// responses; the body text itself is carried in the FrameworkError message.
var ErrHTTPStatus = errors.New("unexpected http status")

// HTTPClient is a Generator backed by an OpenAI-compatible chat-completions
// endpoint, grounded on the teacher's OpenAIClient in ai/client.go. It is
// the one concrete Generator this module ships; any other backend can be
// substituted by implementing the Generator interface.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     core.Logger
}

// Option configures an HTTPClient, following the teacher's AIOption
// functional-options pattern from ai/provider.go.
type Option func(*HTTPClient)

// WithBaseURL overrides the default OpenAI-compatible endpoint, letting the
// same client talk to a self-hosted or alternate-provider gateway.
func WithBaseURL(url string) Option {
	return func(c *HTTPClient) { c.baseURL = url }
}

// WithHTTPClient replaces the underlying *http.Client, e.g. to set a
// non-default timeout or transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithLogger attaches a logger used to record slow or failed calls.
func WithLogger(logger core.Logger) Option {
	return func(c *HTTPClient) { c.logger = logger }
}

// NewHTTPClient creates a generator bound to a single API key. apiKey falls
// back to CONDUCTOR_API_KEY when empty, matching the teacher's
// environment-fallback behavior in NewOpenAIClient.
func NewHTTPClient(apiKey string, opts ...Option) *HTTPClient {
	if apiKey == "" {
		apiKey = os.Getenv("CONDUCTOR_API_KEY")
	}
	c := &HTTPClient{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	Temperature    float32                `json:"temperature"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

// Generate implements Generator.
func (c *HTTPClient) Generate(ctx context.Context, prompt, systemInstruction string, cfg Config) (*Response, error) {
	if c.apiKey == "" {
		return nil, core.NewConfigurationError("generator.Generate", "no API key configured")
	}

	var messages []chatMessage
	if systemInstruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemInstruction})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	reqBody := chatRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
	}
	if cfg.ResponseMIMEType == "application/json" {
		reqBody.ResponseFormat = map[string]interface{}{"type": "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewNetworkError("generator.Generate", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, core.NewRateLimitError("generator.Generate", "", string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewNetworkError("generator.Generate",
			fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, body), ErrHTTPStatus)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse generation response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, core.NewInvalidResponseError("generator.Generate", "provider returned no choices")
	}

	text := parsed.Choices[0].Message.Content
	result := &Response{Text: text}

	if cfg.ResponseMIMEType == "application/json" {
		var structured map[string]interface{}
		if err := json.Unmarshal([]byte(text), &structured); err != nil {
			return nil, core.NewInvalidResponseError("generator.Generate", "response was not valid JSON: "+err.Error())
		}
		result.StructuredResponse = structured
	}

	return result, nil
}

var _ Generator = (*HTTPClient)(nil)
