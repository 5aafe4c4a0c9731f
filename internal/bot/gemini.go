package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"taskhub/internal/apperr"
)

// --- Gemini request/response types ---

// Content is one turn in a Gemini conversation. Role is "user" or "model";
// tool results travel back in a "user" content with functionResponse parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a content fragment: plain text, a tool invocation requested by
// the model, or a tool result fed back to it.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall is the model's request to run a tool.
type FunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// FunctionDeclaration describes a tool in the provider's schema format.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *Content               `json:"systemInstruction,omitempty"`
	Contents          []Content              `json:"contents"`
	Tools             []geminiToolSet        `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiToolSet struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Provider generates the next model turn given the conversation so far.
type Provider interface {
	Generate(ctx context.Context, system string, contents []Content, tools []FunctionDeclaration) (Content, error)
}

// GeminiClient speaks the Gemini generateContent REST API.
type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGeminiClient builds a client for the given endpoint, key and model.
func NewGeminiClient(baseURL, apiKey, model string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Generate runs one model call. Transport and provider failures come back
// as Unavailable so the chat endpoint maps them to 503.
func (g *GeminiClient) Generate(ctx context.Context, system string, contents []Content, tools []FunctionDeclaration) (Content, error) {
	reqBody := geminiRequest{
		Contents:         contents,
		GenerationConfig: geminiGenerationConfig{Temperature: 0},
	}
	if system != "" {
		reqBody.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}
	if len(tools) > 0 {
		reqBody.Tools = []geminiToolSet{{FunctionDeclarations: tools}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Content{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Content{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Content{}, apperr.Wrap(apperr.Unavailable, "language model unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Content{}, apperr.Wrap(apperr.Unavailable, "language model unreachable", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Content{}, apperr.Wrap(apperr.Unavailable, "language model returned garbage", err)
	}
	if parsed.Error != nil {
		return Content{}, apperr.E(apperr.Unavailable, fmt.Sprintf("language model error: %s", parsed.Error.Message))
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Candidates) == 0 {
		return Content{}, apperr.E(apperr.Unavailable, fmt.Sprintf("language model returned status %d with no candidates", resp.StatusCode))
	}

	content := parsed.Candidates[0].Content
	if content.Role == "" {
		content.Role = "model"
	}
	return content, nil
}

// FunctionCalls extracts the tool invocations from a model turn.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// Text joins the plain-text parts of a model turn.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		out += p.Text
	}
	return out
}
