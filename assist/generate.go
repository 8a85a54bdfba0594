package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxReplyBytes bounds how much of an upstream reply is read.
const maxReplyBytes = 4 << 20

// Generator performs a single chat completion via an OpenAI-compatible API.
type Generator struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	referer     string // OpenRouter attribution, sent as HTTP-Referer
	title       string // OpenRouter attribution, sent as X-Title
	client      *http.Client
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Referer     string
	Title       string
	// Client defaults to an http.Client with a 90s timeout.
	Client *http.Client
}

// NewGenerator creates a generator from options.
func NewGenerator(opts GeneratorOptions) *Generator {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &Generator{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		referer:     opts.Referer,
		title:       opts.Title,
		client:      client,
	}
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

// Generate sends the prompt and returns the text of the first choice.
// A non-2xx status yields a KindUpstream *Error; a reply with no choices
// yields an empty string.
func (g *Generator) Generate(ctx context.Context, p Prompt) (string, error) {
	reqBody := chatCompletionsRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(resp.StatusCode, body)
	}

	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, excerpt(string(body), upstreamExcerptLimit))
	}

	if result.Error != nil && len(result.Choices) == 0 {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

// setHeaders sets common headers for API requests.
func (g *Generator) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if g.referer != "" {
		req.Header.Set("HTTP-Referer", g.referer)
	}
	if g.title != "" {
		req.Header.Set("X-Title", g.title)
	}
}
