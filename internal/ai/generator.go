// Package ai turns prompts and design screenshots into website code through an
// OpenAI-compatible chat completions API.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"spx-studio/internal/config"
	"spx-studio/internal/logging"

	"github.com/go-resty/resty/v2"
)

const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

const websiteSystemPrompt = `You are an expert web developer who specializes in creating clean, responsive HTML, CSS, and JavaScript code.
Your task is to generate code for a website based on the user's prompt.
The website should be modern, responsive, and follow best practices.
Return only the code without any explanations or markdown formatting.
Structure your response as JSON with these keys:
html: (the complete HTML code)
css: (the complete CSS code)
js: (the complete JavaScript code)`

const designSystemPrompt = `You are an expert web developer and designer. Your task is to analyze the provided design image
and create HTML, CSS, and JavaScript code that recreates this design as a functional website.
The website should be modern, responsive, and follow best practices.
Return only the code without any explanations or markdown formatting.
Structure your response as JSON with these keys:
html: (the complete HTML code)
css: (the complete CSS code)
js: (the complete JavaScript code)`

const designUserPrompt = "Analyze this Canva design and create a website that matches this design. Generate the HTML, CSS, and JavaScript code."

var (
	ErrNotConfigured = errors.New("ai: no api key configured")
	ErrEmptyResponse = errors.New("ai: empty completion")
)

// Result is generated website code. Source tells whether the model produced it
// or the static fallback was used.
type Result struct {
	HTML    string `json:"html"`
	CSS     string `json:"css"`
	JS      string `json:"js"`
	Preview string `json:"preview"`
	Source  string `json:"source"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Generator struct {
	client *resty.Client
	model  string
	apiKey string
}

func NewGenerator(cfg config.AIConfig) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", "spx-studio/1.0").
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Generator{client: client, model: cfg.Model, apiKey: cfg.APIKey}
}

// GenerateWebsite builds a site from a text prompt. It never fails: any error
// from the model yields the static template.
func (g *Generator) GenerateWebsite(ctx context.Context, prompt string) *Result {
	messages := []chatMessage{
		{Role: "system", Content: websiteSystemPrompt},
		{Role: "user", Content: "Create a website for: " + prompt},
	}

	result, err := g.complete(ctx, messages)
	if err != nil {
		logging.WithContext(ctx).Warn("website generation failed, using template", logging.Err(err))
		return FallbackWebsite(prompt)
	}
	return result
}

// AnalyzeDesign recreates a design from a base64 image, with or without a
// data URL prefix.
func (g *Generator) AnalyzeDesign(ctx context.Context, imageData string) *Result {
	messages := []chatMessage{
		{Role: "system", Content: designSystemPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: designUserPrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + StripDataURL(imageData)}},
		}},
	}

	result, err := g.complete(ctx, messages)
	if err != nil {
		logging.WithContext(ctx).Warn("design analysis failed, using template", logging.Err(err))
		return FallbackDesign()
	}
	return result
}

// StripDataURL returns the base64 payload of a data URL.
func StripDataURL(data string) string {
	if i := strings.Index(data, "base64,"); i >= 0 {
		return data[i+len("base64,"):]
	}
	return data
}

func (g *Generator) complete(ctx context.Context, messages []chatMessage) (*Result, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var out chatResponse
	var apiErr apiError
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:          g.model,
			Messages:       messages,
			ResponseFormat: map[string]string{"type": "json_object"},
		}).
		SetResult(&out).
		SetError(&apiErr).
		ForceContentType("application/json").
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("ai: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ai: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	return parseContent(out.Choices[0].Message.Content)
}

// parseContent accepts the JSON object asked for in the prompt or, failing
// that, a bare HTML document.
func parseContent(content string) (*Result, error) {
	content = stripFences(content)

	var parsed struct {
		HTML string `json:"html"`
		CSS  string `json:"css"`
		JS   string `json:"js"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		if !strings.Contains(strings.ToLower(content), "<html") {
			return nil, fmt.Errorf("ai: decode completion: %w", err)
		}
		parsed.HTML = content
	}
	if strings.TrimSpace(parsed.HTML) == "" {
		return nil, ErrEmptyResponse
	}

	result := &Result{HTML: parsed.HTML, CSS: parsed.CSS, JS: parsed.JS, Source: SourceAI}
	if parsed.CSS == "" && parsed.JS == "" && hasInlineAssets(parsed.HTML) {
		html, css, js, err := SplitDocument(parsed.HTML)
		if err != nil {
			return nil, fmt.Errorf("ai: split document: %w", err)
		}
		result.HTML, result.CSS, result.JS = html, css, js
	}
	return result, nil
}
