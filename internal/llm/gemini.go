package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient completes prompts with the Gemini API. A genai client is kept
// per API key so a key change in the configuration takes effect immediately.
type GeminiClient struct {
	baseURL string

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiClient creates a backend. baseURL overrides the API endpoint and is
// normally empty.
func NewGeminiClient(baseURL string) *GeminiClient {
	return &GeminiClient{baseURL: baseURL, clients: make(map[string]*genai.Client)}
}

func (g *GeminiClient) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.clients[apiKey] = c
	return c, nil
}

func (g *GeminiClient) Complete(ctx context.Context, comp Completion) (string, error) {
	if comp.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	c, err := g.client(ctx, comp.APIKey)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(comp.Temperature)),
	}
	if comp.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(comp.MaxTokens)
	}
	if comp.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(comp.System, genai.RoleUser)
	}

	resp, err := c.Models.GenerateContent(ctx, comp.Model, genai.Text(comp.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}
