package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

type gemini struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

func newGemini(apiKey, model string) Provider {
	return &gemini{apiKey: apiKey, model: model}
}

// getClient lazily builds the GenAI client so construction never needs a
// context or network access.
func (g *gemini) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	if g.apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  g.apiKey,
	})
	if err != nil {
		return nil, err
	}

	g.client = client
	return client, nil
}

func (g *gemini) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", g.model)
	}

	return text, nil
}
