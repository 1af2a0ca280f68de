package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type openaiCompatible struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenAICompatible(apiKey, baseURL, model string) Provider {
	return &openaiCompatible{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  http.DefaultClient,
	}
}

func (o *openaiCompatible) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	var messages []openaiMessage

	if systemPrompt != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: prompt})

	// Temperature 0 keeps parsed intents reproducible across runs.
	reqBody := openaiRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var oaiResp openaiResponse

	if err := json.Unmarshal(body, &oaiResp); err != nil {
		return "", err
	}

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return oaiResp.Choices[0].Message.Content, nil
}
