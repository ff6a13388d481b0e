package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openaiProvider talks to OpenAI or any OpenAI-compatible API.
type openaiProvider struct {
	api   *openai.Client
	model string
}

func newOpenAIProvider(baseURL, apiKey, modelName string) (*openaiProvider, error) {
	if modelName == "" {
		return nil, errors.New("openai model is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &openaiProvider{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

func (p *openaiProvider) modelID() string { return p.model }

func (p *openaiProvider) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", &ErrProviderUnavailable{Err: fmt.Errorf("LLM API call: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", &ErrInvalidResponse{Err: errors.New("LLM returned no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}
