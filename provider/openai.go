package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4o

// OpenAIExtractor calls the Chat Completions API in JSON mode.
type OpenAIExtractor struct {
	client *openai.Client
	config Config
}

// NewOpenAIExtractor creates an OpenAI-backed extractor. BaseURL overrides the
// API endpoint, which is how tests and compatible gateways are wired in.
func NewOpenAIExtractor(cfg Config) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

func (p *OpenAIExtractor) Name() string { return NameOpenAI }

// Extract sends the questionnaire and documents and returns the first choice's content.
func (p *OpenAIExtractor) Extract(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
