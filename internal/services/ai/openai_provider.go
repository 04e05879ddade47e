// File: internal/services/ai/openai_provider.go
package ai

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	config          *Config
	llmClient       *openai.Client
	embeddingClient *openai.Client
}

func NewOpenAIProvider(config *Config) (*OpenAIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}

	llmConfig := openai.DefaultConfig(config.LLMKey)
	if config.LLMBaseURL != "" {
		llmConfig.BaseURL = config.LLMBaseURL
	}
	llmClient := openai.NewClientWithConfig(llmConfig)

	// The embedding endpoint may live behind a different key/URL.
	embeddingKey := config.EmbeddingKey
	if embeddingKey == "" {
		embeddingKey = config.LLMKey
	}
	embeddingConfig := openai.DefaultConfig(embeddingKey)
	if config.EmbeddingBaseURL != "" {
		embeddingConfig.BaseURL = config.EmbeddingBaseURL
	}
	embeddingClient := openai.NewClientWithConfig(embeddingConfig)

	return &OpenAIProvider{
		config:          config,
		llmClient:       llmClient,
		embeddingClient: embeddingClient,
	}, nil
}

func (p *OpenAIProvider) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.config.EmbeddingModel),
	}

	resp, err := p.embeddingClient.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, NewProviderError("embedding", "failed to create embedding", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &AIError{
			Type:      ErrTypeProvider,
			Operation: "embedding",
			Message:   "empty embedding response",
		}
	}
	return resp.Data[0].Embedding, nil
}

// StreamCompletion streams a completion, forwarding reasoning and
// content deltas to onDelta as they arrive. A non-nil error from the
// callback aborts the stream.
func (p *OpenAIProvider) StreamCompletion(ctx context.Context, messages []TurnMessage, onDelta func(StreamDelta) error) error {
	req := openai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: p.config.Temperature,
		TopP:        p.config.TopP,
	}

	stream, err := p.llmClient.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return NewProviderError("streaming", "failed to create stream", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return NewProviderError("streaming", "stream receive error", err)
		}

		if len(response.Choices) == 0 || onDelta == nil {
			continue
		}
		delta := StreamDelta{
			Content:   response.Choices[0].Delta.Content,
			Reasoning: response.Choices[0].Delta.ReasoningContent,
		}
		if delta.Content == "" && delta.Reasoning == "" {
			continue
		}
		if cbErr := onDelta(delta); cbErr != nil {
			return cbErr
		}
	}
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	return nil
}

func toOpenAIMessages(messages []TurnMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Name:    m.Name,
			Content: m.Content,
		})
	}
	return out
}
