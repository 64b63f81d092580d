package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/microlens/microlens-backend/internal/config"
	"github.com/microlens/microlens-backend/internal/providers"
	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a microscopy analysis assistant. Describe what the " +
	"micrograph shows: visible structures, staining, likely specimen type and any " +
	"notable artifacts. Be precise and note uncertainty explicitly."

// Provider implements providers.VisionProvider on the OpenAI chat API
type Provider struct {
	config config.AIConfig
	client *openai.Client
}

// NewProvider creates a new OpenAI vision provider
func NewProvider(cfg config.AIConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// AnalyzeMedia performs a single-shot analysis of the uploaded media
func (p *Provider) AnalyzeMedia(ctx context.Context, input providers.AnalysisInput) (*providers.Output, error) {
	prompt := input.Prompt
	if prompt == "" {
		prompt = "Analyze this microscopy image."
	}
	if input.TargetLanguage != "" {
		prompt = fmt.Sprintf("%s Answer in %s.", prompt, input.TargetLanguage)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		input.Media.MimeType, base64.StdEncoding.EncodeToString(input.Media.Data))

	req := openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	return p.complete(ctx, req)
}

// ContinueChat continues a conversation with text only
func (p *Provider) ContinueChat(ctx context.Context, input providers.ChatInput) (*providers.Output, error) {
	return p.complete(ctx, p.chatRequest(input, false))
}

// StreamChat streams an assistant reply
func (p *Provider) StreamChat(ctx context.Context, input providers.ChatInput) (<-chan providers.StreamChunk, error) {
	chunks := make(chan providers.StreamChunk)

	go func() {
		defer close(chunks)

		stream, err := p.client.CreateChatCompletionStream(ctx, p.chatRequest(input, true))
		if err != nil {
			chunks <- providers.StreamChunk{Error: err.Error()}
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- providers.StreamChunk{FinishReason: "stop"}
				return
			}
			if err != nil {
				chunks <- providers.StreamChunk{Error: err.Error()}
				return
			}

			if len(response.Choices) > 0 {
				choice := response.Choices[0]
				chunk := providers.StreamChunk{Delta: choice.Delta.Content}
				if choice.FinishReason != "" {
					chunk.FinishReason = string(choice.FinishReason)
				}
				chunks <- chunk
			}
		}
	}()

	return chunks, nil
}

func (p *Provider) chatRequest(input providers.ChatInput, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(input.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: systemPrompt,
	})
	for _, turn := range input.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	message := input.Message
	if input.TargetLanguage != "" {
		message = fmt.Sprintf("%s\n\nAnswer in %s.", message, input.TargetLanguage)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: message,
	})

	return openai.ChatCompletionRequest{
		Model:    p.config.Model,
		Messages: messages,
		Stream:   stream,
	}
}

func (p *Provider) complete(ctx context.Context, req openai.ChatCompletionRequest) (*providers.Output, error) {
	req.Stream = false
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	return &providers.Output{Text: text, Model: resp.Model}, nil
}
