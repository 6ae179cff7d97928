package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIEngine struct {
	client *openai.Client
	model  string
}

func NewOpenAIEngine(apiKey string, model string, baseURL string) *OpenAIEngine {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIEngine{
		client: client,
		model:  model,
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", req.MIME, base64.StdEncoding.EncodeToString(req.Image))

	chatReq := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.prompt(),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}
	resp, err := e.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Result{}, err
	}
	if len(resp.Choices) > 0 {
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		return Result{Text: text, TokenCount: countTokens(text)}, nil
	}
	return Result{}, fmt.Errorf("no response choices")
}
