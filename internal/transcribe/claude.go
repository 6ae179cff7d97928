package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

type ClaudeEngine struct {
	client *anthropic.Client
	model  string
}

func NewClaudeEngine(apiKey string, model string, baseURL string) *ClaudeEngine {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(apiKey, opts...)

	return &ClaudeEngine{
		client: client,
		model:  model,
	}
}

func (e *ClaudeEngine) Name() string { return "claude" }

func (e *ClaudeEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	resp, err := e.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(e.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(
						anthropic.NewMessageContentSource(
							anthropic.MessagesContentSourceTypeBase64,
							req.MIME,
							req.Image,
						),
					),
					anthropic.NewTextMessageContent(req.prompt()),
				},
			},
		},
		MaxTokens: 2000,
	})
	if err != nil {
		return Result{}, err
	}

	if len(resp.Content) > 0 && resp.Content[0].Text != nil {
		text := strings.TrimSpace(*resp.Content[0].Text)
		return Result{Text: text, TokenCount: countTokens(text)}, nil
	}
	return Result{}, fmt.Errorf("no response content")
}
