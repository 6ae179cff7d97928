package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiEngine struct {
	client *genai.Client
	model  string
}

func NewGeminiEngine(ctx context.Context, apiKey string, model string) (*GeminiEngine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{
		client: client,
		model:  model,
	}, nil
}

func (e *GeminiEngine) Name() string { return "gemini" }

func (e *GeminiEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	model := e.client.GenerativeModel(e.model)

	// genai wants the image subtype ("png"), not the full MIME type.
	format := strings.TrimPrefix(req.MIME, "image/")
	resp, err := model.GenerateContent(ctx, genai.ImageData(format, req.Image), genai.Text(req.prompt()))
	if err != nil {
		return Result{}, err
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		part := resp.Candidates[0].Content.Parts[0]
		if txt, ok := part.(genai.Text); ok {
			text := strings.TrimSpace(string(txt))
			return Result{Text: text, TokenCount: countTokens(text)}, nil
		}
	}

	return Result{}, fmt.Errorf("no response candidates or content")
}
