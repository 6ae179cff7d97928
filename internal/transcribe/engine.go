package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/scrivener/internal/config"
)

// DefaultPrompt is sent to vision models alongside the page image.
const DefaultPrompt = "Transcribe the legal property description in this image exactly as written. " +
	"Preserve all punctuation, degree marks, parenthetical numbers and abbreviations. " +
	"Return only the transcribed text."

// Request carries one page image to an engine.
type Request struct {
	Image []byte
	MIME  string
	// Hint replaces the default transcription prompt when set.
	Hint string
}

func (r Request) prompt() string {
	if r.Hint != "" {
		return r.Hint
	}
	return DefaultPrompt
}

// Result is the raw engine output; it becomes a draft slot's immutable v1.
type Result struct {
	Text       string
	TokenCount int
}

// Engine produces one independent draft transcription of an image.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// NewEngine builds a provider from configuration. Ollama routes through the
// OpenAI-compatible client, same as any local deployment exposing that API.
func NewEngine(ctx context.Context, cfg config.EngineConfig) (Engine, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "claude":
		return NewClaudeEngine(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "openai":
		return NewOpenAIEngine(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "gemini":
		return NewGeminiEngine(ctx, cfg.APIKey, cfg.Model)

	case "ollama":
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // ignored by Ollama but required by the client
		}
		return NewOpenAIEngine(apiKey, cfg.Model, baseURL), nil

	case "tesseract":
		return NewTesseractEngine(cfg.Language), nil

	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", provider)
	}
}

func countTokens(text string) int {
	return len(strings.Fields(text))
}
