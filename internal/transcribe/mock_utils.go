package transcribe

import (
	"context"
	"errors"
)

// MockEngine returns a fixed text (or error) without calling any provider.
type MockEngine struct {
	EngineName string
	Text       string
	Err        error
}

func (m *MockEngine) Name() string {
	if m.EngineName == "" {
		return "mock"
	}
	return m.EngineName
}

func (m *MockEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if m.Err != nil {
		return Result{}, m.Err
	}
	if len(req.Image) == 0 {
		return Result{}, errors.New("empty image")
	}
	return Result{Text: m.Text, TokenCount: countTokens(m.Text)}, nil
}
