package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerFansOutToAllEngines(t *testing.T) {
	runner := NewRunner([]Engine{
		&MockEngine{EngineName: "a", Text: "Section Two"},
		&MockEngine{EngineName: "b", Text: "Section Too"},
		&MockEngine{EngineName: "c", Text: "Section Two"},
	})

	slots := runner.Run(context.Background(), "d1", Request{Image: []byte{1}, MIME: "image/png"})
	require.Len(t, slots, 3)

	for i, slot := range slots {
		assert.Equal(t, i, slot.SlotIndex)
		assert.Equal(t, "d1", slot.DossierID)
		assert.NotEmpty(t, slot.TranscriptionID)
		assert.True(t, slot.Success)
		assert.Equal(t, 2, slot.TokenCount)
	}
	assert.Equal(t, "Section Two", slots[0].RawText)
	assert.Equal(t, "Section Too", slots[1].RawText)

	// Every slot versions independently, so the IDs must differ.
	assert.NotEqual(t, slots[0].TranscriptionID, slots[1].TranscriptionID)
}

func TestRunnerIsolatesEngineFailure(t *testing.T) {
	runner := NewRunner([]Engine{
		&MockEngine{EngineName: "good", Text: "readable text"},
		&MockEngine{EngineName: "bad", Err: errors.New("provider timeout")},
	})

	slots := runner.Run(context.Background(), "d1", Request{Image: []byte{1}, MIME: "image/png"})
	require.Len(t, slots, 2)

	assert.True(t, slots[0].Success)
	assert.False(t, slots[1].Success)
	assert.Equal(t, "provider timeout", slots[1].Error)
	assert.Empty(t, slots[1].RawText)
}

func TestRequestPromptDefault(t *testing.T) {
	assert.Equal(t, DefaultPrompt, Request{}.prompt())
	assert.Equal(t, "custom", Request{Hint: "custom"}.prompt())
}
