package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var ErrEmptyTranscript = errors.New("engine returned empty transcript")

// Whisper transcribes local audio with the language pinned up front.
// Transcription only, no translate task.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

func New(apiKey, language string) *Whisper {
	return NewWithConfig(openai.DefaultConfig(apiKey), language)
}

// NewWithConfig allows pointing the client at a different base URL,
// used by tests and self-hosted whisper deployments.
func NewWithConfig(cfg openai.ClientConfig, language string) *Whisper {
	return &Whisper{
		client:   openai.NewClientWithConfig(cfg),
		model:    openai.Whisper1,
		language: language,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcribing %q: %w", audioPath, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
