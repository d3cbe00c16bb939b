package media

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// ErrTranscriptionDisabled is returned when no speech-to-text backend is configured.
var ErrTranscriptionDisabled = errors.New("transcription disabled")

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Disabled is the Transcriber used when no API key is configured.
type Disabled struct{}

// Transcribe always fails with ErrTranscriptionDisabled.
func (Disabled) Transcribe(context.Context, string) (string, error) {
	return "", ErrTranscriptionDisabled
}

// OpenAI transcribes through the OpenAI audio API with a fixed language hint.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAI builds a transcriber. baseURL may be empty for the public endpoint.
func NewOpenAI(apiKey, baseURL, model, language string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: language,
	}
}

// Transcribe uploads the file at path and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: path,
		Language: o.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
