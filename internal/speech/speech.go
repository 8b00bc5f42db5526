// Package speech transcribes learner voice messages.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Language is the transcription language hint.
const Language = "de"

// ErrUnavailable is returned by a transcriber that is not configured.
var ErrUnavailable = errors.New("voice transcription not available")

// Transcriber turns audio into text.
type Transcriber interface {
	Available() bool
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// audioAPI is the slice of the OpenAI client used here.
type audioAPI interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Whisper transcribes through the OpenAI audio API.
type Whisper struct {
	api   audioAPI
	model string
}

// NewWhisper creates a Whisper transcriber. baseURL may be empty.
func NewWhisper(apiKey, baseURL string) *Whisper {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Whisper{api: openai.NewClientWithConfig(config), model: openai.Whisper1}
}

// Available reports true.
func (w *Whisper) Available() bool { return true }

// Transcribe sends audio to Whisper with the German language hint. An empty
// transcript is an error.
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "voice.ogg"
	}
	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   audio,
		FilePath: filename,
		Language: Language,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("transcribe audio: empty transcript")
	}
	slog.Debug("audio transcribed", "chars", len(text))
	return text, nil
}

// Disabled is the transcriber used when no API key is configured.
type Disabled struct{}

// Available reports false.
func (Disabled) Available() bool { return false }

// Transcribe always fails with ErrUnavailable.
func (Disabled) Transcribe(context.Context, io.Reader, string) (string, error) {
	return "", ErrUnavailable
}

// New returns a Whisper transcriber when apiKey is set, Disabled otherwise.
func New(apiKey, baseURL string) Transcriber {
	if apiKey == "" {
		slog.Info("voice transcription disabled: no API key")
		return Disabled{}
	}
	return NewWhisper(apiKey, baseURL)
}
