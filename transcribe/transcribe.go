// Package transcribe implements core.Transcriber backends for voice input.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/AdamTheFirstGitman/scribe/core"
)

// Options configure the Whisper transcriber.
type Options struct {
	// Model selects the transcription model.
	Model openai.AudioModel

	// Language hints the input language as an ISO-639-1 code. Empty lets
	// the model detect it.
	Language string
}

// Whisper transcribes audio through the OpenAI audio API.
type Whisper struct {
	client openai.Client
	opts   Options
}

// NewWhisper creates a transcriber authenticating with the given API key.
func NewWhisper(apiKey string, optFns ...func(o *Options)) *Whisper {
	return NewWhisperFromClient(openai.NewClient(option.WithAPIKey(apiKey)), optFns...)
}

// NewWhisperFromClient creates a transcriber using a preconfigured client.
func NewWhisperFromClient(client openai.Client, optFns ...func(o *Options)) *Whisper {
	opts := Options{
		Model: openai.AudioModelWhisper1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Whisper{client: client, opts: opts}
}

// WithLanguage sets the expected input language.
func WithLanguage(lang string) func(o *Options) {
	return func(o *Options) { o.Language = lang }
}

// Transcribe converts audio to text. The mime type selects the upload
// filename extension the API uses for format detection.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", &core.TranscriptionError{Err: errors.New("empty audio payload")}
	}

	params := openai.AudioTranscriptionNewParams{
		Model: w.opts.Model,
		File:  openai.File(bytes.NewReader(audio), "audio"+extensionFor(mimeType), mimeType),
	}
	if w.opts.Language != "" {
		params.Language = openai.String(w.opts.Language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", &core.TranscriptionError{Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &core.TranscriptionError{Err: errors.New("no text produced")}
	}
	return text, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	default:
		return ".mp3"
	}
}
