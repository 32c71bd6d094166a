package transcribe

import (
	"context"
	"errors"

	"github.com/AdamTheFirstGitman/scribe/core"
)

// Static is a Transcriber returning a fixed text for any audio payload.
// Useful in tests and local runs without an API key.
type Static struct {
	Text string
	Err  error
}

// NewStatic creates a transcriber that always yields text.
func NewStatic(text string) *Static { return &Static{Text: text} }

// Transcribe returns the configured text, or the configured error.
func (s *Static) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if len(audio) == 0 {
		return "", &core.TranscriptionError{Err: errors.New("empty audio payload")}
	}
	return s.Text, nil
}
