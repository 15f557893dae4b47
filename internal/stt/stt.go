package stt

import (
	"context"
	"fmt"

	"github.com/lukasbauer/scribe/internal/audio"
)

// Transcriber defines the interface for speech-to-text providers.
//
// Transcribe is a blocking model call with no internal retry; callers own
// retry policy and bound latency through ctx.
type Transcriber interface {
	// Transcribe converts a decoded waveform into text. Silence may yield "".
	Transcribe(ctx context.Context, wf audio.Waveform) (string, error)

	// Warmup verifies the provider is reachable and configured.
	Warmup(ctx context.Context) error
}

// TranscriptionError reports a failed model invocation or a response that
// carried no output.
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("%s transcription failed: %v", e.Provider, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
