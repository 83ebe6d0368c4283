// Package stt defines the speech-to-text provider interface. Transcription is
// batch-mode: one finished utterance in, one transcript out. The model behind
// the interface is an external collaborator.
package stt

import (
	"context"

	"github.com/fantasma-ai/fantasma/pkg/audio"
)

// Result is a finished transcription.
type Result struct {
	// Text is the raw transcript, before any hygiene pass.
	Text string

	// Language is the detected or configured BCP-47 language code, when the
	// backend reports one.
	Language string
}

// Provider transcribes utterance buffers. Implementations must be safe for
// concurrent use; the pipeline may overlap a late transcription with the next
// utterance.
type Provider interface {
	Transcribe(ctx context.Context, b audio.Buffer) (Result, error)
	Close() error
}
