// Package tts defines the text-to-speech provider interface. Synthesis is
// batch-mode: one phrase in, one PCM buffer out. Playback, caching and
// cancellation live above this interface.
package tts

import (
	"context"

	"github.com/fantasma-ai/fantasma/pkg/audio"
)

// Provider renders text to mono 16-bit PCM. Implementations must be safe for
// concurrent use.
type Provider interface {
	Synthesize(ctx context.Context, text string) (audio.Buffer, error)
	Close() error
}
