// Package wake defines the wake-word scoring provider interface. The neural
// scoring model itself is an external collaborator: the detection loop only
// sees a per-frame confidence score in the 0..1 range.
package wake

import (
	"context"

	"github.com/fantasma-ai/fantasma/pkg/audio"
)

// Scorer scores individual audio frames for wake-word presence.
//
// Scorers are stateful: models keep a rolling window of recent audio, so
// frames must be submitted in capture order by a single goroutine.
type Scorer interface {
	// Score returns the wake-word confidence for the frame, in 0..1.
	Score(ctx context.Context, f audio.Frame) (float64, error)

	// Reset clears the scorer's rolling window. Called after a trigger so
	// residual wake-word audio cannot re-trigger immediately.
	Reset(ctx context.Context) error

	// Close releases the scorer's resources.
	Close() error
}
