// Package capture records a single utterance after a wake trigger. Frames are
// accumulated unconditionally (leading silence and hesitations are kept for
// the transcriber); the recording ends on trailing silence once speech was
// heard, or at a hard duration limit.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/vad"
)

// ErrStalled is returned when the frame stream stops delivering while a
// recording is in progress, which means the capture device died under us.
var ErrStalled = errors.New("capture: frame stream stalled")

// Config tunes utterance recording.
type Config struct {
	// SampleRate and FrameMs describe the incoming stream.
	SampleRate int
	FrameMs    int

	// TrailingSilence ends the recording this long after the last speech.
	TrailingSilence time.Duration

	// MaxDuration is the hard limit; monologues are cut, not followed.
	MaxDuration time.Duration

	// SpeechThreshold and SilenceThreshold are handed to the VAD session.
	SpeechThreshold  float64
	SilenceThreshold float64
}

// Recorder captures utterances from a frame stream.
type Recorder struct {
	frames audio.FrameReader
	engine vad.Engine
	cfg    Config
}

// NewRecorder creates a recorder consuming frames and classifying them with
// sessions from engine.
func NewRecorder(frames audio.FrameReader, engine vad.Engine, cfg Config) *Recorder {
	return &Recorder{frames: frames, engine: engine, cfg: cfg}
}

// Capture records one utterance. It returns an empty buffer (and no error)
// when the whole window passed without any speech; the caller treats that as
// a false trigger. A stalled or cancelled stream returns an error.
func (r *Recorder) Capture(ctx context.Context) (audio.Buffer, error) {
	session, err := r.engine.NewSession(vad.Config{
		SampleRate:       r.cfg.SampleRate,
		SpeechThreshold:  r.cfg.SpeechThreshold,
		SilenceThreshold: r.cfg.SilenceThreshold,
	})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("capture: create vad session: %w", err)
	}
	defer session.Close()

	frameDur := time.Duration(r.cfg.FrameMs) * time.Millisecond
	silenceLimit := int(r.cfg.TrailingSilence / frameDur)
	if silenceLimit < 1 {
		silenceLimit = 1
	}
	maxSamples := int(r.cfg.MaxDuration.Seconds() * float64(r.cfg.SampleRate))

	// A dead capture process would otherwise block Pop forever; bound the
	// whole recording at the hard limit plus a little slack.
	ctx, cancel := context.WithTimeout(ctx, r.cfg.MaxDuration+2*time.Second)
	defer cancel()

	var (
		pcm         []int16
		heardSpeech bool
		silenceRun  int
	)

	for {
		f, err := r.frames.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil && context.Cause(ctx) != context.Canceled {
				return audio.Buffer{}, fmt.Errorf("%w: %v", ErrStalled, err)
			}
			return audio.Buffer{}, fmt.Errorf("capture: read frame: %w", err)
		}

		pcm = append(pcm, f.PCM...)

		ev, err := session.ProcessFrame(f)
		if err != nil {
			// A broken VAD must not kill the request; the frame counts as
			// silence and the hard limit still bounds the recording.
			slog.Warn("capture: vad failed on frame, treating as silence", "err", err)
			ev = vad.Event{}
		}

		if ev.Speech {
			heardSpeech = true
			silenceRun = 0
		} else if heardSpeech {
			silenceRun++
			if silenceRun >= silenceLimit {
				break
			}
		}

		if len(pcm) >= maxSamples {
			slog.Debug("capture: hard duration limit reached", "samples", len(pcm))
			break
		}
	}

	if !heardSpeech {
		return audio.Buffer{SampleRate: r.cfg.SampleRate}, nil
	}
	return audio.Buffer{PCM: pcm, SampleRate: r.cfg.SampleRate}, nil
}
