package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Source produces a stream of capture frames from an audio input.
type Source interface {
	// ReadFrame blocks until the next frame is available. It returns an error
	// when the underlying stream fails or ctx is done; after an error the
	// source must be closed and a fresh one acquired.
	ReadFrame(ctx context.Context) (Frame, error)

	// Close releases the underlying device or process.
	Close() error
}

// FrameReader is the consumer side of a frame stream. [FrameQueue] implements
// it; the detector and the utterance recorder both consume through it so that
// exactly one component owns the live stream at a time.
type FrameReader interface {
	Pop(ctx context.Context) (Frame, error)
}

// Pump copies frames from src into q until ctx is done or the source fails.
// It returns the source error so the caller can back off and reacquire.
func Pump(ctx context.Context, src Source, q *FrameQueue) error {
	for {
		f, err := src.ReadFrame(ctx)
		if err != nil {
			return err
		}
		q.Push(f)
	}
}

// ─────────────────────────── exec-backed source ───────────────────────────

// ExecSource reads raw PCM from the stdout of an external capture process
// (typically arecord). The process is started on the first ReadFrame and hard
// killed on Close, so a wedged device never hangs the pipeline.
type ExecSource struct {
	name         string
	args         []string
	sampleRate   int
	frameSamples int

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	elapsed time.Duration
}

var _ Source = (*ExecSource)(nil)

// NewExecSource creates a source running the given command. The command must
// write mono signed 16-bit little-endian PCM at sampleRate to stdout.
func NewExecSource(name string, args []string, sampleRate, frameSamples int) *ExecSource {
	return &ExecSource{
		name:         name,
		args:         args,
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
	}
}

func (s *ExecSource) start() error {
	cmd := exec.Command(s.name, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start %s: %w", s.name, err)
	}
	s.cmd = cmd
	s.stdout = stdout
	return nil
}

// ReadFrame implements [Source].
func (s *ExecSource) ReadFrame(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.cmd == nil {
		if err := s.start(); err != nil {
			return Frame{}, err
		}
	}

	raw := make([]byte, s.frameSamples*2)
	if _, err := io.ReadFull(s.stdout, raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("audio: capture stream ended: %w", err)
		}
		return Frame{}, fmt.Errorf("audio: read frame: %w", err)
	}

	f := Frame{
		PCM:        DecodeLE(raw),
		SampleRate: s.sampleRate,
		Timestamp:  s.elapsed,
	}
	s.elapsed += f.Duration()
	return f, nil
}

// Close implements [Source]. The capture process is killed, not signalled:
// waiting for a broken audio stack to exit gracefully is how pipelines wedge.
func (s *ExecSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	err := s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		// Kill always surfaces as an exit error; that is the expected path.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}
	return nil
}
