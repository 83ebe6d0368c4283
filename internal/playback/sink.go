// Package playback turns text into audible speech: synthesis, a disk cache
// for fixed phrases, gain post-processing and an external player process,
// modeled as an explicit cancellable pipeline so barge-in can kill output
// mid-word.
package playback

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/fantasma-ai/fantasma/pkg/audio"
)

// Sink plays a finished PCM buffer. Play blocks until the audio ends or ctx
// is cancelled; cancellation must stop output quickly, not at the next
// buffer boundary.
type Sink interface {
	Play(ctx context.Context, b audio.Buffer) error
	Close() error
}

// ─────────────────────────── exec-backed sink ───────────────────────────

// ExecSink plays audio by piping PCM into an external player process (aplay
// or compatible). Every Play starts a fresh process; cancellation kills it
// outright, which is the only reliable way to silence a player mid-buffer.
type ExecSink struct {
	argv []string
}

var _ Sink = (*ExecSink)(nil)

// NewExecSink creates a sink running the given argv. The literal argument
// "{rate}" is replaced with the buffer's sample rate.
func NewExecSink(argv []string) (*ExecSink, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("playback: player command must not be empty")
	}
	return &ExecSink{argv: argv}, nil
}

// Play implements [Sink].
func (s *ExecSink) Play(ctx context.Context, b audio.Buffer) error {
	args := make([]string, 0, len(s.argv)-1)
	for _, a := range s.argv[1:] {
		if a == "{rate}" {
			a = strconv.Itoa(b.SampleRate)
		}
		args = append(args, a)
	}

	cmd := exec.CommandContext(ctx, s.argv[0], args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("playback: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("playback: start %s: %w", s.argv[0], err)
	}

	// Feed PCM from a separate goroutine; the player may exit (or be killed)
	// before reading everything, and that must not deadlock Play.
	writeErr := make(chan error, 1)
	go func() {
		_, err := stdin.Write(b.Bytes())
		_ = stdin.Close()
		writeErr <- err
	}()

	err = cmd.Wait()
	<-writeErr
	if ctx.Err() != nil {
		// Killed on purpose.
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("playback: player exited: %w", err)
	}
	return nil
}

// Close implements [Sink]. Processes are per-Play, so nothing is held.
func (s *ExecSink) Close() error { return nil }

// ─────────────────────────── buffer sink (tests) ───────────────────────────

// BufferSink records played buffers. PlayDuration simulates real-time
// playback so cancellation paths can be exercised.
type BufferSink struct {
	mu sync.Mutex

	// PlayDuration, if non-zero, is how long each Play blocks.
	PlayDuration time.Duration

	// Err, if non-nil, is returned by every Play.
	Err error

	played     []audio.Buffer
	interrupts int
	closeCalls int
}

var _ Sink = (*BufferSink)(nil)

// Play implements [Sink].
func (s *BufferSink) Play(ctx context.Context, b audio.Buffer) error {
	s.mu.Lock()
	err := s.Err
	d := s.PlayDuration
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if d > 0 {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.interrupts++
			s.mu.Unlock()
			return ctx.Err()
		case <-time.After(d):
		}
	} else if err := ctx.Err(); err != nil {
		s.mu.Lock()
		s.interrupts++
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.played = append(s.played, b)
	s.mu.Unlock()
	return nil
}

// Close implements [Sink].
func (s *BufferSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

// Played returns the buffers that finished playing.
func (s *BufferSink) Played() []audio.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Buffer, len(s.played))
	copy(out, s.played)
	return out
}

// Interrupts returns how many plays were cancelled mid-buffer.
func (s *BufferSink) Interrupts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupts
}
