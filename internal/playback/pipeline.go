package playback

import (
	"context"
	"sync/atomic"
)

// PipelineState is the lifecycle of one speech rendition.
type PipelineState int32

const (
	// StateIdle: created, nothing happened yet.
	StateIdle PipelineState = iota

	// StateRendering: synthesis or cache load in progress.
	StateRendering

	// StatePlaying: audio is going to the sink.
	StatePlaying

	// StateStopped: finished or cancelled; terminal either way.
	StateStopped
)

// String implements fmt.Stringer for log fields.
func (s PipelineState) String() string {
	switch s {
	case StateRendering:
		return "rendering"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// pipeline is one speak operation's cancellable state machine. All stage
// transitions happen on the speaking goroutine; Cancel may be called from any
// goroutine and takes effect through the context.
type pipeline struct {
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

func newPipeline(parent context.Context) (*pipeline, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &pipeline{cancel: cancel, done: make(chan struct{})}, ctx
}

// to advances the state unless the pipeline was already stopped.
func (p *pipeline) to(s PipelineState) bool {
	for {
		cur := p.state.Load()
		if PipelineState(cur) == StateStopped {
			return false
		}
		if p.state.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}

// Cancel stops the pipeline hard: the context is cancelled, which kills an
// in-flight synthesis request or player process.
func (p *pipeline) Cancel() {
	p.state.Store(int32(StateStopped))
	p.cancel()
}

// finish marks the terminal state and releases waiters.
func (p *pipeline) finish() {
	p.state.Store(int32(StateStopped))
	p.cancel()
	close(p.done)
}

// Done unblocks once the speaking goroutine has fully unwound.
func (p *pipeline) Done() <-chan struct{} { return p.done }

// State returns the current pipeline state.
func (p *pipeline) State() PipelineState { return PipelineState(p.state.Load()) }
