package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

// FrameQueue is a bounded producer/consumer queue between the capture
// callback and the detection loop. When the consumer falls behind, Push drops
// the oldest queued frame rather than blocking, so the capture side never
// stalls the audio device.
type FrameQueue struct {
	mu      sync.Mutex
	frames  chan Frame
	dropped atomic.Int64
}

// NewFrameQueue creates a queue holding at most depth frames.
func NewFrameQueue(depth int) *FrameQueue {
	if depth < 1 {
		depth = 1
	}
	return &FrameQueue{frames: make(chan Frame, depth)}
}

// Push enqueues a frame without ever blocking. If the queue is full, the
// oldest frame is discarded to make room and the drop counter is incremented.
func (q *FrameQueue) Push(f Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case q.frames <- f:
			return
		default:
		}
		select {
		case <-q.frames:
			q.dropped.Add(1)
		default:
		}
	}
}

// Pop blocks until a frame is available or ctx is done.
func (q *FrameQueue) Pop(ctx context.Context) (Frame, error) {
	select {
	case f := <-q.frames:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// TryPop returns the next frame without blocking.
func (q *FrameQueue) TryPop() (Frame, bool) {
	select {
	case f := <-q.frames:
		return f, true
	default:
		return Frame{}, false
	}
}

// Drain discards all queued frames. Used when a trigger hands the stream over
// to utterance capture so stale pre-trigger audio is not recorded twice.
func (q *FrameQueue) Drain() {
	for {
		select {
		case <-q.frames:
		default:
			return
		}
	}
}

// Len returns the number of frames currently queued.
func (q *FrameQueue) Len() int { return len(q.frames) }

// Dropped returns the total number of frames discarded due to overflow.
func (q *FrameQueue) Dropped() int64 { return q.dropped.Load() }
