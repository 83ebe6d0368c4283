// Package request tracks the lifecycle of assistant requests. At most one
// voice request is active at any instant: a new wake trigger atomically
// supersedes the previous request, and every downstream stage checks the
// handle it carries before producing side effects, so superseded work can
// finish computing but never speaks.
package request

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Origin says where a request entered the system.
type Origin int

const (
	// OriginVoice requests come from the wake-word loop and compete for the
	// single active slot.
	OriginVoice Origin = iota

	// OriginAPI requests come from the HTTP control plane. They run
	// independently of the voice session and are never superseded by it.
	OriginAPI
)

// String implements fmt.Stringer for log fields.
func (o Origin) String() string {
	if o == OriginAPI {
		return "api"
	}
	return "voice"
}

// State is the lifecycle state of a request.
type State int32

const (
	// StateActive means downstream stages may produce output.
	StateActive State = iota

	// StateSuperseded means a newer voice request took over; all output for
	// this request must be dropped.
	StateSuperseded

	// StateCompleted means the request finished normally.
	StateCompleted
)

// String implements fmt.Stringer for log fields.
func (s State) String() string {
	switch s {
	case StateSuperseded:
		return "superseded"
	case StateCompleted:
		return "completed"
	default:
		return "active"
	}
}

// Request is a single tracked request. The handle is passed through the
// pipeline; stages compare states, never raw ids.
type Request struct {
	// ID uniquely identifies the request in logs and events.
	ID string

	// Origin is fixed at Begin time.
	Origin Origin

	// StartedAt is when the request was begun.
	StartedAt time.Time

	state atomic.Int32
}

// State returns the request's current lifecycle state.
func (r *Request) State() State {
	return State(r.state.Load())
}

// Tracker owns the active-request handle. The zero value is ready to use.
type Tracker struct {
	active atomic.Pointer[Request]
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker { return &Tracker{} }

// Begin starts a new request. A voice request atomically replaces the current
// active voice request, marking the old one superseded. An API request runs
// on the side and leaves the voice session untouched.
func (t *Tracker) Begin(origin Origin) *Request {
	r := &Request{
		ID:        uuid.NewString(),
		Origin:    origin,
		StartedAt: time.Now(),
	}
	if origin == OriginVoice {
		if old := t.active.Swap(r); old != nil {
			old.state.CompareAndSwap(int32(StateActive), int32(StateSuperseded))
		}
	}
	return r
}

// Active reports whether output for r may still be produced. A nil handle
// marks system speech (greetings, error prompts) and is always allowed.
func (t *Tracker) Active(r *Request) bool {
	if r == nil {
		return true
	}
	return r.State() == StateActive
}

// Complete marks r finished. A request that was superseded in the meantime
// stays superseded.
func (t *Tracker) Complete(r *Request) {
	if r == nil {
		return
	}
	r.state.CompareAndSwap(int32(StateActive), int32(StateCompleted))
	// Clear the active slot only if r still owns it.
	t.active.CompareAndSwap(r, nil)
}

// Current returns the voice request currently holding the active slot, or nil.
func (t *Tracker) Current() *Request {
	return t.active.Load()
}
