// Package skill routes recognized utterances to handlers. Skills are
// registered at startup in priority order; an utterance walks the registry
// until some skill produces an answer, and anything unclaimed falls through
// to the LLM.
package skill

import (
	"context"
	"strings"
	"sync/atomic"
)

// TriggerType selects how a skill's trigger phrases are matched against the
// lower-cased utterance.
type TriggerType int

const (
	// TriggerContains matches when any trigger appears anywhere in the text.
	TriggerContains TriggerType = iota

	// TriggerStartsWith matches when the text starts with any trigger.
	TriggerStartsWith

	// TriggerNone never matches by voice. Used by skills that only exist for
	// their background daemon or their device surface.
	TriggerNone
)

// Skill is one command handler.
type Skill interface {
	// Name identifies the skill in logs and the help listing.
	Name() string

	// TriggerType selects the matching mode for Triggers.
	TriggerType() TriggerType

	// Triggers are the phrases that activate the skill, matched lower-case.
	Triggers() []string

	// Handle answers the utterance. lower is the utterance lower-cased once
	// by the router; original preserves the user's casing. An empty answer
	// means the skill declines and the router keeps looking; an error is
	// logged and treated the same way.
	Handle(ctx context.Context, lower, original string) (string, error)
}

// StatusProvider is implemented by skills that expose device state to the
// control plane. Ok is false when the skill does not know the nickname; a
// known-but-offline device returns a snapshot whose "state" is "unreachable".
type StatusProvider interface {
	DeviceStatus(ctx context.Context, nickname string) (map[string]any, bool)
}

// DeviceLister is implemented by skills that contribute devices to the
// control plane's device listing.
type DeviceLister interface {
	// Devices returns switchable device nicknames and read-only sensor
	// nicknames.
	Devices() (toggles, status []string)
}

// Daemon is implemented by skills that need a background goroutine (device
// pollers, chat sessions). Run is started once at startup and must return
// when ctx is done.
type Daemon interface {
	Run(ctx context.Context) error
}

// ─── Registry ───────────────────────────────────────────────────────────────

// Registry holds the ordered skill list. The list is published as an atomic
// snapshot: readers iterating during a Replace keep seeing the list they
// started with.
type Registry struct {
	skills atomic.Pointer[[]Skill]
}

// NewRegistry creates a Registry holding skills in the given priority order.
func NewRegistry(skills ...Skill) *Registry {
	r := &Registry{}
	r.Replace(skills)
	return r
}

// Replace atomically publishes a new skill list.
func (r *Registry) Replace(skills []Skill) {
	list := make([]Skill, len(skills))
	copy(list, skills)
	r.skills.Store(&list)
}

// Snapshot returns the current skill list. The returned slice must not be
// modified.
func (r *Registry) Snapshot() []Skill {
	if p := r.skills.Load(); p != nil {
		return *p
	}
	return nil
}

// Matches reports whether s claims the lower-cased utterance.
func Matches(s Skill, lower string) bool {
	switch s.TriggerType() {
	case TriggerContains:
		for _, t := range s.Triggers() {
			if strings.Contains(lower, strings.ToLower(t)) {
				return true
			}
		}
	case TriggerStartsWith:
		for _, t := range s.Triggers() {
			if strings.HasPrefix(lower, strings.ToLower(t)) {
				return true
			}
		}
	}
	return false
}

// Help summarizes each skill's triggers for the help endpoint. Skills without
// voice triggers are listed as active.
func (r *Registry) Help() map[string]string {
	out := make(map[string]string)
	for _, s := range r.Snapshot() {
		trigs := s.Triggers()
		if len(trigs) == 0 || s.TriggerType() == TriggerNone {
			out[s.Name()] = "Ativo"
			continue
		}
		n := len(trigs)
		if n > 3 {
			n = 3
		}
		summary := strings.Join(trigs[:n], ", ")
		if len(trigs) > 3 {
			summary += "…"
		}
		out[s.Name()] = summary
	}
	return out
}

// DeviceStatus asks each skill in order for the nickname's state and returns
// the first reachable snapshot. Unknown or unreachable everywhere yields a
// bare unreachable snapshot.
func (r *Registry) DeviceStatus(ctx context.Context, nickname string) map[string]any {
	for _, s := range r.Snapshot() {
		sp, ok := s.(StatusProvider)
		if !ok {
			continue
		}
		st, known := sp.DeviceStatus(ctx, nickname)
		if !known || st == nil {
			continue
		}
		if state, _ := st["state"].(string); state != "unreachable" {
			return st
		}
	}
	return map[string]any{"state": "unreachable"}
}

// Devices aggregates the device listings of every skill.
func (r *Registry) Devices() (toggles, status []string) {
	for _, s := range r.Snapshot() {
		if dl, ok := s.(DeviceLister); ok {
			t, st := dl.Devices()
			toggles = append(toggles, t...)
			status = append(status, st...)
		}
	}
	return toggles, status
}

// Daemons returns the skills that carry a background entry point.
func (r *Registry) Daemons() []Daemon {
	var out []Daemon
	for _, s := range r.Snapshot() {
		if d, ok := s.(Daemon); ok {
			out = append(out, d)
		}
	}
	return out
}
