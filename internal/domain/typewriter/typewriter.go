// Package typewriter reveals a message one character at a time.
//
// Renderer is a pure state machine: callers drive it with Tick and receive the
// resulting events, so the same logic serves the terminal UI's message loop
// and the timer-driven Play helper. Characters are counted as runes.
package typewriter

import (
	"context"
	"errors"
	"time"
)

// DefaultSpeed is the per-character delay for ordinary replies.
const DefaultSpeed = 20 * time.Millisecond

// IntroSpeed is the per-character delay for the introductory message.
const IntroSpeed = time.Millisecond

type State int

const (
	Idle State = iota
	Revealing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Revealing:
		return "revealing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	// EventEmit carries the currently visible prefix.
	EventEmit EventKind = iota
	// EventComplete fires once, after the last character of an active reveal.
	EventComplete
)

type Event struct {
	Kind EventKind
	Text string
}

var ErrUnsealed = errors.New("typewriter: renderer text is still growing")

// Renderer is not safe for concurrent use.
type Renderer struct {
	runes     []rune
	speed     time.Duration
	active    bool
	sealed    bool
	state     State
	cursor    int
	completed bool
	gen       uint64
}

// New returns a renderer for a complete text. Inactive renderers show the
// full text on Start and never complete.
func New(text string, speed time.Duration, active bool) *Renderer {
	return &Renderer{runes: []rune(text), speed: speed, active: active, sealed: true}
}

// NewStreaming returns an active renderer whose text arrives through Append.
// It completes only after Seal once everything appended has been revealed.
func NewStreaming(speed time.Duration) *Renderer {
	return &Renderer{speed: speed, active: true}
}

// Start leaves Idle. It is a no-op in any other state.
func (r *Renderer) Start() []Event {
	if r.state != Idle {
		return nil
	}
	if !r.active {
		r.state = Done
		r.cursor = len(r.runes)
		return []Event{{Kind: EventEmit, Text: string(r.runes)}}
	}
	if r.sealed && len(r.runes) == 0 {
		r.state = Done
		return nil
	}
	r.state = Revealing
	return nil
}

// Tick reveals one more character.
func (r *Renderer) Tick() []Event {
	if r.state != Revealing || r.cursor >= len(r.runes) {
		return nil
	}
	r.cursor++
	events := []Event{{Kind: EventEmit, Text: string(r.runes[:r.cursor])}}
	return append(events, r.settle()...)
}

// TickFor ticks only if gen is the renderer's current generation. Ticks
// scheduled before a Reset or Finish are dropped this way.
func (r *Renderer) TickFor(gen uint64) []Event {
	if gen != r.gen {
		return nil
	}
	return r.Tick()
}

// Append grows the text of a streaming renderer.
func (r *Renderer) Append(fragment string) {
	if r.sealed || fragment == "" {
		return
	}
	r.runes = append(r.runes, []rune(fragment)...)
}

// Seal marks the text final. If everything has already been revealed the
// renderer completes immediately.
func (r *Renderer) Seal() []Event {
	if r.sealed {
		return nil
	}
	r.sealed = true
	if r.state != Revealing || r.cursor < len(r.runes) {
		return nil
	}
	if len(r.runes) == 0 {
		r.state = Done
		return nil
	}
	return r.settle()
}

// Finish reveals everything at once without a completion event and
// invalidates outstanding ticks.
func (r *Renderer) Finish() []Event {
	if r.state == Done {
		return nil
	}
	r.gen++
	r.sealed = true
	r.state = Done
	r.cursor = len(r.runes)
	return []Event{{Kind: EventEmit, Text: string(r.runes)}}
}

// Reset starts over with new text and invalidates outstanding ticks.
func (r *Renderer) Reset(text string, active bool) {
	r.gen++
	r.runes = []rune(text)
	r.active = active
	r.sealed = true
	r.state = Idle
	r.cursor = 0
	r.completed = false
}

func (r *Renderer) settle() []Event {
	if !r.sealed || r.cursor < len(r.runes) {
		return nil
	}
	r.state = Done
	if r.completed {
		return nil
	}
	r.completed = true
	return []Event{{Kind: EventComplete}}
}

// Visible is the text a viewer should currently see.
func (r *Renderer) Visible() string {
	if r.state == Done {
		return string(r.runes)
	}
	return string(r.runes[:r.cursor])
}

func (r *Renderer) Text() string { return string(r.runes) }
func (r *Renderer) State() State { return r.state }
func (r *Renderer) Cursor() int { return r.cursor }
func (r *Renderer) Len() int { return len(r.runes) }
func (r *Renderer) Speed() time.Duration { return r.speed }
func (r *Renderer) Generation() uint64 { return r.gen }
func (r *Renderer) Completed() bool { return r.completed }
func (r *Renderer) Sealed() bool { return r.sealed }

// Pending reports whether a tick would reveal another character now.
func (r *Renderer) Pending() bool {
	return r.state == Revealing && r.cursor < len(r.runes)
}

// Play drives a sealed renderer on a timer until it is done or ctx ends.
// emit runs on the calling goroutine.
func Play(ctx context.Context, r *Renderer, emit func(Event)) error {
	if !r.sealed {
		return ErrUnsealed
	}
	for _, ev := range r.Start() {
		emit(ev)
	}
	if r.state == Done {
		return nil
	}

	timer := time.NewTimer(max(r.speed, 0))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		for _, ev := range r.Tick() {
			emit(ev)
		}
		if r.state == Done {
			return nil
		}
		timer.Reset(max(r.speed, 0))
	}
}
