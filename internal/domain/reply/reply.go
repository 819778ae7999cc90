// Package reply unifies a provider answer that arrives either all at once or
// as an ordered sequence of fragments.
package reply

import (
	"context"
	"strings"
	"sync"
)

// Fragment is one piece of a reply. A fragment with Err set is terminal.
type Fragment struct {
	Text string
	Err  error
}

// Reply is consumed once. A batched reply yields a single fragment; a
// streamed reply yields fragments in arrival order. The end marker is the
// close of the Fragments channel and is observed exactly once.
type Reply struct {
	text    string
	batched bool
	src     <-chan Fragment
	cancel  context.CancelFunc
	once    sync.Once

	mu       sync.Mutex
	consumed bool

	// Notice marks a soft failure rendered as assistant text (rate limiting).
	Notice bool
}

// Text wraps a complete answer.
func Text(s string) *Reply {
	return &Reply{text: s, batched: true}
}

// NoticeText wraps an informational answer such as a rate-limit wait message.
func NoticeText(s string) *Reply {
	return &Reply{text: s, batched: true, Notice: true}
}

// Stream wraps a fragment channel; cancel, if non-nil, aborts the producer.
func Stream(src <-chan Fragment, cancel context.CancelFunc) *Reply {
	return &Reply{src: src, cancel: cancel}
}

// Batched reports whether the whole answer was available up front.
func (r *Reply) Batched() bool { return r.batched }

// Fragments returns the fragment sequence. It may be called once.
func (r *Reply) Fragments() <-chan Fragment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		ch := make(chan Fragment)
		close(ch)
		return ch
	}
	r.consumed = true
	if r.batched {
		ch := make(chan Fragment, 1)
		if r.text != "" {
			ch <- Fragment{Text: r.text}
		}
		close(ch)
		return ch
	}
	return r.src
}

// Close releases the producer of a streamed reply.
func (r *Reply) Close() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
}

// Collect concatenates every fragment. On a mid-stream failure it returns the
// partial text together with the error.
func (r *Reply) Collect(ctx context.Context) (string, error) {
	defer r.Close()
	var b strings.Builder
	frags := r.Fragments()
	for {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		case f, ok := <-frags:
			if !ok {
				return b.String(), nil
			}
			if f.Err != nil {
				return b.String(), f.Err
			}
			b.WriteString(f.Text)
		}
	}
}
