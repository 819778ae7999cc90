// Package chat sends a visitor's conversation to a provider and hands back a
// reply.Reply, turning vendor rate limits into ordinary assistant text.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/reply"
	"github.com/mmiller-dev/folio/internal/infra/eventbus"
	"github.com/mmiller-dev/folio/internal/infra/llm"
	"github.com/mmiller-dev/folio/internal/infra/metrics"
)

var (
	ErrNoMessages  = errors.New("chat: no messages")
	ErrInvalidRole = errors.New("chat: message role must be user or assistant")
)

// Delivery is how a provider's answer reaches the client.
type Delivery int

const (
	Batched Delivery = iota
	Streamed
)

func (d Delivery) String() string {
	if d == Streamed {
		return "streamed"
	}
	return "batched"
}

// ProviderSource resolves providers by name. *llm.Router satisfies it.
type ProviderSource interface {
	Route(name string) (llm.LLMProvider, error)
}

// Publisher receives a CompletedEvent for every finished exchange.
type Publisher interface {
	Publish(topic string, payload any)
}

// Recorder is the subset of *metrics.Metrics the service reports to.
type Recorder interface {
	ObserveChat(provider, outcome string, elapsed time.Duration)
	AddFragments(provider string, n int)
}

// CompletedEvent is published on eventbus.TopicChatCompleted.
type CompletedEvent struct {
	Provider string
	Delivery Delivery
	Question string // last user message
	Answer   string // full reply text, partial when Err is set
	Outcome  string
	Err      error
	Elapsed  time.Duration
}

type Service struct {
	providers ProviderSource
	system    string
	bus       Publisher
	metrics   Recorder
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.bus = p } }
func WithRecorder(r Recorder) Option { return func(s *Service) { s.metrics = r } }
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService builds a service that prefixes every conversation with systemPrompt.
func NewService(providers ProviderSource, systemPrompt string, opts ...Option) *Service {
	s := &Service{
		providers: providers,
		system:    systemPrompt,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Send asks provider for the next assistant turn. Missing credentials and
// vendor failures that happen before any output are returned as errors; a
// rate limit becomes a Notice reply. With Streamed delivery, failures after
// the first fragment arrive as a terminal Fragment.Err.
func (s *Service) Send(ctx context.Context, provider string, delivery Delivery, history []llm.Message) (*reply.Reply, error) {
	if err := validate(history); err != nil {
		return nil, err
	}
	p, err := s.providers.Route(provider)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	req := llm.ChatRequest{System: s.system, Messages: history}
	started := s.now()
	ev := CompletedEvent{Provider: provider, Delivery: delivery, Question: lastUserMessage(history)}

	if delivery == Streamed {
		return s.stream(ctx, p, req, ev, started)
	}

	resp, err := p.ChatCompletion(ctx, req)
	if err != nil {
		return s.failed(ev, started, err)
	}
	ev.Answer = resp.Content
	s.finish(ev, metrics.OutcomeOK, started, nil)
	return reply.Text(resp.Content), nil
}

func (s *Service) stream(ctx context.Context, p llm.LLMProvider, req llm.ChatRequest, ev CompletedEvent, started time.Time) (*reply.Reply, error) {
	ctx, cancel := context.WithCancel(ctx)
	chunks, err := p.ChatCompletionStream(ctx, req)
	if err != nil {
		cancel()
		return s.failed(ev, started, err)
	}

	out := make(chan reply.Fragment)
	go func() {
		defer close(out)
		var answer strings.Builder
		n := 0
		defer func() {
			if s.metrics != nil {
				s.metrics.AddFragments(ev.Provider, n)
			}
		}()

		for c := range chunks {
			switch {
			case c.Err != nil:
				ev.Answer = answer.String()
				s.finish(ev, metrics.OutcomeError, started, c.Err)
				select {
				case out <- reply.Fragment{Err: c.Err}:
				case <-ctx.Done():
				}
				return
			case c.Done:
				ev.Answer = answer.String()
				s.finish(ev, metrics.OutcomeOK, started, nil)
				return
			case c.Delta != "":
				answer.WriteString(c.Delta)
				n++
				select {
				case out <- reply.Fragment{Text: c.Delta}:
				case <-ctx.Done():
					ev.Answer = answer.String()
					s.finish(ev, metrics.OutcomeError, started, ctx.Err())
					return
				}
			}
		}
		// Producer closed without a terminal chunk.
		if ctx.Err() != nil {
			ev.Answer = answer.String()
			s.finish(ev, metrics.OutcomeError, started, ctx.Err())
		}
	}()
	return reply.Stream(out, cancel), nil
}

func (s *Service) failed(ev CompletedEvent, started time.Time, err error) (*reply.Reply, error) {
	var rl *llm.RateLimitError
	if errors.As(err, &rl) {
		msg := rl.Message(s.now())
		s.logger.Warn().Err(err).Str("provider", ev.Provider).Msg("provider rate limited")
		ev.Answer = msg
		s.finish(ev, metrics.OutcomeRateLimited, started, nil)
		return reply.NoticeText(msg), nil
	}
	outcome := metrics.OutcomeError
	if errors.Is(err, llm.ErrMissingCredentials) {
		outcome = metrics.OutcomeMissingKey
	}
	s.finish(ev, outcome, started, err)
	return nil, fmt.Errorf("chat %s: %w", ev.Provider, err)
}

func (s *Service) finish(ev CompletedEvent, outcome string, started time.Time, err error) {
	ev.Outcome = outcome
	ev.Err = err
	ev.Elapsed = s.now().Sub(started)
	if s.metrics != nil {
		s.metrics.ObserveChat(ev.Provider, outcome, ev.Elapsed)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.TopicChatCompleted, ev)
	}
}

func validate(history []llm.Message) error {
	if len(history) == 0 {
		return ErrNoMessages
	}
	for i, m := range history {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidRole, i, m.Role)
		}
	}
	return nil
}

func lastUserMessage(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
