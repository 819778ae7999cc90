// Unit tests for Router.
// Uses stub LLMProvider implementations: no HTTP needed.
package llm

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// stubProvider is a minimal LLMProvider stub for router testing.
type stubProvider struct{ id string }

func (s *stubProvider) ChatCompletion(_ context.Context, _ ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "stub"}, nil
}
func (s *stubProvider) ChatCompletionStream(_ context.Context, _ ChatRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}
func (s *stubProvider) ModelInfo() ModelMeta { return ModelMeta{ID: s.id, Provider: "stub"} }
func (s *stubProvider) HealthCheck(_ context.Context) error { return nil }

// ============================================================================
// Router tests
// ============================================================================

func TestRouter_Route_EmptyNameReturnsDefaultProvider(t *testing.T) {
	t.Parallel()

	groq := &stubProvider{id: "llama-3.3-70b-versatile"}
	r := NewRouter(map[string]LLMProvider{"groq": groq, "openai": &stubProvider{id: "gpt"}}, "groq")

	p, err := r.Route("")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if p.ModelInfo().ID != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected provider returned: %v", p.ModelInfo())
	}
}

func TestRouter_Route_ByName(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]LLMProvider{
		"groq":   &stubProvider{id: "llama"},
		"openai": &stubProvider{id: "gpt"},
	}, "groq")

	p, err := r.Route("openai")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if p.ModelInfo().ID != "gpt" {
		t.Errorf("expected gpt, got %v", p.ModelInfo())
	}
}

func TestRouter_Route_UnknownProvider_ReturnsError(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]LLMProvider{"ollama": &stubProvider{id: "llama3"}}, "openai")

	_, err := r.Route("")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRouter_Register_AddsProvider(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]LLMProvider{}, "anthropic")
	r.Register("anthropic", &stubProvider{id: "claude"})

	p, err := r.Route("anthropic")
	if err != nil {
		t.Fatalf("Route failed after Register: %v", err)
	}
	if p.ModelInfo().ID != "claude" {
		t.Errorf("expected registered provider, got %v", p.ModelInfo())
	}
}

func TestRouter_NewRouter_CopiesMap(t *testing.T) {
	t.Parallel()

	m := map[string]LLMProvider{"groq": &stubProvider{id: "llama"}}
	r := NewRouter(m, "groq")
	delete(m, "groq")

	if _, err := r.Route("groq"); err != nil {
		t.Errorf("expected router to keep its own copy, got %v", err)
	}
}

func TestRouter_Names_Sorted(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]LLMProvider{
		"openai":    &stubProvider{},
		"anthropic": &stubProvider{},
		"groq":      &stubProvider{},
	}, "groq")

	want := []string{"anthropic", "groq", "openai"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v; want %v", got, want)
	}
	if r.Default() != "groq" {
		t.Errorf("Default() = %q; want groq", r.Default())
	}
}
