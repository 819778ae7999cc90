// Unit tests for AnthropicProvider against an httptest server speaking the
// Messages API wire format.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAnthropic(url string) *AnthropicProvider {
	return NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test", BaseURL: url})
}

func writeSSE(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func TestAnthropicProvider_ChatCompletion_Success(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-20241022",`+
			`"content":[{"type":"text","text":"Hello from Claude"}],"stop_reason":"end_turn","stop_sequence":null,`+
			`"usage":{"input_tokens":5,"output_tokens":3}}`)
	}))
	defer srv.Close()

	p := newTestAnthropic(srv.URL)
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		System:   "You are Michael Miller",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "Hello from Claude" || resp.StopReason != "end_turn" || resp.Tokens != 8 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got["model"] != DefaultAnthropicModel {
		t.Errorf("expected model %q, got %v", DefaultAnthropicModel, got["model"])
	}
	if got["max_tokens"] != float64(800) {
		t.Errorf("expected max_tokens 800, got %v", got["max_tokens"])
	}
	if _, ok := got["system"]; !ok {
		t.Error("expected system prompt in the dedicated field")
	}
}

func TestAnthropicProvider_ChatCompletionStream_ForwardsTextDeltas(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(w, "message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant",`+
			`"model":"claude-3-5-haiku-20241022","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":1}}}`)
		writeSSE(w, "content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		writeSSE(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`)
		writeSSE(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`)
		writeSSE(w, "content_block_stop", `{"type":"content_block_stop","index":0}`)
		writeSSE(w, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`)
		writeSSE(w, "message_stop", `{"type":"message_stop"}`)
	}))
	defer srv.Close()

	p := newTestAnthropic(srv.URL)
	ch, err := p.ChatCompletionStream(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("ChatCompletionStream failed: %v", err)
	}
	text, last := collect(t, ch)
	if text != "Hello" {
		t.Errorf("expected 'Hello', got %q", text)
	}
	if !last.Done {
		t.Errorf("expected Done terminal chunk, got %+v", last)
	}
}

func TestAnthropicProvider_Stream_RateLimitedBeforeFirstFragment(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("retry-after", "125")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`)
	}))
	defer srv.Close()

	p := newTestAnthropic(srv.URL)
	_, err := p.ChatCompletionStream(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if !strings.Contains(rl.Message(time.Now()), "about 3 minutes") {
		t.Errorf("unexpected message %q", rl.Message(time.Now()))
	}
}

func TestAnthropicProvider_MissingKey(t *testing.T) {
	t.Parallel()

	p := NewAnthropicProvider(AnthropicConfig{})
	_, err := p.ChatCompletionStream(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	want := "Anthropic API key is not configured. Please add ANTHROPIC_API_KEY to your .env.local file."
	if err.Error() != want {
		t.Errorf("Error() = %q; want %q", err.Error(), want)
	}
	if p.HealthCheck(context.Background()) == nil {
		t.Error("expected HealthCheck to report missing key")
	}
}

func TestAnthropicProvider_BuildParams_FoldsSystemMessages(t *testing.T) {
	t.Parallel()

	p := newTestAnthropic("http://unused")
	params := p.buildParams(ChatRequest{
		System: "base",
		Messages: []Message{
			{Role: RoleSystem, Content: "extra"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
		},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 conversation messages, got %d", len(params.Messages))
	}
	if len(params.System) != 1 || params.System[0].Text != "base\n\nextra" {
		t.Errorf("unexpected system blocks: %+v", params.System)
	}
}
