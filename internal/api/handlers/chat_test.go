package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmiller-dev/folio/internal/domain/chat"
	"github.com/mmiller-dev/folio/internal/domain/reply"
	"github.com/mmiller-dev/folio/internal/infra/llm"
)

type chatSenderStub struct {
	reply    *reply.Reply
	err      error
	provider string
	delivery chat.Delivery
	history  []llm.Message
}

func (s *chatSenderStub) Send(_ context.Context, provider string, delivery chat.Delivery, history []llm.Message) (*reply.Reply, error) {
	s.provider = provider
	s.delivery = delivery
	s.history = history
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

const chatBody = `{"messages":[{"role":"assistant","content":"# Michael"},{"role":"user","content":"Hi"}]}`

func postChat(h *ChatHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Chat(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestChatHandler_Batched_OK(t *testing.T) {
	t.Parallel()

	stub := &chatSenderStub{reply: reply.Text("I work at Acme.")}
	rr := postChat(NewChatHandler(stub, "groq", chat.Batched), chatBody)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	if got := decodeBody(t, rr)["message"]; got != "I work at Acme." {
		t.Fatalf("expected message, got %v", got)
	}
	if stub.provider != "groq" || stub.delivery != chat.Batched {
		t.Fatalf("handler bound to wrong route: %q %v", stub.provider, stub.delivery)
	}
	if len(stub.history) != 2 || stub.history[1].Content != "Hi" {
		t.Fatalf("history not forwarded: %+v", stub.history)
	}
}

func TestChatHandler_RateLimitNoticeIs200Message(t *testing.T) {
	t.Parallel()

	wait := "I've hit my rate limit. Please wait about 45 seconds and try again."
	for _, delivery := range []chat.Delivery{chat.Batched, chat.Streamed} {
		stub := &chatSenderStub{reply: reply.NoticeText(wait)}
		rr := postChat(NewChatHandler(stub, "anthropic", delivery), chatBody)

		if rr.Code != http.StatusOK {
			t.Fatalf("%v: expected 200, got %d", delivery, rr.Code)
		}
		if got := decodeBody(t, rr)["message"]; got != wait {
			t.Fatalf("%v: expected wait message, got %v", delivery, got)
		}
	}
}

func TestChatHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		err       error
		wantCode  int
		wantError string
	}{
		{
			name:      "invalid json",
			body:      `{"messages":`,
			wantCode:  http.StatusBadRequest,
			wantError: "invalid request body",
		},
		{
			name:     "empty messages",
			body:     `{"messages":[]}`,
			err:      chat.ErrNoMessages,
			wantCode: http.StatusBadRequest,
		},
		{
			name:      "missing key",
			body:      chatBody,
			err:       &llm.CredentialsError{Vendor: "OpenAI", EnvVar: "OPENAI_API_KEY"},
			wantCode:  http.StatusInternalServerError,
			wantError: "OpenAI API key is not configured. Please add OPENAI_API_KEY to your .env.local file.",
		},
		{
			name:      "vendor failure",
			body:      chatBody,
			err:       errors.New("openai chat: 502 bad gateway"),
			wantCode:  http.StatusInternalServerError,
			wantError: "Failed to get response from AI",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rr := postChat(NewChatHandler(&chatSenderStub{err: tc.err}, "openai", chat.Batched), tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d body=%s", tc.wantCode, rr.Code, rr.Body.String())
			}
			got, _ := decodeBody(t, rr)["error"].(string)
			if got == "" {
				t.Fatal("expected an error field")
			}
			if tc.wantError != "" && got != tc.wantError {
				t.Fatalf("expected error %q, got %q", tc.wantError, got)
			}
		})
	}
}
