package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProvidersHandler_List(t *testing.T) {
	t.Parallel()

	in := []ProviderInfo{
		{Name: "openai", Route: "/api/chat", Delivery: "batched", Model: "gpt-3.5-turbo", Configured: true},
		{Name: "ollama", Route: "/api/chat-local", Delivery: "streamed", Model: "llama3.2:3b"},
	}
	h := NewProvidersHandler(in)
	in[0].Name = "mutated"

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/providers", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	list, _ := decodeBody(t, rr)["providers"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(list))
	}
	first, _ := list[0].(map[string]any)
	if first["name"] != "openai" || first["configured"] != true {
		t.Fatalf("unexpected first provider %v", first)
	}
}
