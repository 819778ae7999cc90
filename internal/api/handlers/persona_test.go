package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mmiller-dev/folio/internal/domain/persona"
)

func TestPersonaHandler_Get(t *testing.T) {
	t.Parallel()

	doc := &persona.Document{
		Name:              "Michael Miller",
		Title:             "Senior Software Engineer",
		Avatar:            "/avatar.png",
		ResumeURL:         "https://example.com/resume.pdf",
		Contact:           persona.Contact{Email: "michael@example.com", GitHub: "https://github.com/mmiller"},
		AdditionalContext: "Enjoys trail running.",
	}

	rr := httptest.NewRecorder()
	NewPersonaHandler(doc).Get(rr, httptest.NewRequest(http.MethodGet, "/api/persona", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["name"] != "Michael Miller" || body["avatar"] != "/avatar.png" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["resume_url"] != "https://example.com/resume.pdf" {
		t.Fatalf("expected resume_url, got %v", body["resume_url"])
	}
	intro, _ := body["intro"].(string)
	if !strings.Contains(intro, "# Michael Miller\n## Senior Software Engineer") {
		t.Fatalf("expected intro markdown, got %q", intro)
	}
	contact, _ := body["contact"].(map[string]any)
	if contact["github"] != "https://github.com/mmiller" {
		t.Fatalf("expected github contact, got %v", contact)
	}
	if _, ok := body["additional_context"]; ok {
		t.Fatal("additional_context must not be exposed")
	}
}
