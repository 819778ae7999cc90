package handlers

import (
	"net/http"

	"github.com/mmiller-dev/folio/internal/domain/persona"
)

// PersonaHandler serves the public part of the persona: everything the
// client shows without asking the model. additional_context is never exposed.
type PersonaHandler struct {
	body personaResponse
}

type personaResponse struct {
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	Intro     string          `json:"intro"`
	Avatar    string          `json:"avatar,omitempty"`
	ResumeURL string          `json:"resume_url,omitempty"`
	Contact   persona.Contact `json:"contact"`
}

// NewPersonaHandler renders the intro once; the document does not change at runtime.
func NewPersonaHandler(doc *persona.Document) *PersonaHandler {
	return &PersonaHandler{body: personaResponse{
		Name:      doc.Name,
		Title:     doc.Title,
		Intro:     persona.IntroMessage(doc),
		Avatar:    doc.Avatar,
		ResumeURL: doc.ResumeURL,
		Contact:   doc.Contact,
	}}
}

// Get handles GET /api/persona.
func (h *PersonaHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.body)
}
