package handlers

import "net/http"

// ProviderInfo describes one chat route for GET /api/providers.
type ProviderInfo struct {
	Name       string `json:"name"`
	Route      string `json:"route"`
	Delivery   string `json:"delivery"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
}

type ProvidersHandler struct {
	providers []ProviderInfo
}

func NewProvidersHandler(providers []ProviderInfo) *ProvidersHandler {
	out := make([]ProviderInfo, len(providers))
	copy(out, providers)
	return &ProvidersHandler{providers: out}
}

// List handles GET /api/providers.
func (h *ProvidersHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.providers})
}
