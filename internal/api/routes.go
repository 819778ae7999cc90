package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/api/handlers"
	apmiddleware "github.com/mmiller-dev/folio/internal/api/middleware"
	"github.com/mmiller-dev/folio/internal/domain/chat"
	"github.com/mmiller-dev/folio/internal/domain/persona"
	"github.com/mmiller-dev/folio/internal/infra/metrics"
)

// ChatRoute binds a URL path to a provider and a delivery mode.
type ChatRoute struct {
	Path     string
	Provider string
	Delivery chat.Delivery
}

// ChatRoutes is the fixed route table. Provider names are llm.Router keys.
var ChatRoutes = []ChatRoute{
	{Path: "/api/chat", Provider: "openai", Delivery: chat.Batched},
	{Path: "/api/chat-groq", Provider: "groq", Delivery: chat.Batched},
	{Path: "/api/chat-claude", Provider: "anthropic", Delivery: chat.Streamed},
	{Path: "/api/chat-local", Provider: "ollama", Delivery: chat.Streamed},
}

// ProviderStatus is what the router needs to know about a provider for /api/providers.
type ProviderStatus struct {
	Model      string
	Configured bool
}

// Deps are the collaborators NewRouter wires into handlers.
type Deps struct {
	Chat      handlers.ChatSender
	Persona   *persona.Document
	Providers map[string]ProviderStatus
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	RateLimit apmiddleware.RateLimitConfig
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	var httpObs apmiddleware.HTTPObserver
	var throttleRec apmiddleware.ThrottleRecorder
	if d.Metrics != nil {
		httpObs = d.Metrics
		throttleRec = d.Metrics
	}

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.RequestLogger(d.Logger, httpObs))
	r.Use(middleware.Recoverer)

	// Health check, used by load balancers and health probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/api/persona", handlers.NewPersonaHandler(d.Persona).Get)
	r.Get("/api/providers", handlers.NewProvidersHandler(providerInfos(d.Providers)).List)

	// Chat routes share one per-client budget.
	r.Group(func(r chi.Router) {
		r.Use(apmiddleware.RateLimit(d.RateLimit, throttleRec))
		for _, cr := range ChatRoutes {
			r.Post(cr.Path, handlers.NewChatHandler(d.Chat, cr.Provider, cr.Delivery).Chat)
		}
	})

	return r
}

func providerInfos(status map[string]ProviderStatus) []handlers.ProviderInfo {
	out := make([]handlers.ProviderInfo, 0, len(ChatRoutes))
	for _, cr := range ChatRoutes {
		st := status[cr.Provider]
		out = append(out, handlers.ProviderInfo{
			Name:       cr.Provider,
			Route:      cr.Path,
			Delivery:   cr.Delivery.String(),
			Model:      st.Model,
			Configured: st.Configured,
		})
	}
	return out
}
