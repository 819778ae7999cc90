package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/api"
	"github.com/mmiller-dev/folio/internal/domain/chat"
	"github.com/mmiller-dev/folio/internal/domain/persona"
	"github.com/mmiller-dev/folio/internal/domain/prompt"
	"github.com/mmiller-dev/folio/internal/infra/config"
	"github.com/mmiller-dev/folio/internal/infra/llm"
	"github.com/mmiller-dev/folio/internal/infra/logging"
)

// backend is everything serve and mcp share: the persona, the providers and
// the chat service built on them.
type backend struct {
	cfg       config.Config
	logger    zerolog.Logger
	persona   *persona.Document
	router    *llm.Router
	providers map[string]api.ProviderStatus
}

func newLogger(cfg config.Config, out io.Writer) (zerolog.Logger, error) {
	return logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: out})
}

// loadBackend reads the config file, the persona document and builds every provider.
func loadBackend(configPath string, logOut io.Writer) (*backend, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return nil, err
	}
	doc, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		return nil, err
	}

	providers, status := buildProviders(cfg)
	if _, ok := providers[cfg.DefaultProvider]; !ok {
		return nil, fmt.Errorf("%w %q", llm.ErrUnknownProvider, cfg.DefaultProvider)
	}
	return &backend{
		cfg:       cfg,
		logger:    logger,
		persona:   doc,
		router:    llm.NewRouter(providers, cfg.DefaultProvider),
		providers: status,
	}, nil
}

// chatService builds the system prompt and the service answering every route.
func (b *backend) chatService(opts ...chat.Option) (*chat.Service, error) {
	policy, err := prompt.ParsePolicy(b.cfg.PromptPolicy)
	if err != nil {
		return nil, err
	}
	system, err := prompt.Build(b.persona, policy)
	if err != nil {
		return nil, err
	}
	opts = append([]chat.Option{chat.WithLogger(b.logger)}, opts...)
	return chat.NewService(b.router, system, opts...), nil
}

// buildProviders creates one adapter per vendor. A missing API key is not an
// error here; the adapter reports it on every call.
func buildProviders(cfg config.Config) (map[string]llm.LLMProvider, map[string]api.ProviderStatus) {
	providers := map[string]llm.LLMProvider{
		"openai": llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		}),
		"groq": llm.NewGroqProvider(cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.BaseURL),
		"anthropic": llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Anthropic.Model,
			BaseURL: cfg.Anthropic.BaseURL,
		}),
		"ollama": llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel),
	}

	status := make(map[string]api.ProviderStatus, len(providers))
	for name, p := range providers {
		status[name] = api.ProviderStatus{Model: p.ModelInfo().ID}
	}
	setConfigured(status, "openai", cfg.OpenAI.APIKey != "")
	setConfigured(status, "groq", cfg.Groq.APIKey != "")
	setConfigured(status, "anthropic", cfg.Anthropic.APIKey != "")
	setConfigured(status, "ollama", cfg.OllamaBaseURL != "")
	return providers, status
}

func setConfigured(status map[string]api.ProviderStatus, name string, ok bool) {
	s := status[name]
	s.Configured = ok
	status[name] = s
}

// routeFor returns the chat route served by provider.
func routeFor(provider string) (string, bool) {
	for _, r := range api.ChatRoutes {
		if r.Provider == provider {
			return r.Path, true
		}
	}
	return "", false
}

const probeTimeout = 5 * time.Second

// probeProviders health-checks every configured provider once and logs the
// ones that are unreachable. It never fails startup.
func (b *backend) probeProviders(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range b.router.Names() {
		if !b.providers[name].Configured {
			continue
		}
		p, err := b.router.Route(name)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			if err := p.HealthCheck(ctx); err != nil {
				b.logger.Warn().Err(err).Str("provider", name).Msg("provider unreachable")
				return
			}
			b.logger.Debug().Str("provider", name).Msg("provider reachable")
		}()
	}
	wg.Wait()
}
