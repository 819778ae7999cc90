package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/api"
	"github.com/mmiller-dev/folio/internal/api/middleware"
	"github.com/mmiller-dev/folio/internal/domain/chat"
	"github.com/mmiller-dev/folio/internal/infra/eventbus"
	"github.com/mmiller-dev/folio/internal/infra/metrics"
	"github.com/mmiller-dev/folio/internal/server"
)

func runServe(ctx context.Context, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "Optional YAML config file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	b, err := loadBackend(*configPath, os.Stderr)
	if err != nil {
		return fail(out, "%v", err)
	}

	met := metrics.New()
	bus := eventbus.New()
	bus.OnDrop = met.DroppedEvent
	go logTranscripts(bus.Subscribe(eventbus.TopicChatCompleted), b.logger)

	svc, err := b.chatService(chat.WithPublisher(bus), chat.WithRecorder(met))
	if err != nil {
		return fail(out, "%v", err)
	}

	handler := api.NewRouter(api.Deps{
		Chat:      svc,
		Persona:   b.persona,
		Providers: b.providers,
		Logger:    b.logger,
		Metrics:   met,
		RateLimit: middleware.RateLimitConfig{RPS: b.cfg.RateLimitRPS, Burst: b.cfg.RateLimitBurst},
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Host = b.cfg.Host
	srvCfg.Port = b.cfg.Port
	srv := server.NewServer(handler, srvCfg, b.logger)
	srv.OnShutdown(func() error {
		bus.Close()
		return nil
	})

	go b.probeProviders(ctx)

	b.logger.Info().
		Str("persona", b.persona.Name).
		Str("default_provider", b.cfg.DefaultProvider).
		Msg("folio starting")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fail(out, "%v", err)
	}
	return exitOK
}

// logTranscripts writes one line per finished exchange until events closes.
func logTranscripts(events <-chan eventbus.Event, logger zerolog.Logger) {
	for ev := range events {
		done, ok := ev.Payload.(chat.CompletedEvent)
		if !ok {
			continue
		}
		entry := logger.Info()
		if done.Err != nil {
			entry = logger.Warn().Err(done.Err)
		}
		entry.
			Str("provider", done.Provider).
			Str("delivery", done.Delivery.String()).
			Str("outcome", done.Outcome).
			Dur("elapsed", done.Elapsed).
			Int("question_chars", len([]rune(done.Question))).
			Int("answer_chars", len([]rune(done.Answer))).
			Msg("chat completed")
	}
}
