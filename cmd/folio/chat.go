package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/client"
	"github.com/mmiller-dev/folio/internal/domain/conversation"
	"github.com/mmiller-dev/folio/internal/infra/config"
	"github.com/mmiller-dev/folio/internal/infra/logging"
	"github.com/mmiller-dev/folio/internal/infra/sqlite"
	ui "github.com/mmiller-dev/folio/internal/ui/chat"
	"github.com/mmiller-dev/folio/pkg/uuid"
)

type chatFlags struct {
	config   string
	server   string
	provider string
	session  string
	logFile  string
	clear    bool
}

func runChat(ctx context.Context, args []string, out io.Writer) int {
	var f chatFlags
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.config, "config", "", "Optional YAML config file")
	fs.StringVar(&f.server, "server", "", "Server URL")
	fs.StringVar(&f.provider, "provider", "", "Provider route to use")
	fs.StringVar(&f.session, "session", "", "Session id")
	fs.StringVar(&f.logFile, "log-file", "", "Write client logs to this file")
	fs.BoolVar(&f.clear, "clear", false, "Forget the session and exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		return fail(out, "%v", err)
	}
	logOut, err := logging.File(f.logFile)
	if err != nil {
		return fail(out, "%v", err)
	}
	defer logOut.Close()
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return fail(out, "%v", err)
	}

	sessions, closeDB, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return fail(out, "%v", err)
	}
	defer closeDB()

	sessionID := f.session
	if sessionID == "" {
		sessionID = uuid.ForShell(os.Getppid(), ttyName()).String()
	}
	logger = logger.With().Str("session", sessionID).Logger()
	storage := sessions.Session(sessionID)

	if f.clear {
		if _, err := conversation.NewStore(storage, "", logger).Clear(); err != nil {
			return fail(out, "%v", err)
		}
		fmt.Fprintf(out, "session %s cleared\n", sessionID) //nolint:errcheck
		return exitOK
	}

	provider := f.provider
	if provider == "" {
		provider = cfg.DefaultProvider
	}
	route, ok := routeFor(provider)
	if !ok {
		return fail(out, "no chat route for provider %q", provider)
	}
	serverURL := f.server
	if serverURL == "" {
		serverURL = cfg.ServerURL
	}

	c := client.New(serverURL, client.WithRoute(route), client.WithLogger(logger))
	infoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	info, err := c.Persona(infoCtx)
	cancel()
	if err != nil {
		return fail(out, "cannot reach folio server at %s: %v", serverURL, err)
	}

	m := ui.New(ui.Options{
		Context: ctx,
		Sender:  c,
		Store:   conversation.NewStore(storage, info.Intro, logger),
		Logger:  logger,
		Name:    firstName(info.Name),
		Footer:  contactLine(info),
	})
	if err := ui.Run(m); err != nil {
		return fail(out, "%v", err)
	}
	return exitOK
}

// openSessions opens the session database, creating its directory and schema,
// and drops expired sessions.
func openSessions(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*sqlite.SessionKV, func(), error) {
	db, err := sqlite.Open(ctx, cfg.SessionDBPath)
	if err != nil {
		return nil, nil, err
	}
	kv := sqlite.NewSessionKV(db, cfg.SessionTTL)
	if n, err := kv.PurgeExpired(ctx); err != nil {
		logger.Warn().Err(err).Msg("purge expired sessions")
	} else if n > 0 {
		logger.Debug().Int64("purged", n).Msg("expired sessions removed")
	}
	return kv, func() { db.Close() }, nil
}

// ttyName identifies the controlling terminal so two shells with the same
// parent pid still get separate sessions.
func ttyName() string {
	name, err := os.Readlink("/proc/self/fd/0")
	if err != nil {
		return os.Getenv("TERM_SESSION_ID")
	}
	return name
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func contactLine(info *client.PersonaInfo) string {
	var parts []string
	for _, key := range []string{"email", "phone", "github"} {
		if v := info.Contact[key]; v != "" {
			parts = append(parts, v)
		}
	}
	if info.ResumeURL != "" {
		parts = append(parts, "resume: "+info.ResumeURL)
	}
	return strings.Join(parts, "  ·  ")
}
