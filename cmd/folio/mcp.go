package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/mmiller-dev/folio/internal/mcpserver"
)

// runMCP speaks MCP on stdin/stdout, so logs and errors go to stderr only.
func runMCP(ctx context.Context, args []string, _ io.Writer) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "Optional YAML config file")
	provider := fs.String("provider", "", "Provider answering the ask tool (default DEFAULT_PROVIDER)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	b, err := loadBackend(*configPath, os.Stderr)
	if err != nil {
		return fail(os.Stderr, "%v", err)
	}
	svc, err := b.chatService()
	if err != nil {
		return fail(os.Stderr, "%v", err)
	}

	srv := mcpserver.New(b.persona, svc, *provider, b.logger)
	b.logger.Info().Str("persona", b.persona.Name).Msg("mcp server ready on stdio")
	if err := srv.RunStdio(ctx); err != nil {
		return fail(os.Stderr, "%v", err)
	}
	return exitOK
}
