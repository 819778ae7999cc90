// folio - persona chat server, terminal client and MCP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmiller-dev/folio/internal/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCommand(ctx, args[0], args[1:], out)
	}

	fs := flag.NewFlagSet("folio", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return exitOK
	}

	if *showHelp {
		printHelp(out)
		return exitOK
	}

	// No command: print the version.
	fmt.Fprintln(out, version.String()) //nolint:errcheck
	return exitOK
}

func runCommand(ctx context.Context, name string, args []string, out io.Writer) int {
	switch name {
	case "serve":
		return runServe(ctx, args, out)
	case "chat":
		return runChat(ctx, args, out)
	case "intro":
		return runIntro(ctx, args, out)
	case "mcp":
		return runMCP(ctx, args, out)
	case "version":
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return exitOK
	case "help":
		printHelp(out)
		return exitOK
	default:
		fmt.Fprintf(out, "unknown command %q\n\n", name) //nolint:errcheck
		printHelp(out)
		return exitUsage
	}
}

// fail reports a runtime error and returns exitError.
func fail(out io.Writer, format string, args ...any) int {
	fmt.Fprintf(out, "folio: "+format+"\n", args...) //nolint:errcheck
	return exitError
}

func printHelp(out io.Writer) {
	helpText := `folio - chat with a portfolio persona

Usage:
  folio <command> [options]
  folio [--version | --help]

Commands:
  serve        Start the HTTP server
  chat         Open the terminal chat client
  intro        Print the persona introduction with the typewriter effect
  mcp          Serve the persona over MCP on stdio

Options:
  --version    Show version information
  --help       Show this help message

Common command options:
  --config     Optional YAML config file (keys are lower-case env names)

Chat options:
  --server     Server URL (default SERVER_URL or http://localhost:3000)
  --provider   openai, groq, anthropic or ollama (default DEFAULT_PROVIDER)
  --session    Session id (default: one per parent shell)
  --clear      Forget the session and exit
  --log-file   Write client logs to this file

Examples:
  folio serve --config folio.yaml
  folio chat --provider anthropic
  folio intro --speed 5ms
  folio mcp`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
