package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/mmiller-dev/folio/internal/domain/persona"
	"github.com/mmiller-dev/folio/internal/domain/typewriter"
	"github.com/mmiller-dev/folio/internal/infra/config"
)

// runIntro types the persona introduction to out without a server.
func runIntro(ctx context.Context, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("intro", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "Optional YAML config file")
	personaPath := fs.String("persona", "", "Persona document (default PERSONA_PATH)")
	speed := fs.Duration("speed", typewriter.IntroSpeed, "Delay per character")
	instant := fs.Bool("instant", false, "Print the whole introduction at once")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path := *personaPath
	if path == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return fail(out, "%v", err)
		}
		path = cfg.PersonaPath
	}
	doc, err := persona.Load(path)
	if err != nil {
		return fail(out, "%v", err)
	}

	shown := 0
	r := typewriter.New(persona.IntroMessage(doc), *speed, !*instant)
	err = typewriter.Play(ctx, r, func(ev typewriter.Event) {
		if ev.Kind != typewriter.EventEmit {
			return
		}
		// Every emission extends the previous one; print only the new tail.
		fmt.Fprint(out, ev.Text[shown:]) //nolint:errcheck
		shown = len(ev.Text)
	})
	fmt.Fprintln(out) //nolint:errcheck
	if err != nil && !errors.Is(err, context.Canceled) {
		return fail(out, "%v", err)
	}
	return exitOK
}
