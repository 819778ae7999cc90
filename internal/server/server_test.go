package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "127.0.0.1" {
		t.Fatalf("Host = %q; want %q", cfg.Host, "127.0.0.1")
	}
	if cfg.Port != 3000 {
		t.Fatalf("Port = %d; want %d", cfg.Port, 3000)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("ReadTimeout = %v; want %v", cfg.ReadTimeout, 15*time.Second)
	}
	if cfg.WriteTimeout != 2*time.Minute {
		t.Fatalf("WriteTimeout = %v; want %v", cfg.WriteTimeout, 2*time.Minute)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Fatalf("IdleTimeout = %v; want %v", cfg.IdleTimeout, 60*time.Second)
	}
}

func TestNewServer_ConfiguresAddressAndHandler(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 18080, ReadTimeout: time.Second, WriteTimeout: 2 * time.Second, IdleTimeout: 3 * time.Second}
	s := NewServer(http.NotFoundHandler(), cfg, zerolog.Nop())

	if s.http.Addr != "127.0.0.1:18080" {
		t.Fatalf("Addr = %q; want %q", s.http.Addr, "127.0.0.1:18080")
	}
	if s.http.Handler == nil {
		t.Fatal("Handler should not be nil")
	}
	if s.http.WriteTimeout != 2*time.Second {
		t.Fatalf("WriteTimeout = %v; want %v", s.http.WriteTimeout, 2*time.Second)
	}
}

func TestServe_ServesUntilCancelledThenRunsHooks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "pong") //nolint:errcheck
	})
	s := NewServer(handler, DefaultConfig(), zerolog.Nop())
	hookRan := false
	s.OnShutdown(func() error { hookRan = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("body = %q; want %q", body, "pong")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v; want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !hookRan {
		t.Fatal("expected shutdown hook to run")
	}
}

func TestShutdown_JoinsHookErrors(t *testing.T) {
	s := NewServer(http.NotFoundHandler(), DefaultConfig(), zerolog.Nop())
	boom := errors.New("close db")
	s.OnShutdown(func() error { return boom })

	if err := s.Shutdown(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Shutdown() error = %v; want %v", err, boom)
	}
}
