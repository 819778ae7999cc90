// Package client talks to a folio server on behalf of the terminal chat surface.
//
// Replies come back as reply.Reply regardless of whether the route answers
// with one JSON object or a text/event-stream, so callers never look at the
// wire format.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/reply"
	"github.com/mmiller-dev/folio/internal/infra/llm"
	"github.com/mmiller-dev/folio/internal/version"
	"github.com/mmiller-dev/folio/pkg/uuid"
)

const (
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-Id"
	mimeJSON          = "application/json"
	mimeEventStream   = "text/event-stream"

	// DefaultRoute is the batched OpenAI route.
	DefaultRoute = "/api/chat"

	streamDone = "[DONE]"
)

// ErrServer is wrapped by every ServerError.
var ErrServer = errors.New("client: server error")

// ErrStreamTruncated is reported when a stream ends without its end marker.
var ErrStreamTruncated = errors.New("client: stream ended before [DONE]")

// ServerError is a non-200 response. Message is the server's {error} text when present.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *ServerError) Unwrap() error { return ErrServer }

// StreamError is an error event sent by the server in the middle of a stream.
type StreamError struct {
	Text string
}

func (e *StreamError) Error() string { return e.Text }

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	route      string
	httpClient *http.Client
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithRoute selects the chat route, for example "/api/chat-claude".
func WithRoute(route string) Option { return func(c *Client) { c.route = route } }

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		route:   DefaultRoute,
		// No overall timeout: streamed replies may take a while. Callers bound
		// requests with their context.
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Route is the chat route the client posts to.
func (c *Client) Route() string { return c.route }

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type streamEvent struct {
	Text  string `json:"text"`
	Error bool   `json:"error"`
}

// Send posts history to the chat route. Errors returned directly happened
// before any text arrived; a failure in the middle of a stream arrives as a
// terminal fragment instead.
func (c *Client) Send(ctx context.Context, history []llm.Message) (*reply.Reply, error) {
	body, err := json.Marshal(chatRequest{Messages: history})
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodPost, c.route, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set("Accept", mimeJSON+", "+mimeEventStream)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("client: post %s: %w", c.route, err)
	}

	log := c.logger.With().Str("route", c.route).Str("request_id", req.Header.Get(headerRequestID)).Logger()
	if isEventStream(resp.Header.Get(headerContentType)) && resp.StatusCode == http.StatusOK {
		log.Debug().Dur("ttfb", time.Since(start)).Msg("stream opened")
		return reply.Stream(c.pump(ctx, resp.Body, log), cancel), nil
	}

	defer cancel()
	defer resp.Body.Close()
	var payload messageResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxEventSize)).Decode(&payload)
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("error", payload.Error).Msg("chat request failed")
		return nil, &ServerError{Status: resp.StatusCode, Message: payload.Error}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("client: decode reply: %w", decodeErr)
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("reply received")
	return reply.Text(payload.Message), nil
}

// pump forwards stream events as fragments until [DONE], an error event or ctx ends.
func (c *Client) pump(ctx context.Context, body io.ReadCloser, log zerolog.Logger) <-chan reply.Fragment {
	out := make(chan reply.Fragment)
	go func() {
		defer close(out)
		defer body.Close()

		send := func(f reply.Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		events := newSSEReader(body)
		for {
			data, err := events.next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, io.EOF) {
					err = ErrStreamTruncated
				}
				log.Warn().Err(err).Msg("stream read failed")
				send(reply.Fragment{Err: err})
				return
			}
			if string(data) == streamDone {
				return
			}

			var ev streamEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				send(reply.Fragment{Err: fmt.Errorf("client: decode stream event: %w", err)})
				return
			}
			if ev.Error {
				send(reply.Fragment{Err: &StreamError{Text: ev.Text}})
				return
			}
			if ev.Text == "" {
				continue
			}
			if !send(reply.Fragment{Text: ev.Text}) {
				return
			}
		}
	}()
	return out
}

// PersonaInfo is the public part of the persona served by /api/persona.
type PersonaInfo struct {
	Name      string            `json:"name"`
	Title     string            `json:"title"`
	Intro     string            `json:"intro"`
	Avatar    string            `json:"avatar,omitempty"`
	ResumeURL string            `json:"resume_url,omitempty"`
	Contact   map[string]string `json:"contact,omitempty"`
}

// Persona fetches the intro markdown and contact links.
func (c *Client) Persona(ctx context.Context) (*PersonaInfo, error) {
	var info PersonaInfo
	if err := c.getJSON(ctx, "/api/persona", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health returns nil when the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	return c.getJSON(ctx, "/health", &status)
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var payload messageResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &ServerError{Status: resp.StatusCode, Message: payload.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(headerRequestID, uuid.NewV7().String())
	return req, nil
}

func isEventStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == mimeEventStream
}
