// Ollama HTTP adapter for locally hosted models.
// Endpoints used:
//   - POST /api/chat: chat completion, batched or NDJSON-streamed
//   - GET  /api/tags: health check (lists available models)
package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const ollamaChatPath = "/api/chat"

// OllamaProvider implements LLMProvider against a running Ollama instance.
// It needs no credentials.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider. Streams can be long-lived, so
// only the connection phase is bounded.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// ollamaTurn is both a request message and the message inside a reply line.
type ollamaTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatBody struct {
	Model    string         `json:"model"`
	Messages []ollamaTurn   `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// ollamaLine is the batched reply, or one NDJSON line of a streamed one.
type ollamaLine struct {
	Message         ollamaTurn `json:"message"`
	DoneReason      string     `json:"done_reason"`
	Done            bool       `json:"done"`
	PromptEvalCount int        `json:"prompt_eval_count"`
	EvalCount       int        `json:"eval_count"`
	Error           string     `json:"error,omitempty"`
}

func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := p.postChat(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var line ollamaLine
	if err := json.NewDecoder(body).Decode(&line); err != nil {
		return nil, fmt.Errorf("ollama chat: decode: %w", err)
	}
	if line.Error != "" {
		return nil, fmt.Errorf("ollama chat: %s", line.Error)
	}
	return &ChatResponse{
		Content:    line.Message.Content,
		StopReason: line.DoneReason,
		Tokens:     line.PromptEvalCount + line.EvalCount,
	}, nil
}

// ChatCompletionStream reads the NDJSON stream of POST /api/chat.
func (p *OllamaProvider) ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	respBody, err := p.postChat(ctx, req, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer respBody.Close() //nolint:errcheck

		dec := json.NewDecoder(respBody)
		for {
			var line ollamaLine
			if decodeErr := dec.Decode(&line); decodeErr != nil {
				if errors.Is(decodeErr, io.EOF) {
					sendChunk(ctx, ch, StreamChunk{Done: true})
					return
				}
				sendChunk(ctx, ch, StreamChunk{Err: fmt.Errorf("ollama stream: %w", decodeErr)})
				return
			}
			if line.Error != "" {
				sendChunk(ctx, ch, StreamChunk{Err: fmt.Errorf("ollama stream: %s", line.Error)})
				return
			}
			if line.Message.Content != "" {
				if !sendChunk(ctx, ch, StreamChunk{Delta: line.Message.Content}) {
					return
				}
			}
			if line.Done {
				sendChunk(ctx, ch, StreamChunk{Done: true})
				return
			}
		}
	}()
	return ch, nil
}

func (p *OllamaProvider) chatBody(req ChatRequest, stream bool) ollamaChatBody {
	body := ollamaChatBody{
		Model:    cmp.Or(req.Model, p.model),
		Messages: make([]ollamaTurn, 0, len(req.Messages)+1),
		Stream:   stream,
		Options:  buildChatOptions(req),
	}
	for _, m := range withSystem(req) {
		body.Messages = append(body.Messages, ollamaTurn(m))
	}
	return body
}

// buildChatOptions converts ChatRequest fields into Ollama options map.
func buildChatOptions(req ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens != 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// ModelInfo returns static metadata for this provider/model.
func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:        p.model,
		Provider:  "ollama",
		Version:   "v1",
		MaxTokens: 4096,
	}
}

// ErrModelNotPulled is returned by HealthCheck when Ollama runs but lacks the configured model.
var ErrModelNotPulled = errors.New("ollama: model not pulled")

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HealthCheck lists local models via GET /api/tags and requires the
// configured one to be present.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama healthcheck: status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("ollama healthcheck: decode tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == p.model || m.Name == p.model+":latest" {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (run `ollama pull %s`)", ErrModelNotPulled, p.model, p.model)
}

// postChat sends one /api/chat request. A non-2xx answer becomes an error
// carrying Ollama's own message; otherwise the caller owns the body.
func (p *OllamaProvider) postChat(ctx context.Context, req ChatRequest, stream bool) (io.ReadCloser, error) {
	payload, err := json.Marshal(p.chatBody(req, stream))
	if err != nil {
		return nil, fmt.Errorf("ollama chat: encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ollamaChatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama chat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}
	defer resp.Body.Close() //nolint:errcheck

	var apiErr struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr) == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, apiErr.Error)
	}
	return nil, fmt.Errorf("ollama chat: status %d", resp.StatusCode)
}
