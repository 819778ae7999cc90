package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"

	anthropicTemperature = 0.7
	anthropicMaxTokens   = 800
)

// AnthropicConfig configures the Messages API adapter.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Transport   http.RoundTripper
}

// AnthropicProvider implements LLMProvider with anthropic-sdk-go.
// The system prompt travels in the dedicated system field.
type AnthropicProvider struct {
	cfg    AnthropicConfig
	client anthropic.Client
	now    func() time.Time
}

// NewAnthropicProvider builds an adapter with SDK retries disabled.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = anthropicTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = anthropicMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout, Transport: transport}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
		now:    time.Now,
	}
}

func (p *AnthropicProvider) credentialsErr() error {
	return &CredentialsError{Vendor: "Anthropic", EnvVar: "ANTHROPIC_API_KEY"}
}

// ChatCompletion calls POST /v1/messages without streaming.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.cfg.APIKey == "" {
		return nil, p.credentialsErr()
	}
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, p.wrapErr(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return &ChatResponse{
		Content:    b.String(),
		StopReason: string(msg.StopReason),
		Tokens:     int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

// ChatCompletionStream calls POST /v1/messages with stream=true and forwards
// every text delta. The first event is read before returning so that HTTP
// failures (bad key, throttling) surface as a plain error.
func (p *AnthropicProvider) ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if p.cfg.APIKey == "" {
		return nil, p.credentialsErr()
	}
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))
	if !stream.Next() {
		err := stream.Err()
		stream.Close() //nolint:errcheck
		if err == nil {
			err = errors.New("stream ended before any event")
		}
		return nil, p.wrapErr(err)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close() //nolint:errcheck
		for {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					if !sendChunk(ctx, ch, StreamChunk{Delta: delta.Text}) {
						return
					}
				}
			case anthropic.MessageStopEvent:
				sendChunk(ctx, ch, StreamChunk{Done: true})
				return
			}
			if !stream.Next() {
				break
			}
		}
		if err := stream.Err(); err != nil {
			sendChunk(ctx, ch, StreamChunk{Err: p.wrapErr(err)})
			return
		}
		sendChunk(ctx, ch, StreamChunk{Done: true})
	}()
	return ch, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *AnthropicProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:        p.cfg.Model,
		Provider:  "anthropic",
		Version:   "2023-06-01",
		MaxTokens: p.cfg.MaxTokens,
	}
}

// HealthCheck only verifies configuration; the Messages API has no free probe.
func (p *AnthropicProvider) HealthCheck(_ context.Context) error {
	if p.cfg.APIKey == "" {
		return p.credentialsErr()
	}
	return nil
}

func (p *AnthropicProvider) buildParams(req ChatRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	temperature := float64(req.Temperature)
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	system := req.System
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		case RoleSystem:
			system = strings.TrimSpace(system + "\n\n" + m.Content)
		default:
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages:    msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (p *AnthropicProvider) wrapErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		var h http.Header
		if apiErr.Response != nil {
			h = apiErr.Response.Header
		}
		return NewRateLimitError("anthropic", h, p.now(), err)
	}
	return fmt.Errorf("anthropic chat: %w", err)
}
