package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	GroqBaseURL        = "https://api.groq.com/openai/v1"

	openAICompatTemperature = 0.5
	openAICompatMaxTokens   = 250
)

// OpenAIConfig configures an adapter for any OpenAI-compatible chat API.
type OpenAIConfig struct {
	Name        string // router key and log label, e.g. "openai", "groq"
	Vendor      string // display name used in credential errors
	EnvVar      string // environment variable expected to hold the key
	APIKey      string
	BaseURL     string // empty means the SDK default
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Transport   http.RoundTripper
}

// OpenAIProvider implements LLMProvider with the go-openai client. Groq is
// served by the same adapter pointed at its compatible endpoint.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *openai.Client
	now    func() time.Time
}

// NewOpenAIProvider builds an adapter. A missing key is not an error here;
// every call reports it instead so the server can still start.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Vendor == "" {
		cfg.Vendor = "OpenAI"
	}
	if cfg.EnvVar == "" {
		cfg.EnvVar = "OPENAI_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = openAICompatTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = openAICompatMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: newThrottleCapture(cfg.Transport),
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		now:    time.Now,
	}
}

// NewGroqProvider is NewOpenAIProvider preset for Groq's OpenAI-compatible API.
func NewGroqProvider(apiKey, model, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	if model == "" {
		model = DefaultGroqModel
	}
	return NewOpenAIProvider(OpenAIConfig{
		Name:    "groq",
		Vendor:  "Groq",
		EnvVar:  "GROQ_API_KEY",
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
	})
}

// ChatCompletion calls POST /chat/completions once.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.cfg.APIKey == "" {
		return nil, &CredentialsError{Vendor: p.cfg.Vendor, EnvVar: p.cfg.EnvVar}
	}
	ctx, sink := withHeaderSink(ctx)

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return nil, p.wrapErr(err, sink)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat: response has no choices", p.cfg.Name)
	}
	choice := resp.Choices[0]
	return &ChatResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Tokens:     resp.Usage.TotalTokens,
	}, nil
}

// ChatCompletionStream calls POST /chat/completions with stream=true.
func (p *OpenAIProvider) ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if p.cfg.APIKey == "" {
		return nil, &CredentialsError{Vendor: p.cfg.Vendor, EnvVar: p.cfg.EnvVar}
	}
	ctx, sink := withHeaderSink(ctx)

	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req))
	if err != nil {
		return nil, p.wrapErr(err, sink)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close() //nolint:errcheck
		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				sendChunk(ctx, ch, StreamChunk{Done: true})
				return
			}
			if recvErr != nil {
				sendChunk(ctx, ch, StreamChunk{Err: p.wrapErr(recvErr, sink)})
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !sendChunk(ctx, ch, StreamChunk{Delta: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()
	return ch, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *OpenAIProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:        p.cfg.Model,
		Provider:  p.cfg.Name,
		Version:   "v1",
		MaxTokens: p.cfg.MaxTokens,
	}
}

// HealthCheck lists models, which needs a valid key but costs no tokens.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return &CredentialsError{Vendor: p.cfg.Vendor, EnvVar: p.cfg.EnvVar}
	}
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s healthcheck: %w", p.cfg.Name, err)
	}
	return nil
}

func (p *OpenAIProvider) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	msgs := withSystem(req)
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    out,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func (p *OpenAIProvider) wrapErr(err error, sink *headerSink) error {
	if openAIStatus(err) == http.StatusTooManyRequests {
		return NewRateLimitError(p.cfg.Name, sink.get(), p.now(), err)
	}
	return fmt.Errorf("%s chat: %w", p.cfg.Name, err)
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
