package llm

import "context"

// LLMProvider is the vendor-neutral interface implemented by every adapter.
// The application never imports a vendor SDK outside this package.
type LLMProvider interface {
	// ChatCompletion performs a single round-trip completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatCompletionStream starts a streamed completion. Errors that happen
	// before the first fragment are returned directly; later failures arrive
	// as a terminal chunk with Err set. The channel is closed after the
	// terminal chunk. Cancelling ctx aborts the upstream call.
	ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is configured and reachable.
	HealthCheck(ctx context.Context) error
}

// sendChunk delivers c unless ctx is done first.
func sendChunk(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
