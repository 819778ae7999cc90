// Package llm defines the vendor-neutral chat provider abstraction.
// All types here are shared between the provider interface and adapters.
package llm

// Conversation roles accepted by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input for a chat completion, batched or streamed.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	// System is sent the way each vendor expects it: as a leading system
	// message for OpenAI-compatible APIs, as a separate field for Anthropic.
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the output from a batched chat completion.
type ChatResponse struct {
	Content    string // The assistant message text.
	StopReason string // vendor finish reason, e.g. "stop", "end_turn", "length"
	Tokens     int    // Total tokens consumed (prompt + completion), 0 when unknown.
}

// StreamChunk is one element of a streamed completion.
// Exactly one chunk has Done or Err set, and it is the last one sent.
type StreamChunk struct {
	Delta string
	Done  bool
	Err   error
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string // e.g. "gpt-3.5-turbo", "claude-3-5-haiku-20241022"
	Provider  string // e.g. "openai", "groq", "anthropic", "ollama"
	Version   string
	MaxTokens int // Default completion budget for this adapter.
}

// withSystem prepends the system prompt as a chat message when present.
func withSystem(req ChatRequest) []Message {
	if req.System == "" {
		return req.Messages
	}
	out := make([]Message, 0, len(req.Messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: req.System})
	return append(out, req.Messages...)
}
