package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/chat"
	"github.com/mmiller-dev/folio/internal/domain/reply"
	"github.com/mmiller-dev/folio/internal/infra/llm"
)

// ChatSender is satisfied by *chat.Service.
type ChatSender interface {
	Send(ctx context.Context, provider string, delivery chat.Delivery, history []llm.Message) (*reply.Reply, error)
}

// ChatHandler serves one chat route, bound to a provider and delivery mode.
type ChatHandler struct {
	chat     ChatSender
	provider string
	delivery chat.Delivery
}

func NewChatHandler(sender ChatSender, provider string, delivery chat.Delivery) *ChatHandler {
	return &ChatHandler{chat: sender, provider: provider, delivery: delivery}
}

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// Chat handles POST with {"messages": [...]}.
// Batched: 200 {"message"}. Streamed: text/event-stream, see streamReply.
// Rate limits answer 200 {"message"} in both modes.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	logger := zerolog.Ctx(r.Context()).With().Str("provider", h.provider).Logger()
	ctx := logger.WithContext(r.Context())
	r = r.WithContext(ctx)

	rep, err := h.chat.Send(ctx, h.provider, h.delivery, req.Messages)
	if err != nil {
		writeChatError(w, r, err)
		return
	}
	defer rep.Close()

	if rep.Batched() {
		text, err := rep.Collect(ctx)
		if err != nil {
			writeChatError(w, r, err)
			return
		}
		writeMessage(w, text)
		return
	}
	streamReply(w, r, rep)
}
