package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/chat"
	"github.com/mmiller-dev/folio/internal/infra/llm"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	// errGenericAI is the only failure detail clients ever see for vendor errors.
	errGenericAI = "Failed to get response from AI"
)

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeMessage is the success shape for both answers and soft failures.
func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// writeChatError maps chat and provider errors to status codes. Vendor
// detail is logged, never returned.
func writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *llm.CredentialsError
	var rl *llm.RateLimitError
	switch {
	case errors.Is(err, chat.ErrNoMessages), errors.Is(err, chat.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ce):
		zerolog.Ctx(r.Context()).Warn().Str("env_var", ce.EnvVar).Msg("provider key not configured")
		writeError(w, http.StatusInternalServerError, ce.Error())
	case errors.As(err, &rl):
		writeMessage(w, rl.Message(time.Now()))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("chat request failed")
		writeError(w, http.StatusInternalServerError, errGenericAI)
	}
}
