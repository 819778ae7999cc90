package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/reply"
)

const (
	sseDone        = "[DONE]"
	sseStreamError = "Stream error occurred. Please try again."
)

type sseText struct {
	Text string `json:"text"`
}

type sseError struct {
	Error bool   `json:"error"`
	Text  string `json:"text"`
}

// streamReply relays fragments as server-sent events:
//
//	data: {"text":"..."}        one per fragment
//	data: {"error":true,...}    on a mid-stream failure
//	data: [DONE]                always last
//
// A failure before the first fragment is answered with the JSON error shapes
// instead, since no event-stream headers have been sent yet.
func streamReply(w http.ResponseWriter, r *http.Request, rep *reply.Reply) {
	ctx := r.Context()
	frags := rep.Fragments()

	var frag reply.Fragment
	var open bool
	select {
	case <-ctx.Done():
		return
	case frag, open = <-frags:
	}
	if open && frag.Err != nil {
		writeChatError(w, r, frag.Err)
		return
	}

	bw, flusher, err := prepareStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	logger := zerolog.Ctx(ctx)
	for open {
		if frag.Err != nil {
			logger.Error().Err(frag.Err).Msg("stream failed after first fragment")
			writeEvent(bw, flusher, sseError{Error: true, Text: sseStreamError}) //nolint:errcheck
			break
		}
		if err := writeEvent(bw, flusher, sseText{Text: frag.Text}); err != nil {
			logger.Debug().Err(err).Msg("client went away mid-stream")
			return
		}
		select {
		case <-ctx.Done():
			return
		case frag, open = <-frags:
		}
	}
	writeRaw(bw, flusher, sseDone) //nolint:errcheck
}

func prepareStream(w http.ResponseWriter) (*bufio.Writer, http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, nil, errors.New("response writer does not implement http.Flusher")
	}

	w.Header().Set(headerContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return bufio.NewWriter(w), flusher, nil
}

func writeEvent(bw *bufio.Writer, flusher http.Flusher, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return writeRaw(bw, flusher, string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))))
}

func writeRaw(bw *bufio.Writer, flusher http.Flusher, data string) error {
	if _, err := fmt.Fprintf(bw, "data: %s\n\n", data); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
