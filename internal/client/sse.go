package client

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// maxEventSize bounds a single SSE event so a broken server cannot grow memory without limit.
const maxEventSize = 64 * 1024

var errEventTooLarge = errors.New("client: sse event exceeds size limit")

// sseReader parses the data fields of Server-Sent Events. Other fields
// (event:, id:, retry:) and comment lines are skipped.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// next returns the payload of the next event, joining multi-line data with
// newlines. It returns io.EOF once the stream ends between events.
func (s *sseReader) next() ([]byte, error) {
	var data [][]byte
	size := 0
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		atEOF := err != nil

		line = bytes.TrimRight(line, "\r\n")
		if payload, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			payload = bytes.TrimPrefix(payload, []byte(" "))
			size += len(payload)
			if size > maxEventSize {
				return nil, errEventTooLarge
			}
			data = append(data, payload)
		}

		switch {
		case (len(line) == 0 || atEOF) && len(data) > 0:
			return bytes.Join(data, []byte("\n")), nil
		case atEOF:
			return nil, io.EOF
		}
	}
}
