package client

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEReader_Events(t *testing.T) {
	t.Parallel()

	in := ": keep-alive\n\nevent: message\ndata: {\"text\":\"a\"}\n\ndata: one\r\ndata: two\r\n\r\ndata:[DONE]"
	r := newSSEReader(strings.NewReader(in))

	var got []string
	for {
		data, err := r.next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.Equal(t, []string{`{"text":"a"}`, "one\ntwo", "[DONE]"}, got)
}

func TestSSEReader_RejectsOversizedEvent(t *testing.T) {
	t.Parallel()

	in := "data: " + strings.Repeat("x", maxEventSize+1) + "\n\n"
	_, err := newSSEReader(strings.NewReader(in)).next()
	assert.ErrorIs(t, err, errEventTooLarge)
}
