package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader hands out its chunks one Read call at a time.
type chunkReader struct {
	chunks []string
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if c.chunks[0] == "" {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func collect(t *testing.T, r io.Reader) ([]string, string, error) {
	t.Helper()
	var fragments []string
	text, err := Read(r, func(f string) { fragments = append(fragments, f) })
	return fragments, text, err
}

func TestRead_Hello(t *testing.T) {
	r := &chunkReader{chunks: []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n",
		"data: [DONE]\n",
	}}

	fragments, text, err := collect(t, r)

	require.NoError(t, err)
	assert.Equal(t, []string{"He", "llo"}, fragments)
	assert.Equal(t, "Hello", text)
}

func TestRead_SplitAcrossChunks(t *testing.T) {
	line := "data: {\"choices\":[{\"delta\":{\"content\":\"血糖偏高\"}}]}\n"
	// Split inside a multi-byte character and inside the prefix.
	cut := strings.Index(line, "糖") + 1
	r := &chunkReader{chunks: []string{"da", line[2:cut], line[cut:], "\n", ": keepalive\n"}}

	fragments, text, err := collect(t, r)

	require.NoError(t, err)
	assert.Equal(t, []string{"血糖偏高"}, fragments)
	assert.Equal(t, "血糖偏高", text)
}

func TestRead_SkipsNoise(t *testing.T) {
	body := strings.Join([]string{
		"",
		"event: message",
		"data: not-json",
		"data: {\"choices\":[]}",
		"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}",
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}",
		"data: [DONE]",
	}, "\r\n")

	fragments, text, err := collect(t, strings.NewReader(body))

	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, fragments)
	assert.Equal(t, "ok", text)
}

func TestRead_TrailingLineWithoutNewline(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}"

	_, text, err := collect(t, strings.NewReader(body))

	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestRead_ErrorKeepsPartialText(t *testing.T) {
	boom := errors.New("connection reset")
	r := &chunkReader{
		chunks: []string{
			"data: {\"choices\":[{\"delta\":{\"content\":\"部分\"}}]}\n",
			"data: {\"choices\":[{\"del",
		},
		err: boom,
	}

	fragments, text, err := collect(t, r)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"部分"}, fragments)
	assert.Equal(t, "部分", text)
}

func TestParseLine(t *testing.T) {
	got, ok := ParseLine("  data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}  ")
	assert.True(t, ok)
	assert.Equal(t, "x", got)

	_, ok = ParseLine("data: [DONE]")
	assert.False(t, ok)
}
