// Package stream reads the line-oriented event protocol of a streaming chat
// completion and reassembles the content deltas.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	dataPrefix = "data: "
	doneLine   = "data: [DONE]"
)

// ParseLine returns the content delta carried by one protocol line. Blank
// lines, the terminator and anything unparsable yield ok == false.
func ParseLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line == doneLine || !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, dataPrefix)), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}

// Read consumes body until EOF, calling onFragment for every content delta
// in arrival order, and returns the accumulated text. A read error stops the
// stream; the text gathered so far is returned together with the error so
// the caller can still keep it.
func Read(body io.Reader, onFragment func(string)) (string, error) {
	var (
		full strings.Builder
		br   = bufio.NewReader(body)
	)

	for {
		raw, err := br.ReadBytes('\n')
		complete := err == nil || errors.Is(err, io.EOF)
		if len(raw) > 0 && complete {
			line := strings.ToValidUTF8(string(raw), "�")
			if fragment, ok := ParseLine(line); ok {
				full.WriteString(fragment)
				if onFragment != nil {
					onFragment(fragment)
				}
			}
		}

		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), err
		}
	}
}
