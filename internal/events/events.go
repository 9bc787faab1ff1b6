// Package events carries pipeline notifications to whoever is watching:
// in-process subscribers such as the SSE endpoint, and optionally Redis.
package events

import (
	"context"
	"time"
)

const (
	OCRProgress     = "ocr_progress"
	OCRComplete     = "ocr_complete"
	OCRError        = "ocr_error"
	AIStreamChunk   = "ai_stream_chunk"
	AIStreamDone    = "ai_stream_done"
	AIStreamError   = "ai_stream_error"
	ChatStreamChunk = "chat_stream_chunk"
	ChatStreamDone  = "chat_stream_done"
	ChatStreamError = "chat_stream_error"
)

type Event struct {
	Name    string    `json:"event"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

func New(name string, payload any) Event {
	return Event{Name: name, Payload: payload, Time: time.Now().UTC()}
}

// Publisher delivers at most once; implementations never block the caller
// on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type Progress struct {
	RecordID    string `json:"record_id"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	CurrentFile string `json:"current_file"`
	Phase       string `json:"phase"`
}

// Chunk is one streamed content fragment. ID is the analysis or chat
// message being written.
type Chunk struct {
	RecordID string `json:"record_id,omitempty"`
	ID       string `json:"id"`
	Text     string `json:"text"`
}

type StreamDone struct {
	RecordID string `json:"record_id,omitempty"`
	ID       string `json:"id"`
	Content  string `json:"content"`
}

type Failure struct {
	RecordID string `json:"record_id,omitempty"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error"`
}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		p.Publish(ctx, ev)
	}
}
