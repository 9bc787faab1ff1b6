package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus(8)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(context.Background(), New(AIStreamChunk, Chunk{ID: "a1", Text: "He"}))
	bus.Publish(context.Background(), New(AIStreamChunk, Chunk{ID: "a1", Text: "llo"}))

	first := <-ch
	second := <-ch
	assert.Equal(t, "He", first.Payload.(Chunk).Text)
	assert.Equal(t, "llo", second.Payload.(Chunk).Text)
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(1)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(context.Background(), New(OCRProgress, Progress{Completed: 1}))
	bus.Publish(context.Background(), New(OCRProgress, Progress{Completed: 2}))

	ev := <-ch
	assert.Equal(t, 1, ev.Payload.(Progress).Completed)
	select {
	case <-ch:
		t.Fatal("expected second event to be dropped")
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(1)
	ch, unsubscribe := bus.Subscribe()
	require.Equal(t, 1, bus.Subscribers())

	unsubscribe()
	unsubscribe()

	assert.Zero(t, bus.Subscribers())
	_, open := <-ch
	assert.False(t, open)
	bus.Publish(context.Background(), New(OCRError, Failure{Error: "x"}))
}

type recorder struct{ got []string }

func (r *recorder) Publish(_ context.Context, ev Event) { r.got = append(r.got, ev.Name) }

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, b}.Publish(context.Background(), New(OCRComplete, nil))
	assert.Equal(t, []string{OCRComplete}, a.got)
	assert.Equal(t, []string{OCRComplete}, b.got)
}
