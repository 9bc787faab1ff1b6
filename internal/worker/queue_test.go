package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

func TestQueue_RunsJobs(t *testing.T) {
	q := NewQueue(4, 2, utils.NewNopLogger(), Hooks{})
	var (
		mu  sync.Mutex
		ran []string
	)
	for _, k := range []string{"a", "b", "c"} {
		k := k
		require.NoError(t, q.Submit(k, func(context.Context) error {
			mu.Lock()
			ran = append(ran, k)
			mu.Unlock()
			return nil
		}))
	}

	q.Stop(context.Background())

	assert.ElementsMatch(t, []string{"a", "b", "c"}, ran)
	assert.ErrorIs(t, q.Submit("d", func(context.Context) error { return nil }), ErrStopped)
}

func TestQueue_CancelRunningJob(t *testing.T) {
	q := NewQueue(1, 1, utils.NewNopLogger(), Hooks{})
	started := make(chan struct{})
	result := make(chan error, 1)

	require.NoError(t, q.Submit("r1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	}))
	<-started

	assert.True(t, q.Running("r1"))
	assert.ErrorIs(t, q.Submit("r1", func(context.Context) error { return nil }), ErrDuplicate)
	assert.True(t, q.Cancel("r1"))

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled")
	}
	q.Stop(context.Background())
	assert.False(t, q.Running("r1"))
	assert.False(t, q.Cancel("r1"))
}

func TestQueue_Full(t *testing.T) {
	q := NewQueue(1, 1, utils.NewNopLogger(), Hooks{})
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, q.Submit("busy", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, q.Submit("queued", func(context.Context) error { return nil }))

	assert.ErrorIs(t, q.Submit("overflow", func(context.Context) error { return nil }), ErrQueueFull)

	close(release)
	q.Stop(context.Background())
}

func TestQueue_RecoversPanic(t *testing.T) {
	var finishedErr error
	q := NewQueue(1, 1, utils.NewNopLogger(), Hooks{
		Finished: func(_ string, err error, _ time.Duration) { finishedErr = err },
	})

	require.NoError(t, q.Submit("p", func(context.Context) error { panic("boom") }))
	q.Stop(context.Background())

	require.Error(t, finishedErr)
	assert.Contains(t, finishedErr.Error(), "boom")
}
