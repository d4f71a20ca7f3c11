package nebula

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStreamIDPoolAcquireRelease(t *testing.T) {
	p := newStreamIDPool()
	seen := map[int8]bool{}
	for i := 0; i < MaxStreams; i++ {
		id, err := p.acquire(context.Background())
		require.NoError(t, err)
		require.False(t, seen[id], "id %d handed out twice while outstanding", id)
		seen[id] = true
	}
	require.Equal(t, MaxStreams, p.outstanding())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.acquire(ctx)
	require.Error(t, err, "pool exhausted, acquire must block then fail on ctx deadline")

	for id := range seen {
		p.release(id)
	}
	require.Equal(t, 0, p.outstanding())
}

func TestStreamIDPoolReleaseUnheldPanics(t *testing.T) {
	p := newStreamIDPool()
	id, err := p.acquire(context.Background())
	require.NoError(t, err)
	p.release(id)

	require.Panics(t, func() { p.release(id) })
}

func TestStreamIDPoolCancelWakesWaiter(t *testing.T) {
	p := newStreamIDPool()
	for i := 0; i < MaxStreams; i++ {
		_, err := p.acquire(context.Background())
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.acquire(ctx)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("acquire returned before cancellation")
	case <-time.After(10 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrStreamPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire never woke up")
	}
}
