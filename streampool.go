package nebula

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// MaxStreams is the number of distinct non-negative stream ids the
// protocol's signed 8-bit stream field makes usable, spec.md §3.
const MaxStreams = 128

// streamIDPool is a bounded pool over {0,...,MaxStreams-1}. acquire
// blocks until an id is free or its context is cancelled; release
// returns one. Fairness and ordering between waiters are not
// guaranteed, matching spec.md §4.2's "stack or FIFO, tie-break
// irrelevant".
//
// The bound is enforced by a semaphore.Weighted of capacity MaxStreams
// (grafana-loki's go.mod pulls in golang.org/x/sync, and spec.md §4.2's
// "blocks until non-empty or closed, cancellation signal on close" is
// precisely Acquire(ctx, 1) against a context the connection cancels
// exactly once on close — see connection.go's use of errgroup). The free
// ids themselves live in a small mutex-guarded stack: semaphore.Weighted
// only counts capacity, it does not hand back *which* slot was freed.
type streamIDPool struct {
	sem *semaphore.Weighted

	mu   sync.Mutex
	free []int8
}

func newStreamIDPool() *streamIDPool {
	p := &streamIDPool{
		sem:  semaphore.NewWeighted(MaxStreams),
		free: make([]int8, MaxStreams),
	}
	for i := 0; i < MaxStreams; i++ {
		p.free[i] = int8(MaxStreams - 1 - i)
	}
	return p
}

// acquire removes and returns an id, blocking until one is available or
// ctx is cancelled. The caller (WritePump) passes the connection's
// lifetime context, so a close cancels every blocked acquire at once.
func (p *streamIDPool) acquire(ctx context.Context) (int8, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return 0, ErrStreamPoolClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	id := p.free[n-1]
	p.free = p.free[:n-1]
	return id, nil
}

// release returns an id to the pool. Releasing an id never held is a
// programming error and panics, per spec.md §3's invariant.
func (p *streamIDPool) release(id int8) {
	p.mu.Lock()
	for _, f := range p.free {
		if f == id {
			p.mu.Unlock()
			panic("nebula: release of stream id not held")
		}
	}
	p.free = append(p.free, id)
	p.mu.Unlock()
	p.sem.Release(1)
}

// outstanding returns the number of ids currently checked out, for the
// id-conservation property (spec.md §8.1).
func (p *streamIDPool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return MaxStreams - len(p.free)
}
