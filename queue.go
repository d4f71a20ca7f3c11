package nebula

// requestQueue is the FIFO of accepted-but-not-yet-written requests,
// spec.md §4.4. Without a configured bound it buffers up to 4096
// requests; once that many are waiting, enqueue blocks until the
// WritePump takes one or the queue closes. An optional bound turns
// enqueue-while-full into a synchronous Overloaded rejection instead,
// the spec's named local policy extension.
//
// Mirrors the teacher's muxch channel (client.go) plus its single-
// consumer doTx loop (go_tx.go): a channel is both the mutex and the
// wait/notify rendezvous, so enqueue never blocks on anything but the
// channel send itself.
type requestQueue struct {
	ch     chan *requestDescriptor
	closed chan struct{}
	bound  int
}

func newRequestQueue(bound int) *requestQueue {
	size := bound
	if size <= 0 {
		size = 4096 // default capacity; an enqueue beyond it blocks until space frees up.
	}
	return &requestQueue{
		ch:     make(chan *requestDescriptor, size),
		closed: make(chan struct{}),
		bound:  bound,
	}
}

// enqueue admits desc. It fails with Cancelled once the queue is closed,
// and — only when an optional bound was configured — with Overloaded
// once that bound is reached.
func (q *requestQueue) enqueue(desc *requestDescriptor) error {
	select {
	case <-q.closed:
		return Cancelled
	default:
	}
	if q.bound > 0 {
		select {
		case q.ch <- desc:
			return nil
		default:
			return Overloaded
		}
	}
	select {
	case q.ch <- desc:
		return nil
	case <-q.closed:
		return Cancelled
	}
}

// dequeue blocks for the next request, or returns ok=false once the
// queue has been closed. A connection close means the socket is going
// away too, so anything still buffered at that point is abandoned here
// rather than written into a dead connection; drainUnsent recovers it.
func (q *requestQueue) dequeue() (*requestDescriptor, bool) {
	select {
	case desc := <-q.ch:
		return desc, true
	case <-q.closed:
		return nil, false
	}
}

// drainUnsent empties whatever is left buffered in the channel after
// close, so the closing path can fail each one's sink with Cancelled
// instead of leaving it silently unresolved.
func (q *requestQueue) drainUnsent() []*requestDescriptor {
	var out []*requestDescriptor
	for {
		select {
		case desc := <-q.ch:
			out = append(out, desc)
		default:
			return out
		}
	}
}

// close wakes the single consumer and every future enqueue with
// Cancelled.
func (q *requestQueue) close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
