package nebula

import "sync/atomic"

// Sink is the push-style observer a caller supplies to Execute. Exactly
// one of Complete or Error is called, as the terminal call; Next may be
// called any number of times strictly before it. Next and Complete are
// called from the ReadPump thread; Error is called from the ReadPump, from
// the WritePump (EncoderError, or Cancelled when no stream id can be
// acquired), or from the closing path (Cancelled).
type Sink interface {
	Next(item interface{})
	Complete()
	Error(err error)
}

// terminalGuard enforces "at most one terminal, no Next after terminal"
// on top of any Sink implementation without runtime type introspection,
// per spec.md §9's design note.
type terminalGuard struct {
	Sink
	done int32
}

// guardSink wraps a caller's Sink so the pumps can call Next/Complete/
// Error freely; the guard absorbs any call arriving after the first
// terminal instead of the pump having to track this itself.
func guardSink(s Sink) *terminalGuard {
	return &terminalGuard{Sink: s}
}

func (g *terminalGuard) Next(item interface{}) {
	if atomic.LoadInt32(&g.done) != 0 {
		return
	}
	g.Sink.Next(item)
}

func (g *terminalGuard) Complete() {
	if !atomic.CompareAndSwapInt32(&g.done, 0, 1) {
		return
	}
	g.Sink.Complete()
}

func (g *terminalGuard) Error(err error) {
	if !atomic.CompareAndSwapInt32(&g.done, 0, 1) {
		return
	}
	g.Sink.Error(err)
}

// ChannelSink is a bounded MPSC-style adapter from the push-based Sink
// contract to a lazy, pull-based sequence, the shape spec.md §9 calls
// out as the idiomatic systems-language mapping for the source's
// callback observer. Items, a nil error and ok==false on the terminal
// channel signal completion or failure; Err() distinguishes the two.
type ChannelSink struct {
	items chan interface{}
	done  chan struct{}
	err   error
}

// NewChannelSink returns a ChannelSink buffering up to capacity pending
// items before Next blocks the ReadPump. The stream id is released before
// decoding (spec.md §4.6), so the WritePump can reuse it, but there is a
// single ReadPump: while Next is blocked on a full ChannelSink, no
// response for any other stream is read or delivered.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{
		items: make(chan interface{}, capacity),
		done:  make(chan struct{}),
	}
}

func (s *ChannelSink) Next(item interface{}) { s.items <- item }

func (s *ChannelSink) Complete() {
	close(s.items)
	close(s.done)
}

func (s *ChannelSink) Error(err error) {
	s.err = err
	close(s.items)
	close(s.done)
}

// Items returns the channel of streamed results; it closes on the
// terminal call, whether success or failure.
func (s *ChannelSink) Items() <-chan interface{} { return s.items }

// Err blocks until the terminal call and returns the error, or nil on
// Complete.
func (s *ChannelSink) Err() error {
	<-s.done
	return s.err
}
