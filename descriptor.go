package nebula

import "github.com/google/uuid"

// Writer is the caller-supplied capability that serializes a request
// body into a frame and declares the frame's opcode. It must not block
// on anything but CPU-bound encoding work; any error it returns (or
// panics with) becomes an EncoderError delivered only to this request's
// sink, and the stream id this request would have used is never
// consumed.
type Writer func(w FrameWriter) (opcode Opcode, err error)

// FrameWriter is the subset of frameWriter a Writer capability needs:
// an io.Writer for the body plus nothing else, so callers cannot reach
// into header fields the core owns.
type FrameWriter interface {
	Write(p []byte) (int, error)
}

// Reader is the caller-supplied capability that turns a decoded response
// body into a lazy finite sequence of items, pushed to items as they are
// produced. It must not block on anything but CPU-bound decoding; any
// error it returns (or panics with) becomes a DecoderError delivered only
// to this request's sink, without affecting the connection.
type Reader func(r FrameReader, items func(interface{})) error

// FrameReader is the subset of frameReader a Reader capability needs.
type FrameReader interface {
	Read(p []byte) (int, error)
}

// Token is the opaque instrumentation token identifying a caller's
// request for trace events, spec.md's Data Model. Generated with
// google/uuid, the same library that decodes a response's trace_id off
// a tracing-flagged frame.
type Token uuid.UUID

// NewToken generates a fresh instrumentation token.
func NewToken() Token { return Token(uuid.New()) }

func (t Token) String() string { return uuid.UUID(t).String() }

// requestDescriptor is the immutable record pinned in a PendingTable slot
// while a request is in flight, spec.md §3.
type requestDescriptor struct {
	writer  Writer
	reader  Reader
	token   Token
	sink    *terminalGuard
	tracing bool
}
