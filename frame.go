package nebula

import (
	"encoding/binary"
	"io"

	"github.com/google/uuid"

	"github.com/nebula-db/nebula-go/internal/compress"
)

// Compressor is the frame-body compressor interface a connection
// negotiates during its handshake. See internal/compress for the
// concrete snappy/lz4/gzip implementations.
type Compressor = compress.Compressor

// LookupCompressor resolves a negotiated compression name to its
// implementation, or nil if name is empty or unrecognized.
func LookupCompressor(name string) Compressor { return compress.Lookup(name) }

// CompressorNames lists every compression name this build can offer
// during a handshake.
func CompressorNames() []string { return compress.Names() }

// HeaderSize is the fixed size, in bytes, of a frame header: version,
// flags, stream id, opcode and a 32-bit big-endian length prefix.
const HeaderSize = 8

// MaxFrameBody bounds how large a single response body this core will
// read into memory before handing it to the caller's reader capability.
// It exists to turn a corrupt length prefix into an IoError instead of an
// unbounded allocation.
const MaxFrameBody = 256 * 1024 * 1024

// Flag bits carried in a frame header, matching the native protocol this
// core speaks.
const (
	FlagCompress Flag = 0x01
	FlagTracing  Flag = 0x02
)

// Flag is the one-byte bitmask in a frame header.
type Flag byte

func (f Flag) has(bit Flag) bool { return f&bit == bit }

// FrameHeader is the fixed wire header preceding every frame body. Stream
// is signed so the protocol's negative, server-initiated-event range
// (spec.md §6) is representable alongside the 128 usable request ids.
type FrameHeader struct {
	Version byte
	Flags   Flag
	Stream  int8
	Opcode  Opcode
	Length  uint32
}

// versionDirectionBit is the high bit of the version byte, matching the
// real native protocol's request/response framing (internal.ProtoVersion
// in gocql's frame.go): clear on a frame this core writes as a request,
// set on every frame it reads, since this core only ever reads responses
// and server-initiated events.
const versionDirectionBit byte = 0x80

// ProtocolVersion returns the negotiated protocol version with the
// direction bit masked off.
func (h FrameHeader) ProtocolVersion() byte { return h.Version &^ versionDirectionBit }

// IsResponse reports whether the version byte's high bit marks this frame
// as a response (or server-initiated event) rather than a request.
func (h FrameHeader) IsResponse() bool { return h.Version&versionDirectionBit != 0 }

// frameWriter buffers a request body in memory so the final length
// prefix can be back-filled before a single contiguous write reaches the
// socket. Partial writes observed by the peer would desynchronize
// framing permanently, so finish() is the only way bytes leave a writer.
type frameWriter struct {
	buf      []byte
	compress Compressor
}

// newFrameWriter starts a frame. response marks the version byte's
// direction bit: WritePump always passes false (this core only ever
// writes requests); a test peer standing in for the server passes true
// to build a well-formed response or event frame.
func newFrameWriter(version byte, stream int8, opcode Opcode, tracing, response bool) *frameWriter {
	w := &frameWriter{buf: make([]byte, HeaderSize, HeaderSize+256)}
	flags := Flag(0)
	if tracing {
		flags |= FlagTracing
	}
	if response {
		version |= versionDirectionBit
	}
	w.buf[0] = version
	w.buf[1] = byte(flags)
	w.buf[2] = byte(stream)
	w.buf[3] = byte(opcode)
	// length bytes [4:8] are patched in finish().
	return w
}

// SetCompressor enables body compression for this single frame; the
// compressor must match the one negotiated during the handshake.
func (w *frameWriter) SetCompressor(c Compressor) { w.compress = c }

// Write appends request body bytes, satisfying io.Writer so writer
// capabilities can use any of the standard encoding helpers.
func (w *frameWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// finish compresses the body if requested and back-fills the length
// prefix, returning the contiguous header+body buffer ready for a single
// socket write.
func (w *frameWriter) finish() ([]byte, error) {
	body := w.buf[HeaderSize:]
	if w.compress != nil && len(body) > 0 {
		compressed, err := w.compress.Compress(body)
		if err != nil {
			return nil, err
		}
		w.buf = append(w.buf[:HeaderSize], compressed...)
		w.buf[1] |= byte(FlagCompress)
		body = w.buf[HeaderSize:]
	}
	binary.BigEndian.PutUint32(w.buf[4:8], uint32(len(body)))
	return w.buf, nil
}

// frameReader reads and parses a response header synchronously, then
// exposes the declared body as a bounded reader. Any bytes the caller's
// decoder leaves unconsumed are discarded by drain() so the socket stays
// aligned on the next frame boundary.
type frameReader struct {
	Header FrameHeader
	TraceID uuid.UUID
	hasTrace bool

	body       io.Reader
	remaining  uint32
	underlying io.Reader
	compress   Compressor
	decoded    []byte // fully materialized (possibly decompressed) body
	pos        int
}

// readFrameHeader parses the fixed header and, when the tracing flag is
// set, the trailing trace-id UUID that immediately precedes the opaque
// body on a response frame.
func readFrameHeader(r io.Reader, compress Compressor) (*frameReader, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	fr := &frameReader{underlying: r, compress: compress}
	fr.Header = FrameHeader{
		Version: hdr[0],
		Flags:   Flag(hdr[1]),
		Stream:  int8(hdr[2]),
		Opcode:  Opcode(hdr[3]),
		Length:  binary.BigEndian.Uint32(hdr[4:8]),
	}
	if fr.Header.Length > MaxFrameBody {
		return nil, newIoError(errFrameTooBig(fr.Header.Length))
	}

	body := make([]byte, fr.Header.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	if fr.Header.Flags.has(FlagCompress) {
		if compress == nil {
			return nil, newIoError(errNoCompressor)
		}
		decompressed, err := compress.Decompress(body)
		if err != nil {
			return nil, newIoError(err)
		}
		body = decompressed
	}

	if fr.Header.Flags.has(FlagTracing) && len(body) >= 16 {
		copy(fr.TraceID[:], body[:16])
		fr.hasTrace = true
		body = body[16:]
	}

	fr.decoded = body
	return fr, nil
}

// Trace returns the trace id and whether the frame carried one, the
// value, ok idiom for callers who want to distinguish "no trace" from
// the zero UUID.
func (fr *frameReader) Trace() (uuid.UUID, bool) { return fr.TraceID, fr.hasTrace }

// Read implements io.Reader over the remaining, already-materialized
// body bytes.
func (fr *frameReader) Read(p []byte) (int, error) {
	if fr.pos >= len(fr.decoded) {
		return 0, io.EOF
	}
	n := copy(p, fr.decoded[fr.pos:])
	fr.pos += n
	return n, nil
}

// drain discards any bytes the caller's decoder left unconsumed. Because
// the whole body is already materialized in memory (unlike a streaming
// socket reader), this is just forgetting the remainder — there is
// nothing left on the wire to desynchronize.
func (fr *frameReader) drain() {
	fr.pos = len(fr.decoded)
}

// isErrorFrame reports whether this frame is a protocol-level ERROR
// response, and if so parses its body into a ProtocolError without
// disturbing the caller-visible Read cursor.
func (fr *frameReader) isErrorFrame() (*ProtocolError, bool) {
	if fr.Header.Opcode != OpError {
		return nil, false
	}
	if len(fr.decoded) < 4 {
		return &ProtocolError{Code: 0, Message: "malformed error frame"}, true
	}
	code := binary.BigEndian.Uint32(fr.decoded[0:4])
	msg, _ := readShortString(fr.decoded[4:])
	return &ProtocolError{Code: code, Message: msg}, true
}
