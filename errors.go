package nebula

import (
	"fmt"

	"github.com/pkg/errors"
)

// Cancelled is returned to a caller whose request was abandoned, either
// because the connection closed before the request completed or because
// admission was refused after close.
var Cancelled = errors.New("nebula: cancelled")

// InvalidCredentials is raised from Open when the server's handshake
// demands authentication and the Config carries no user/password.
var InvalidCredentials = errors.New("nebula: authentication required but no credentials configured")

// Overloaded is the optional rejection a bounded RequestQueue returns
// from Execute once its local admission bound is reached. A queue with no
// configured bound (the default) never raises it.
var Overloaded = errors.New("nebula: request queue overloaded")

// ErrStreamPoolClosed is returned by streamIDPool.acquire once the pool
// has been closed by a connection failure or explicit Close.
var ErrStreamPoolClosed = errors.New("nebula: stream id pool closed")

// ErrUnsupportedOption is returned from Open when the server's SUPPORTED
// response, negotiated via OPTIONS during the handshake, does not
// advertise the cql_version or compression name this Connection was
// configured with.
var ErrUnsupportedOption = errors.New("nebula: server does not support configured option")

// ProtocolError reports a response frame that parsed as the protocol's
// error opcode. The connection stays Ready; only the offending request's
// sink observes it.
type ProtocolError struct {
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("nebula: protocol error 0x%04x: %s", e.Code, e.Message)
}

// DecoderError wraps a panic or returned error from a caller-supplied
// reader capability decoding an otherwise well-formed response body.
type DecoderError struct {
	cause error
}

func (e *DecoderError) Error() string { return "nebula: decoder error: " + e.cause.Error() }
func (e *DecoderError) Unwrap() error { return e.cause }

func newDecoderError(cause error) *DecoderError {
	return &DecoderError{cause: cause}
}

// EncoderError wraps a panic or returned error from a caller-supplied
// writer capability, raised before anything reaches the socket — the
// stream id it would have used is never consumed.
type EncoderError struct {
	cause error
}

func (e *EncoderError) Error() string { return "nebula: encoder error: " + e.cause.Error() }
func (e *EncoderError) Unwrap() error { return e.cause }

func newEncoderError(cause error) *EncoderError {
	return &EncoderError{cause: cause}
}

// IoError reports a socket fault or framing desynchronization observed
// by either pump. It is always connection-wide: the connection closes,
// every outstanding sink observes Cancelled, and the supervisor's
// on-failure listener fires exactly once.
type IoError struct {
	cause error
}

func (e *IoError) Error() string { return "nebula: io error: " + e.cause.Error() }
func (e *IoError) Unwrap() error { return e.cause }

func newIoError(cause error) *IoError {
	return &IoError{cause: errors.WithStack(cause)}
}

func recoverAsError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
