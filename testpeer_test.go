package nebula

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testPeer is a minimal scripted server standing in for the datastore
// endpoint: it accepts exactly one connection and lets a test drive the
// wire protocol frame by frame, the same role gofast's test harness gives
// a loopback listener in transport_test.go.
type testPeer struct {
	ln   net.Listener
	conn net.Conn
}

func newTestPeer(t *testing.T) *testPeer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &testPeer{ln: ln}
}

func (p *testPeer) addr() string { return p.ln.Addr().String() }

func (p *testPeer) accept(t *testing.T) {
	conn, err := p.ln.Accept()
	require.NoError(t, err)
	p.conn = conn
}

func (p *testPeer) readFrame(t *testing.T) *frameReader {
	fr, err := readFrameHeader(p.conn, nil)
	require.NoError(t, err)
	return fr
}

func (p *testPeer) writeFrame(t *testing.T, stream int8, opcode Opcode, body []byte) {
	fw := newFrameWriter(protocolVersion, stream, opcode, false, true)
	_, err := fw.Write(body)
	require.NoError(t, err)
	out, err := fw.finish()
	require.NoError(t, err)
	p.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err = p.conn.Write(out)
	require.NoError(t, err)
}

// negotiateOptions reads the OPTIONS frame every handshake opens with and
// answers it with a SUPPORTED body advertising this core's own default
// cql_version and every compressor it ships, so a test's subsequent
// STARTUP exchange runs exactly as it did before OPTIONS/SUPPORTED
// existed.
func (p *testPeer) negotiateOptions(t *testing.T) {
	opts := p.readFrame(t)
	require.Equal(t, OpOptions, opts.Header.Opcode)
	body := writeStringMultimap(nil, map[string][]string{
		"CQL_VERSION": {"3.0.0"},
		"COMPRESSION": append([]string{}, CompressorNames()...),
	})
	p.writeFrame(t, opts.Header.Stream, OpSupported, body)
}

// writeStringMultimap is the server-side encoder for a SUPPORTED body: the
// inverse of wire.go's readStringMultimap, which only this test harness
// needs, since the core itself never sends a multimap.
func writeStringMultimap(buf []byte, m map[string][]string) []byte {
	buf = append(buf, byte(len(m)>>8), byte(len(m)))
	for k, vals := range m {
		buf = writeShortString(buf, k)
		buf = append(buf, byte(len(vals)>>8), byte(len(vals)))
		for _, v := range vals {
			buf = writeShortString(buf, v)
		}
	}
	return buf
}

// serveRequests reads n request frames one at a time, in the order they
// arrive on the wire, and answers each with whatever respond computes
// from its stream id and decoded body. Run from its own goroutine, it is
// what lets a test drive many concurrently in-flight requests: each reply
// frees the stream id WritePump is blocked acquiring for the next one, so
// the peer and the Connection make progress together instead of the
// test's single TCP connection deadlocking.
func (p *testPeer) serveRequests(n int, respond func(stream int8, body []byte) (Opcode, []byte)) error {
	for i := 0; i < n; i++ {
		fr, err := readFrameHeader(p.conn, nil)
		if err != nil {
			return err
		}
		body := make([]byte, len(fr.decoded))
		copy(body, fr.decoded)

		opcode, reply := respond(fr.Header.Stream, body)
		fw := newFrameWriter(protocolVersion, fr.Header.Stream, opcode, false, true)
		if _, err := fw.Write(reply); err != nil {
			return err
		}
		out, err := fw.finish()
		if err != nil {
			return err
		}
		p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := p.conn.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func (p *testPeer) close() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.ln.Close()
}
