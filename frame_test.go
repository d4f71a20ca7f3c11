package nebula

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameWriterFinishBackfillsLength(t *testing.T) {
	fw := newFrameWriter(protocolVersion, 7, OpQuery, false, true)
	_, err := fw.Write([]byte("select 1"))
	require.NoError(t, err)

	out, err := fw.finish()
	require.NoError(t, err)
	require.Len(t, out, HeaderSize+len("select 1"))
	require.Equal(t, protocolVersion|versionDirectionBit, out[0])
	require.Equal(t, int8(7), int8(out[2]))
	require.Equal(t, byte(OpQuery), out[3])

	fr, err := readFrameHeader(bytes.NewReader(out), nil)
	require.NoError(t, err)
	require.Equal(t, int8(7), fr.Header.Stream)
	require.Equal(t, OpQuery, fr.Header.Opcode)
	require.True(t, fr.Header.IsResponse())
	require.Equal(t, protocolVersion, fr.Header.ProtocolVersion())

	body, err := readAll(fr)
	require.NoError(t, err)
	require.Equal(t, "select 1", string(body))
}

func TestFrameRoundTripWithCompression(t *testing.T) {
	comp := LookupCompressor("snappy")
	require.NotNil(t, comp)

	fw := newFrameWriter(protocolVersion, 1, OpQuery, false, true)
	fw.SetCompressor(comp)
	payload := bytes.Repeat([]byte("abcdefgh"), 64)
	_, err := fw.Write(payload)
	require.NoError(t, err)

	out, err := fw.finish()
	require.NoError(t, err)
	require.NotZero(t, out[1]&byte(FlagCompress))

	fr, err := readFrameHeader(bytes.NewReader(out), comp)
	require.NoError(t, err)
	body, err := readAll(fr)
	require.NoError(t, err)
	require.Equal(t, payload, body)
}

func TestFrameCompressedWithoutCompressorIsIoError(t *testing.T) {
	comp := LookupCompressor("lz4")
	fw := newFrameWriter(protocolVersion, 1, OpQuery, false, true)
	fw.SetCompressor(comp)
	_, _ = fw.Write([]byte("hello"))
	out, err := fw.finish()
	require.NoError(t, err)

	_, err = readFrameHeader(bytes.NewReader(out), nil)
	require.Error(t, err)
	var ioErr *IoError
	require.ErrorAs(t, err, &ioErr)
}

func TestFrameTracingPrefixParsed(t *testing.T) {
	fw := newFrameWriter(protocolVersion, 2, OpResult, true, true)
	traceID := make([]byte, 16)
	for i := range traceID {
		traceID[i] = byte(i)
	}
	_, _ = fw.Write(traceID)
	_, _ = fw.Write([]byte("rest"))
	out, err := fw.finish()
	require.NoError(t, err)
	require.NotZero(t, out[1]&byte(FlagTracing))

	fr, err := readFrameHeader(bytes.NewReader(out), nil)
	require.NoError(t, err)
	tid, ok := fr.Trace()
	require.True(t, ok)
	require.Equal(t, traceID, tid[:])

	body, err := readAll(fr)
	require.NoError(t, err)
	require.Equal(t, "rest", string(body))
}

func TestFrameErrorOpcodeParses(t *testing.T) {
	fw := newFrameWriter(protocolVersion, 3, OpError, false, true)
	code := []byte{0x00, 0x00, 0x13, 0x37}
	_, _ = fw.Write(code)
	_, _ = fw.Write(writeShortString(nil, "bad query"))
	out, err := fw.finish()
	require.NoError(t, err)

	fr, err := readFrameHeader(bytes.NewReader(out), nil)
	require.NoError(t, err)
	protoErr, isErr := fr.isErrorFrame()
	require.True(t, isErr)
	require.Equal(t, uint32(0x1337), protoErr.Code)
	require.Equal(t, "bad query", protoErr.Message)
}

func TestFrameOversizedLengthRejected(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	hdr[0] = protocolVersion
	hdr[3] = byte(OpQuery)
	hdr[4], hdr[5], hdr[6], hdr[7] = 0xFF, 0xFF, 0xFF, 0xFF
	_, err := readFrameHeader(bytes.NewReader(hdr), nil)
	require.Error(t, err)
}

func readAll(fr *frameReader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 16)
	for {
		n, err := fr.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			return out, nil
		}
	}
}
