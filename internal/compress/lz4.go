package compress

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Compressor is the alternate compressor a SUPPORTED response may
// offer. Frames carry the uncompressed length as a 4-byte big-endian
// prefix, the shape the native protocol uses so the reader can size its
// output buffer before inflating.
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }

func (lz4Compressor) Compress(in []byte) ([]byte, error) {
	out := make([]byte, lz4.CompressBlockBound(len(in)))
	var c lz4.Compressor
	n, err := c.CompressBlock(in, out)
	if err != nil {
		return nil, err
	}
	prefixed := make([]byte, 4+n)
	prefixed[0] = byte(len(in) >> 24)
	prefixed[1] = byte(len(in) >> 16)
	prefixed[2] = byte(len(in) >> 8)
	prefixed[3] = byte(len(in))
	copy(prefixed[4:], out[:n])
	return prefixed, nil
}

func (lz4Compressor) Decompress(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, io.ErrUnexpectedEOF
	}
	uncompressedLen := int(in[0])<<24 | int(in[1])<<16 | int(in[2])<<8 | int(in[3])
	out := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(in[4:], out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
