package compress

import "github.com/golang/snappy"

// snappyCompressor is the default compressor CQL native-protocol clients
// advertise.
type snappyCompressor struct{}

func (snappyCompressor) Name() string { return "snappy" }

func (snappyCompressor) Compress(in []byte) ([]byte, error) {
	return snappy.Encode(nil, in), nil
}

func (snappyCompressor) Decompress(in []byte) ([]byte, error) {
	return snappy.Decode(nil, in)
}
