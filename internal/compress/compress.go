// Package compress holds the frame-body compressors a connection may
// negotiate during its handshake, keyed by the name the native protocol
// exchanges in the STARTUP/SUPPORTED options.
package compress

// Compressor compresses and decompresses a single frame body.
type Compressor interface {
	Name() string
	Compress(in []byte) ([]byte, error)
	Decompress(in []byte) ([]byte, error)
}

// registry is the set of names a handshake may negotiate, generalizing
// the teacher's tag-factory lookup-by-name pattern (tag_gzip.go,
// tag_lzw.go) from per-tag wire encoders to per-connection compressors.
var registry = map[string]Compressor{
	"snappy": snappyCompressor{},
	"lz4":    lz4Compressor{},
	"gzip":   gzipCompressor{},
}

// Lookup returns the registered Compressor for a negotiated name, or nil
// if the name is unknown.
func Lookup(name string) Compressor {
	return registry[name]
}

// Names returns every compressor name this build supports, in the order
// a handshake should offer them.
func Names() []string {
	return []string{"snappy", "lz4", "gzip"}
}
