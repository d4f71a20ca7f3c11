package nebula

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

var errNoCompressor = errors.New("nebula: compressed frame with no compressor configured")

// errNotResponseFrame is raised by ReadPump when a frame's version byte
// lacks the direction bit a response or server-initiated event must
// carry, the same desync ReadPump treats any other framing violation as.
var errNotResponseFrame = errors.New("nebula: frame missing response direction bit")

func errFrameTooBig(length uint32) error {
	return fmt.Errorf("nebula: frame length %d exceeds maximum %d", length, MaxFrameBody)
}

// readShortString reads a [short] length-prefixed UTF-8 string, the
// encoding the native protocol uses for the error message body and for
// keys in STARTUP/SUPPORTED option maps.
func readShortString(b []byte) (string, int) {
	if len(b) < 2 {
		return "", 0
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	if len(b) < 2+n {
		return string(b[2:]), 2 + len(b[2:])
	}
	return string(b[2 : 2+n]), 2 + n
}

// writeShortString appends a [short] length-prefixed string.
func writeShortString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)>>8), byte(len(s)))
	return append(buf, s...)
}

// writeStringMap appends a [short] count followed by count
// [short string][short string] pairs, the STARTUP frame body shape.
func writeStringMap(buf []byte, m map[string]string) []byte {
	buf = append(buf, byte(len(m)>>8), byte(len(m)))
	for k, v := range m {
		buf = writeShortString(buf, k)
		buf = writeShortString(buf, v)
	}
	return buf
}

// readStringMultimap reads the [short][string][short][string...]... body
// shape of a SUPPORTED frame: a count, then each key followed by a
// [short] count of value strings.
func readStringMultimap(b []byte) map[string][]string {
	out := map[string][]string{}
	if len(b) < 2 {
		return out
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	pos := 2
	for i := 0; i < n && pos < len(b); i++ {
		key, adv := readShortString(b[pos:])
		pos += adv
		if pos+2 > len(b) {
			break
		}
		vn := int(binary.BigEndian.Uint16(b[pos : pos+2]))
		pos += 2
		vals := make([]string, 0, vn)
		for j := 0; j < vn && pos < len(b); j++ {
			v, vadv := readShortString(b[pos:])
			pos += vadv
			vals = append(vals, v)
		}
		out[key] = vals
	}
	return out
}

// containsOption reports whether name appears among the values a
// SUPPORTED multimap entry advertises, the membership check the handshake
// runs to validate configured options against what the server offers.
func containsOption(offered []string, name string) bool {
	for _, v := range offered {
		if v == name {
			return true
		}
	}
	return false
}
