package marshal

import (
	"bytes"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrInteriorNUL is returned when a string cannot be represented as a C
// string because it contains a NUL byte.
var ErrInteriorNUL = errors.New("string contains NUL byte")

// CString returns s as a NUL-terminated byte slice owned by Go.
func CString(s string) ([]byte, error) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return nil, errors.Wrapf(ErrInteriorNUL, "at offset %d of %q", i, s)
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, nil
}

// GoString copies the NUL-terminated C string at p into Go memory. Invalid
// UTF-8 is replaced with U+FFFD rather than rejected. A nil p yields "".
func GoString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	// string() copies, so the result never aliases native memory.
	s := string(unsafe.Slice(p, n))
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// cStringLen reports the length of a Go-owned C string, excluding the
// terminator. It returns -1 when b is not NUL-terminated.
func cStringLen(b []byte) int {
	return bytes.IndexByte(b, 0)
}
