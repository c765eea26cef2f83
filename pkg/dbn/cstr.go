package dbn

import (
	"bytes"
	"fmt"
)

// CString returns the text of a NUL-padded fixed-width field.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// PutCString stores s into dst, NUL padding the remainder. One byte is
// always kept for the terminator.
func PutCString(dst []byte, s string) error {
	if len(s) >= len(dst) {
		return fmt.Errorf("%q does not fit a %d byte field", s, len(dst))
	}
	n := copy(dst, s)
	clear(dst[n:])
	return nil
}
