package dbn

import (
	"errors"
	"fmt"
	"io"
)

type FrameOption func(*FrameReader)

// WithTsOut declares that every record is followed by a ts_out trailer.
func WithTsOut(tsOut bool) FrameOption {
	return func(f *FrameReader) {
		f.tsOut = tsOut
	}
}

// WithLenientSizes frames records by their length alone, accepting sizes
// that differ from the known layout of their tag and unknown tags.
func WithLenientSizes() FrameOption {
	return func(f *FrameReader) {
		f.lenient = true
	}
}

// FrameReader splits a byte stream into records. It never reads past the
// end of the record it returns.
type FrameReader struct {
	r       io.Reader
	buf     []byte
	tsOut   bool
	lenient bool
}

func NewFrameReader(r io.Reader, opts ...FrameOption) *FrameReader {
	f := &FrameReader{
		r:   r,
		buf: make([]byte, Mbp10MsgSize+TsOutSize),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NextRecord returns the next record. The view aliases an internal buffer
// and is only valid until the next call.
//
// io.EOF is returned when the stream ends on a record boundary and
// ErrTruncated when it ends inside a record. Any other framing error leaves
// the stream unusable.
func (f *FrameReader) NextRecord() (Record, error) {
	if _, err := io.ReadFull(f.r, f.buf[:HeaderSize]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, readErr(err)
	}

	size := int(f.buf[0]) * LengthMultiplier
	rtype := RType(f.buf[1])
	if size < HeaderSize {
		return Record{}, fmt.Errorf("%w: record length %d is shorter than its header", ErrFraming, size)
	}
	if !f.lenient {
		want, ok := rtype.Size()
		if !ok {
			return Record{}, fmt.Errorf("%w: unknown %s", ErrFraming, rtype)
		}
		if f.tsOut {
			want += TsOutSize
		}
		if size != want {
			return Record{}, fmt.Errorf("%w: %s record of %d bytes, expected %d", ErrFraming, rtype, size, want)
		}
	}

	if size > len(f.buf) {
		grown := make([]byte, size)
		copy(grown, f.buf[:HeaderSize])
		f.buf = grown
	}
	if _, err := io.ReadFull(f.r, f.buf[HeaderSize:size]); err != nil {
		return Record{}, readErr(err)
	}
	return Record{buf: f.buf[:size]}, nil
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
