package dbn

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming reports a record header inconsistent with the stream.
	// The stream cannot be resynchronized after it.
	ErrFraming = errors.New("dbn: framing error")
	// ErrTruncated reports input that ended inside a record or metadata block.
	ErrTruncated = fmt.Errorf("%w: truncated input", ErrFraming)

	ErrUnsupportedSchema = errors.New("dbn: unsupported schema")
	ErrRTypeMismatch     = errors.New("dbn: record type mismatch")
	ErrInvalidMetadata   = errors.New("dbn: invalid metadata")
)
