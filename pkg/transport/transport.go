package transport

import (
	"context"
	"errors"
	"io"
)

var ErrClosed = errors.New("transport: closed")

// Transport is a connected, order preserving byte stream to a gateway.
type Transport interface {
	io.Reader
	// ReadExact fills p or fails. A stream that ends early yields
	// io.ErrUnexpectedEOF, or io.EOF when nothing was read.
	ReadExact(p []byte) error
	// WriteAll writes every byte of p or fails.
	WriteAll(p []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}
