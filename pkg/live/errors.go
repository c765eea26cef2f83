package live

import (
	"errors"
	"fmt"
)

var (
	ErrTransport          = errors.New("live: transport error")
	ErrAuthentication     = errors.New("live: authentication failed")
	ErrUsage              = errors.New("live: usage error")
	ErrReconnectExhausted = errors.New("live: reconnect attempts exhausted")

	errReconnectRequested = errors.New("live: reconnect requested")
)

// CallbackError wraps an error returned by, or a panic raised in, a user
// callback.
type CallbackError struct {
	Callback string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("live: %s callback: %v", e.Callback, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// PanicError carries the value recovered from a panicking callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
