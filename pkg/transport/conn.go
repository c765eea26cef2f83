package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Conn adapts a net.Conn. A positive read timeout arms a fresh deadline
// before every read so a silent gateway surfaces as an error.
type Conn struct {
	conn        net.Conn
	readTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func NewConn(conn net.Conn, readTimeout time.Duration) *Conn {
	return &Conn{
		conn:        conn,
		readTimeout: readTimeout,
		closed:      make(chan struct{}),
	}
}

func (c *Conn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, c.wrap(err)
		}
	}
	n, err := c.conn.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, c.wrap(err)
	}
	return n, err
}

func (c *Conn) ReadExact(p []byte) error {
	_, err := io.ReadFull(c, p)
	return err
}

func (c *Conn) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := c.conn.Write(p)
		if err != nil {
			return c.wrap(err)
		}
		p = p[n:]
	}
	return nil
}

// Close is idempotent and unblocks pending reads and writes.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) wrap(err error) error {
	select {
	case <-c.closed:
		return fmt.Errorf("%w: %w", ErrClosed, err)
	default:
		return err
	}
}
