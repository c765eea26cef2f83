package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_ReadExactAndWriteAll(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(client, 0)
	defer conn.Close()

	go func() {
		// Split one logical message over several writes.
		_, _ = server.Write([]byte("lsg_"))
		_, _ = server.Write([]byte("version=0.1\n"))
		_ = server.Close()
	}()

	buf := make([]byte, len("lsg_version=0.1\n"))
	require.NoError(t, conn.ReadExact(buf))
	assert.Equal(t, "lsg_version=0.1\n", string(buf))

	err := conn.ReadExact(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_ReadExactTruncated(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(client, 0)
	defer conn.Close()

	go func() {
		_, _ = server.Write([]byte("abc"))
		_ = server.Close()
	}()

	err := conn.ReadExact(make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConn_ReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewConn(client, 20*time.Millisecond)
	defer conn.Close()

	_, err := conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestConn_CloseUnblocksRead(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewConn(client, 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Read(make([]byte, 1))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("read was not unblocked by Close")
	}
}

func TestConn_WriteAll(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(client, 0)
	defer conn.Close()

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 14)
		_, _ = io.ReadFull(server, buf)
		got <- string(buf)
	}()

	require.NoError(t, conn.WriteAll([]byte("start_session\n")))
	assert.Equal(t, "start_session\n", <-got)

	_ = server.Close()
	assert.Error(t, conn.WriteAll([]byte("x")))
}

func TestTCPDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	d := &TCPDialer{Address: ln.Addr().String(), ReadTimeout: time.Second}
	tr, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.WriteAll([]byte("ping")))
	buf := make([]byte, 4)
	require.NoError(t, tr.ReadExact(buf))
	assert.Equal(t, "ping", string(buf))
}

func TestTCPDialer_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = (&TCPDialer{Address: addr, DialTimeout: time.Second}).Dial(context.Background())
	assert.Error(t, err)
}

func TestDialerFunc(t *testing.T) {
	boom := errors.New("boom")
	var d Dialer = DialerFunc(func(context.Context) (Transport, error) { return nil, boom })
	_, err := d.Dial(context.Background())
	assert.ErrorIs(t, err, boom)
}
