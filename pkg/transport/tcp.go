package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

const defaultDialTimeout = 5 * time.Second

// TCPDialer connects to a gateway over TCP, optionally wrapped in TLS.
type TCPDialer struct {
	Address     string
	TLS         *tls.Config
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Logger      *zap.Logger
}

func (d *TCPDialer) Dial(ctx context.Context) (Transport, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("unable to dial %s: %w", d.Address, err)
	}

	if d.TLS == nil {
		logger.Debug("connected", zap.String("address", d.Address))
		return NewConn(tcpConn, d.ReadTimeout), nil
	}

	cfg := d.TLS.Clone()
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(d.Address)
		if err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("unable to parse address %s: %w", d.Address, err)
		}
		cfg.ServerName = host
	}
	tlsConn := tls.Client(tcpConn, cfg)

	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		_ = tcpConn.Close()
		return nil, fmt.Errorf("tls handshake with %s failed: %w", d.Address, err)
	}

	logger.Debug("connected",
		zap.String("address", d.Address),
		zap.Bool("tls", true))
	return NewConn(tlsConn, d.ReadTimeout), nil
}
