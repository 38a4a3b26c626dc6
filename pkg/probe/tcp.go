package probe

import (
	"context"
	"net"
	"time"
)

// TCPProber dials host:port. Hosts without a port use DefaultPort.
type TCPProber struct {
	DefaultPort string
}

func (p *TCPProber) Probe(ctx context.Context, host string, timeout time.Duration) bool {
	port := p.DefaultPort
	if port == "" {
		port = "80"
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, port)
	}

	d := net.Dialer{Timeout: timeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.WithError(err).WithField("addr", addr).Debug("TCP probe failed")

		return false
	}

	_ = conn.Close()

	return true
}
