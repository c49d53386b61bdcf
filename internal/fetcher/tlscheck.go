package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"
)

const tlsPort = "443"

// TLSReport carries the outcome of a certificate check. Expiry is only set
// after a fully verified handshake.
type TLSReport struct {
	Valid  bool
	Expiry *time.Time
}

// TLSChecker validates the certificate a host serves on port 443. Failures
// of any kind (DNS, dial, handshake, verification) yield an invalid report,
// never an error, so a missing or broken certificate cannot fail a page run.
type TLSChecker struct {
	timeout time.Duration
	rootCAs *x509.CertPool
	port    string
}

// NewTLSChecker builds a checker with the given per-check timeout.
func NewTLSChecker(timeout time.Duration) *TLSChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TLSChecker{timeout: timeout}
}

// Check dials host:443 and reports certificate validity and expiry.
func (c *TLSChecker) Check(ctx context.Context, host string) TLSReport {
	if host == "" {
		return TLSReport{}
	}
	port := c.port
	if port == "" {
		port = tlsPort
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.timeout},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    c.rootCAs,
		},
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return TLSReport{}
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return TLSReport{}
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return TLSReport{}
	}

	expiry := certs[0].NotAfter
	return TLSReport{Valid: true, Expiry: &expiry}
}
