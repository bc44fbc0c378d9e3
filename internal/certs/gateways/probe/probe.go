package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	errAddressRequired = "address is required"
	errDialFailed      = "dial %s: %w"
	errHandshakeFailed = "handshake with %s: %w"
)

// ErrNoPeerCertificates is returned when the peer completed the handshake
// without presenting a certificate.
var ErrNoPeerCertificates = errors.New("probe: peer presented no certificates")

// DialFunc establishes the raw connection the TLS handshake runs over.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures a Prober.
type Options struct {
	Timeout time.Duration
	// options to inject for testing purposes
	Dial DialFunc
}

// Prober fetches the certificate chain a TLS server presents. The handshake
// does not verify the chain; callers run it through the verifier.
type Prober struct {
	timeout time.Duration
	dial    DialFunc
}

// New returns a Prober. The default timeout is 10 seconds.
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	return &Prober{timeout: opts.Timeout, dial: opts.Dial}
}

// Chain connects to address (host:port), sends serverName as SNI and
// returns the peer certificates, leaf first.
func (p *Prober) Chain(ctx context.Context, address, serverName string) ([]*x509.Certificate, error) {
	if address == "" {
		return nil, errors.New(errAddressRequired)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.dial(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf(errDialFailed, address, err)
	}
	defer raw.Close()

	conn := tls.Client(raw, &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true, // #nosec G402
		MinVersion:         tls.VersionTLS12,
	})
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf(errHandshakeFailed, address, err)
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, ErrNoPeerCertificates
	}
	return certs, nil
}
