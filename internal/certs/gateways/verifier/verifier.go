package verifier

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haukened/rr-certoverride/internal/certs/common/clock"
	"github.com/haukened/rr-certoverride/internal/certs/domain"
)

// Verifier runs native chain verification against a trust pool.
type Verifier struct {
	roots *x509.CertPool
	clock clock.Clock
}

// New returns a Verifier. A nil roots pool means the system pool.
func New(roots *x509.CertPool, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Verifier{roots: roots, clock: clk}
}

// Certificate wraps chain[0] as a domain.Certificate; the rest of chain is
// offered as intermediates.
func (v *Verifier) Certificate(chain []*x509.Certificate) (domain.Certificate, error) {
	if len(chain) == 0 || chain[0] == nil {
		return nil, ErrNoCertificates
	}
	return &certificate{leaf: chain[0], intermediates: chain[1:], verifier: v}, nil
}

// Verify computes the raw result for leaf.
//
// Expiry is judged at the current time. Trust is judged at a moment inside
// the leaf's validity window so an expired leaf still reports its issuer
// status.
func (v *Verifier) Verify(leaf *x509.Certificate, intermediates []*x509.Certificate, usage domain.CertUsage) (domain.VerifyResult, error) {
	var res domain.VerifyResult

	now := v.clock.Now()
	at := now
	switch {
	case now.After(leaf.NotAfter):
		res |= domain.VerifyExpired
		at = leaf.NotAfter
	case now.Before(leaf.NotBefore):
		res |= domain.VerifyNotYetValid
		at = leaf.NotBefore
	}

	pool := x509.NewCertPool()
	for _, c := range intermediates {
		pool.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: pool,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{usage.ExtKeyUsage()},
	})
	if err == nil {
		return res, nil
	}

	var (
		unknown x509.UnknownAuthorityError
		invalid x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &unknown):
		res |= classifyUnknown(leaf, unknown.Cert, intermediates, at)
	case errors.As(err, &invalid):
		switch invalid.Reason {
		case x509.NotAuthorizedToSign, x509.CANotAuthorizedForThisName,
			x509.TooManyIntermediates, x509.CANotAuthorizedForExtKeyUsage,
			x509.NameConstraintsWithoutSANs, x509.UnconstrainedName:
			res |= domain.VerifyInvalidCA
		case x509.Expired:
			// the leaf is checked inside its window, so this is an issuer
			res |= domain.VerifyInvalidCA
		case x509.IncompatibleUsage:
			res |= domain.VerifyUsageNotAllowed
		default:
			return 0, err
		}
	default:
		return 0, err
	}
	return res, nil
}

// classifyUnknown explains why chain building stopped at top, the last
// certificate for which no trusted issuer was found.
func classifyUnknown(leaf, top *x509.Certificate, presented []*x509.Certificate, at time.Time) domain.VerifyResult {
	if top == nil {
		top = leaf
	}
	if isSelfSigned(top) {
		if top.Equal(leaf) {
			return domain.VerifyIssuerNotTrusted | domain.VerifyCertNotTrusted
		}
		return domain.VerifyIssuerNotTrusted
	}
	for _, p := range presented {
		if p.Equal(top) || !signedBy(top, p) {
			continue
		}
		if !p.BasicConstraintsValid || !p.IsCA || at.Before(p.NotBefore) || at.After(p.NotAfter) {
			return domain.VerifyInvalidCA
		}
	}
	return domain.VerifyIssuerUnknown
}

// signedBy checks the raw signature only, without CA constraints.
func signedBy(c, parent *x509.Certificate) bool {
	return parent.CheckSignature(c.SignatureAlgorithm, c.RawTBSCertificate, c.Signature) == nil
}

func isSelfSigned(c *x509.Certificate) bool {
	return signedBy(c, c)
}

type certificate struct {
	leaf          *x509.Certificate
	intermediates []*x509.Certificate
	verifier      *Verifier
}

// HostPattern is the subject common name, falling back to the first DNS SAN.
func (c *certificate) HostPattern() string {
	if cn := c.leaf.Subject.CommonName; cn != "" {
		return cn
	}
	if len(c.leaf.DNSNames) > 0 {
		return c.leaf.DNSNames[0]
	}
	return ""
}

func (c *certificate) Fingerprint() string {
	return Fingerprint(c.leaf)
}

// DBKey encodes issuer and serial, the pair that identifies a certificate
// in a certificate database.
func (c *certificate) DBKey() string {
	enc := base64.StdEncoding
	return enc.EncodeToString(c.leaf.RawIssuer) + "." + enc.EncodeToString(c.leaf.SerialNumber.Bytes())
}

func (c *certificate) Verify(usage domain.CertUsage) (domain.VerifyResult, error) {
	return c.verifier.Verify(c.leaf, c.intermediates, usage)
}

// Fingerprint returns the SHA-256 digest of cert as colon separated
// upper-case hex.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

var _ domain.Certificate = (*certificate)(nil)
