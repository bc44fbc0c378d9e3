package domain

import (
	"crypto/x509"
	"fmt"
	"strings"
)

// VerifyResult is the raw outcome of native certificate verification.
// Zero means the certificate verified cleanly for the requested usage.
type VerifyResult uint32

const (
	VerifyExpired VerifyResult = 1 << iota
	VerifyNotYetValid
	VerifyIssuerUnknown
	VerifyIssuerNotTrusted
	VerifyCertNotTrusted
	VerifyInvalidCA
	VerifyUsageNotAllowed
)

// issuerTrustMask groups the flags that indicate the chain does not lead to a
// trusted issuer.
const issuerTrustMask = VerifyIssuerUnknown | VerifyIssuerNotTrusted | VerifyCertNotTrusted | VerifyInvalidCA

func (r VerifyResult) Has(f VerifyResult) bool { return r&f != 0 }

// IsExpired reports a validity window failure. A certificate that is not yet
// valid falls in the same time category as an expired one.
func (r VerifyResult) IsExpired() bool { return r.Has(VerifyExpired | VerifyNotYetValid) }

// IssuerUntrusted reports whether any issuer-trust flag is set.
func (r VerifyResult) IssuerUntrusted() bool { return r&issuerTrustMask != 0 }

func (r VerifyResult) String() string {
	if r == 0 {
		return "verified"
	}
	names := []struct {
		f    VerifyResult
		name string
	}{
		{VerifyExpired, "expired"},
		{VerifyNotYetValid, "not-yet-valid"},
		{VerifyIssuerUnknown, "issuer-unknown"},
		{VerifyIssuerNotTrusted, "issuer-not-trusted"},
		{VerifyCertNotTrusted, "cert-not-trusted"},
		{VerifyInvalidCA, "invalid-ca"},
		{VerifyUsageNotAllowed, "usage-not-allowed"},
	}
	var parts []string
	for _, n := range names {
		if r.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// CertUsage is the purpose a certificate is verified for.
type CertUsage uint8

const (
	UsageSSLClient CertUsage = iota
	UsageSSLServer
	UsageEmailSigner
	UsageObjectSigner
)

func (u CertUsage) String() string {
	switch u {
	case UsageSSLClient:
		return "ssl-client"
	case UsageSSLServer:
		return "ssl-server"
	case UsageEmailSigner:
		return "email-signer"
	case UsageObjectSigner:
		return "object-signer"
	default:
		return fmt.Sprintf("CertUsage(%d)", u)
	}
}

// ExtKeyUsage maps a usage onto the x509 extended key usage checked during
// chain building.
//
// UsageSSLClient names the caller (an SSL client validating a peer), so the
// peer certificate is checked for server authentication.
func (u CertUsage) ExtKeyUsage() x509.ExtKeyUsage {
	switch u {
	case UsageSSLClient:
		return x509.ExtKeyUsageServerAuth
	case UsageSSLServer:
		return x509.ExtKeyUsageClientAuth
	case UsageEmailSigner:
		return x509.ExtKeyUsageEmailProtection
	case UsageObjectSigner:
		return x509.ExtKeyUsageCodeSigning
	default:
		return x509.ExtKeyUsageAny
	}
}

// Certificate is what the override policy needs from a presented certificate.
type Certificate interface {
	// HostPattern is the name the certificate was issued for; it may carry a
	// single "*" wildcard.
	HostPattern() string
	// Fingerprint is the SHA-256 digest as colon separated upper-case hex.
	Fingerprint() string
	// DBKey identifies the certificate by issuer and serial.
	DBKey() string
	// Verify runs native verification for the given usage.
	Verify(usage CertUsage) (VerifyResult, error)
}
