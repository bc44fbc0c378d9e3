package verifier

import (
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/cloudflare/cfssl/crypto/pkcs7"
)

var (
	// ErrNoCertificates indicates the input held no certificate at all.
	ErrNoCertificates = errors.New("verifier: no certificates found")

	// ErrInvalidBlockType indicates a PEM block that is not a certificate.
	ErrInvalidBlockType = errors.New("verifier: invalid PEM block type")

	// ErrParseCertificate indicates DER data that could not be parsed.
	ErrParseCertificate = errors.New("verifier: failed to parse certificate")
)

const certBlockType = "CERTIFICATE"

// DecodeChain decodes a leaf followed by any intermediates from PEM, DER or
// PKCS#7 data. The first certificate is the leaf.
func DecodeChain(data []byte) ([]*x509.Certificate, error) {
	if block, _ := pem.Decode(data); block != nil {
		return decodePEM(data)
	}

	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		return certs, nil
	}

	p, err := pkcs7.ParsePKCS7(data)
	if err != nil {
		return nil, ErrParseCertificate
	}
	if len(p.Content.SignedData.Certificates) == 0 {
		return nil, ErrNoCertificates
	}
	return p.Content.SignedData.Certificates, nil
}

func decodePEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != certBlockType {
			return nil, ErrInvalidBlockType
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, ErrParseCertificate
		}
		certs = append(certs, cert)
		data = rest
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}
	return certs, nil
}

// LoadPool builds a certificate pool from PEM bundles.
func LoadPool(bundles ...[]byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, b := range bundles {
		certs, err := DecodeChain(b)
		if err != nil {
			return nil, err
		}
		for _, c := range certs {
			pool.AddCert(c)
		}
	}
	return pool, nil
}
