package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/haukened/rr-certoverride/internal/certs/common/utils"
)

// FingerprintAlgSHA256 is the OID string recorded alongside override
// fingerprints.
const FingerprintAlgSHA256 = "OID.2.16.840.1.101.3.4.2.1"

// Override is a stored decision to accept a specific certificate for a
// specific host and port.
//
// Notes:
// - Host is canonical (see utils.CanonicalHost).
// - Temporary overrides live only for the process lifetime.
type Override struct {
	Host        string       `json:"host"`
	Port        int          `json:"port"`
	Algorithm   string       `json:"alg"`
	Fingerprint string       `json:"fingerprint"`
	Bits        OverrideBits `json:"bits"`
	DBKey       string       `json:"db_key"`
	Temporary   bool         `json:"-"`
	AddedAt     time.Time    `json:"added_at"`
}

// NewOverride builds a validated Override for cert at host:port.
func NewOverride(host string, port int, cert Certificate, bits OverrideBits, temporary bool, addedAt time.Time) (Override, error) {
	if cert == nil {
		return Override{}, fmt.Errorf("override certificate must not be nil")
	}
	if port == -1 {
		port = 443
	}
	o := Override{
		Host:        utils.CanonicalHost(host),
		Port:        port,
		Algorithm:   FingerprintAlgSHA256,
		Fingerprint: cert.Fingerprint(),
		Bits:        bits,
		DBKey:       cert.DBKey(),
		Temporary:   temporary,
		AddedAt:     addedAt,
	}
	if err := o.Validate(); err != nil {
		return Override{}, err
	}
	return o, nil
}

// Validate checks required fields and supported values.
func (o Override) Validate() error {
	if o.Host == "" {
		return fmt.Errorf("override host must not be empty")
	}
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("override port out of range: %d", o.Port)
	}
	if strings.TrimSpace(o.Fingerprint) == "" {
		return fmt.Errorf("override fingerprint must not be empty")
	}
	if o.Bits == 0 || !o.Bits.IsValid() {
		return fmt.Errorf("unsupported override bits: %d", o.Bits)
	}
	if o.AddedAt.IsZero() {
		return fmt.Errorf("override addedAt must be set")
	}
	return nil
}

// Key returns the host:port key overrides are stored under.
func (o Override) Key() string { return utils.HostPort(o.Host, o.Port) }

// Matches reports whether cert is the certificate this override was made for.
func (o Override) Matches(cert Certificate) bool {
	return cert != nil && strings.EqualFold(o.Fingerprint, cert.Fingerprint())
}
