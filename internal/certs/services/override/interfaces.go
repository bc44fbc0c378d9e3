package override

import "github.com/haukened/rr-certoverride/internal/certs/domain"

// Preferences is the configuration store the evaluator reads its switches from.
type Preferences interface {
	// GetBool returns the explicit value of name, or def if it is unset.
	GetBool(name string, def bool) (bool, error)
}

// HostMatcher decides whether a requested host matches a certificate host pattern.
type HostMatcher interface {
	Match(pattern, host string) bool
}

// OverrideService is the complete certificate override contract the host
// expects. HasMatchingOverride is the only decision-bearing operation; the
// rest manage stored overrides.
type OverrideService interface {
	// HasMatchingOverride reports whether cert should be accepted for
	// host:port, which error categories are waived and whether the override
	// is temporary.
	HasMatchingOverride(host string, port int, cert domain.Certificate) (dec domain.Decision, temporary bool, err error)

	RememberValidityOverride(host string, port int, cert domain.Certificate, bits domain.OverrideBits, temporary bool) error
	ClearValidityOverride(host string, port int) error
	GetValidityOverride(host string, port int) (domain.Override, bool, error)
	GetAllOverrideHostsWithPorts() ([]string, error)

	// IsCertUsedForOverrides counts stored overrides made for cert.
	IsCertUsedForOverrides(cert domain.Certificate, checkTemporaries, checkPermanents bool) (uint32, error)
}
