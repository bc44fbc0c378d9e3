package override

import (
	"github.com/stretchr/testify/mock"

	"github.com/haukened/rr-certoverride/internal/certs/domain"
)

// mapPrefs is a Preferences double; missing keys are unset.
type mapPrefs struct {
	values map[string]bool
	err    error
	reads  int
}

func (p *mapPrefs) GetBool(name string, def bool) (bool, error) {
	p.reads++
	if p.err != nil {
		return false, p.err
	}
	if v, ok := p.values[name]; ok {
		return v, nil
	}
	return def, nil
}

func prefs(accept, assume bool) *mapPrefs {
	return &mapPrefs{values: map[string]bool{
		PrefAcceptUntrustedCerts:  accept,
		PrefAssumeUntrustedIssuer: assume,
	}}
}

// fakeCert returns a fixed verification result.
type fakeCert struct {
	pattern string
	result  domain.VerifyResult
	err     error
	usages  []domain.CertUsage
}

func (c *fakeCert) HostPattern() string { return c.pattern }
func (c *fakeCert) Fingerprint() string { return "AB:CD" }
func (c *fakeCert) DBKey() string       { return "k" }
func (c *fakeCert) Verify(u domain.CertUsage) (domain.VerifyResult, error) {
	c.usages = append(c.usages, u)
	return c.result, c.err
}

type MockOverrideService struct {
	mock.Mock
}

func (m *MockOverrideService) HasMatchingOverride(host string, port int, cert domain.Certificate) (domain.Decision, bool, error) {
	args := m.Called(host, port, cert)
	return args.Get(0).(domain.Decision), args.Bool(1), args.Error(2)
}

func (m *MockOverrideService) RememberValidityOverride(host string, port int, cert domain.Certificate, bits domain.OverrideBits, temporary bool) error {
	return m.Called(host, port, cert, bits, temporary).Error(0)
}

func (m *MockOverrideService) ClearValidityOverride(host string, port int) error {
	return m.Called(host, port).Error(0)
}

func (m *MockOverrideService) GetValidityOverride(host string, port int) (domain.Override, bool, error) {
	args := m.Called(host, port)
	return args.Get(0).(domain.Override), args.Bool(1), args.Error(2)
}

func (m *MockOverrideService) GetAllOverrideHostsWithPorts() ([]string, error) {
	args := m.Called()
	hosts, _ := args.Get(0).([]string)
	return hosts, args.Error(1)
}

func (m *MockOverrideService) IsCertUsedForOverrides(cert domain.Certificate, checkTemporaries, checkPermanents bool) (uint32, error) {
	args := m.Called(cert, checkTemporaries, checkPermanents)
	return args.Get(0).(uint32), args.Error(1)
}

var _ OverrideService = (*MockOverrideService)(nil)
