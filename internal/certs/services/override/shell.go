package override

import (
	"errors"

	"github.com/haukened/rr-certoverride/internal/certs/domain"
)

// CapabilityOverrideService names the override contract in capability queries.
const CapabilityOverrideService = "override-service"

// ErrNoSuchInterface is returned for capability queries the shell does not serve.
var ErrNoSuchInterface = errors.New("no such interface")

// Shell implements OverrideService around an original service. Only
// HasMatchingOverride consults the evaluator; every other call is forwarded
// unchanged.
type Shell struct {
	evaluator *Evaluator
	original  OverrideService
}

// NewShell wraps original with the evaluator's policy.
func NewShell(evaluator *Evaluator, original OverrideService) *Shell {
	return &Shell{evaluator: evaluator, original: original}
}

// HasMatchingOverride accepts cert per the evaluator, or defers to the
// original service when the policy is switched off.
func (s *Shell) HasMatchingOverride(host string, port int, cert domain.Certificate) (domain.Decision, bool, error) {
	dec, err := s.evaluator.Decide(cert, host)
	if err != nil {
		return domain.Reject(), false, err
	}
	if dec.Accept {
		return dec, false, nil
	}
	return s.original.HasMatchingOverride(host, port, cert)
}

func (s *Shell) RememberValidityOverride(host string, port int, cert domain.Certificate, bits domain.OverrideBits, temporary bool) error {
	return s.original.RememberValidityOverride(host, port, cert, bits, temporary)
}

func (s *Shell) ClearValidityOverride(host string, port int) error {
	return s.original.ClearValidityOverride(host, port)
}

func (s *Shell) GetValidityOverride(host string, port int) (domain.Override, bool, error) {
	return s.original.GetValidityOverride(host, port)
}

func (s *Shell) GetAllOverrideHostsWithPorts() ([]string, error) {
	return s.original.GetAllOverrideHostsWithPorts()
}

func (s *Shell) IsCertUsedForOverrides(cert domain.Certificate, checkTemporaries, checkPermanents bool) (uint32, error) {
	return s.original.IsCertUsedForOverrides(cert, checkTemporaries, checkPermanents)
}

// Capability returns the implementation of the named contract.
func (s *Shell) Capability(name string) (any, error) {
	switch name {
	case CapabilityOverrideService:
		return OverrideService(s), nil
	default:
		return nil, ErrNoSuchInterface
	}
}

var _ OverrideService = (*Shell)(nil)
