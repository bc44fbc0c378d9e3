package dispatch

import (
	"github.com/haukened/rr-certoverride/internal/certs/domain"
	"github.com/haukened/rr-certoverride/internal/certs/services/override"
)

// Proxy forwards every OverrideService call onto a Dispatcher and blocks the
// caller until the result is available.
type Proxy struct {
	svc override.OverrideService
	d   *Dispatcher
}

// NewProxy wraps svc so that it only ever runs on d.
func NewProxy(svc override.OverrideService, d *Dispatcher) *Proxy {
	return &Proxy{svc: svc, d: d}
}

func (p *Proxy) HasMatchingOverride(host string, port int, cert domain.Certificate) (dec domain.Decision, temporary bool, err error) {
	if cerr := p.d.Call(func() {
		dec, temporary, err = p.svc.HasMatchingOverride(host, port, cert)
	}); cerr != nil {
		return domain.Reject(), false, cerr
	}
	return dec, temporary, err
}

func (p *Proxy) RememberValidityOverride(host string, port int, cert domain.Certificate, bits domain.OverrideBits, temporary bool) (err error) {
	if cerr := p.d.Call(func() {
		err = p.svc.RememberValidityOverride(host, port, cert, bits, temporary)
	}); cerr != nil {
		return cerr
	}
	return err
}

func (p *Proxy) ClearValidityOverride(host string, port int) (err error) {
	if cerr := p.d.Call(func() {
		err = p.svc.ClearValidityOverride(host, port)
	}); cerr != nil {
		return cerr
	}
	return err
}

func (p *Proxy) GetValidityOverride(host string, port int) (ov domain.Override, ok bool, err error) {
	if cerr := p.d.Call(func() {
		ov, ok, err = p.svc.GetValidityOverride(host, port)
	}); cerr != nil {
		return domain.Override{}, false, cerr
	}
	return ov, ok, err
}

func (p *Proxy) GetAllOverrideHostsWithPorts() (hosts []string, err error) {
	if cerr := p.d.Call(func() {
		hosts, err = p.svc.GetAllOverrideHostsWithPorts()
	}); cerr != nil {
		return nil, cerr
	}
	return hosts, err
}

func (p *Proxy) IsCertUsedForOverrides(cert domain.Certificate, checkTemporaries, checkPermanents bool) (n uint32, err error) {
	if cerr := p.d.Call(func() {
		n, err = p.svc.IsCertUsedForOverrides(cert, checkTemporaries, checkPermanents)
	}); cerr != nil {
		return 0, cerr
	}
	return n, err
}

var _ override.OverrideService = (*Proxy)(nil)
