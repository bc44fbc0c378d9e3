package override

import (
	"errors"
	"fmt"

	"github.com/haukened/rr-certoverride/internal/certs/common/log"
	"github.com/haukened/rr-certoverride/internal/certs/domain"
)

// Preference names read by the evaluator.
const (
	PrefAcceptUntrustedCerts  = "accept_untrusted_certs"
	PrefAssumeUntrustedIssuer = "assume_untrusted_issuer"
)

// ErrVerification wraps failures of the native verification call. It is
// distinct from a certificate that verified with error flags.
var ErrVerification = errors.New("certificate verification failed")

// Evaluator decides which certificate error categories to waive.
//
// The untrusted-issuer baseline is fixed at construction; the master switch
// is read on every decision.
type Evaluator struct {
	prefs    Preferences
	matcher  HostMatcher
	logger   log.Logger
	baseline domain.OverrideBits
}

type EvaluatorOptions struct {
	Prefs   Preferences
	Matcher HostMatcher // nil uses domain.MatchHostPattern
	Logger  log.Logger  // nil discards
}

// NewEvaluator reads both policy switches (each defaulting to true) and
// establishes the baseline mask.
func NewEvaluator(opts EvaluatorOptions) (*Evaluator, error) {
	if opts.Prefs == nil {
		return nil, errors.New("evaluator: preferences are required")
	}
	if opts.Matcher == nil {
		opts.Matcher = patternFunc(domain.MatchHostPattern)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}

	accept, err := opts.Prefs.GetBool(PrefAcceptUntrustedCerts, true)
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	assume, err := opts.Prefs.GetBool(PrefAssumeUntrustedIssuer, true)
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}

	e := &Evaluator{prefs: opts.Prefs, matcher: opts.Matcher, logger: opts.Logger}
	if assume {
		e.baseline = domain.BitUntrusted
	}
	e.logger.Info(map[string]any{
		"accept_untrusted_certs":  accept,
		"assume_untrusted_issuer": assume,
		"baseline":                e.baseline.String(),
	}, "Override policy initialized")
	return e, nil
}

// Baseline returns the categories asserted before any certificate is inspected.
func (e *Evaluator) Baseline() domain.OverrideBits { return e.baseline }

// Decide answers an override query. A rejecting decision means the caller
// must fall back to the original override service.
func (e *Evaluator) Decide(cert domain.Certificate, host string) (domain.Decision, error) {
	accept, err := e.prefs.GetBool(PrefAcceptUntrustedCerts, true)
	if err != nil {
		return domain.Reject(), fmt.Errorf("evaluator: %w", err)
	}
	if !accept {
		e.logger.Debug(map[string]any{"host": host}, "Override policy disabled")
		return domain.Reject(), nil
	}

	bits, err := e.FillNeededBits(cert, host)
	if err != nil {
		return domain.Reject(), err
	}
	e.logger.Debug(map[string]any{"host": host, "bits": bits.String()}, "Override granted")
	return domain.Accepted(bits), nil
}

// FillNeededBits computes the exact mask for cert presented to host.
//
// The issuer check only runs when nothing else has been flagged: the host
// compares the mask bit for bit against its own findings and rejects an
// override carrying a category it did not report. A certificate it already
// faults for expiry or name does not get a separate issuer verdict.
func (e *Evaluator) FillNeededBits(cert domain.Certificate, host string) (domain.OverrideBits, error) {
	res, err := cert.Verify(domain.UsageSSLClient)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	bits := e.baseline
	if res.IsExpired() {
		bits |= domain.BitTime
	}
	if !e.matcher.Match(cert.HostPattern(), host) {
		bits |= domain.BitMismatch
	}
	if bits == 0 && res.IssuerUntrusted() {
		bits |= domain.BitUntrusted
	}
	return bits, nil
}

type patternFunc func(pattern, host string) bool

func (f patternFunc) Match(pattern, host string) bool { return f(pattern, host) }
