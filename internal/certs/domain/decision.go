package domain

// Decision is the outcome of an override query.
// Pure value type, no external dependencies.
type Decision struct {
	Accept bool         // true if the certificate errors in Bits are waived
	Bits   OverrideBits // exact set of waived categories
}

// Reject returns the no-override decision.
func Reject() Decision { return Decision{} }

// Accepted builds an accepting decision for bits.
func Accepted(bits OverrideBits) Decision { return Decision{Accept: true, Bits: bits} }
