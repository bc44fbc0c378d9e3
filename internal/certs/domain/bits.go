package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// OverrideBits is the set of certificate error categories an override waives.
// Values are fixed by the host's override contract and must not change.
type OverrideBits uint32

const (
	// BitUntrusted waives an untrusted or unknown issuer.
	BitUntrusted OverrideBits = 1
	// BitMismatch waives a hostname mismatch.
	BitMismatch OverrideBits = 2
	// BitTime waives an expired certificate.
	BitTime OverrideBits = 4

	allBits = BitUntrusted | BitMismatch | BitTime
)

// Has reports whether every bit in o is set.
func (b OverrideBits) Has(o OverrideBits) bool { return b&o == o }

// IsValid reports whether b contains only known categories.
func (b OverrideBits) IsValid() bool { return b&^allBits == 0 }

// String renders the set as "untrusted|mismatch|time", or "none".
func (b OverrideBits) String() string {
	if b == 0 {
		return "none"
	}
	var parts []string
	if b.Has(BitUntrusted) {
		parts = append(parts, "untrusted")
	}
	if b.Has(BitMismatch) {
		parts = append(parts, "mismatch")
	}
	if b.Has(BitTime) {
		parts = append(parts, "time")
	}
	if rest := b &^ allBits; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseOverrideBits accepts a "|" or "," separated list of category names
// (case-insensitive), or a decimal mask.
func ParseOverrideBits(s string) (OverrideBits, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		b := OverrideBits(n)
		if !b.IsValid() {
			return 0, fmt.Errorf("unsupported override bits: %d", n)
		}
		return b, nil
	}
	var b OverrideBits
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "untrusted":
			b |= BitUntrusted
		case "mismatch":
			b |= BitMismatch
		case "time":
			b |= BitTime
		default:
			return 0, fmt.Errorf("unsupported override category: %q", p)
		}
	}
	return b, nil
}
