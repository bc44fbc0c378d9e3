package domain

import (
	"regexp"
	"strings"
)

// wildcardLabel is what a "*" in a host pattern expands to: one or more word
// or hyphen characters, never a dot.
const wildcardLabel = `[A-Za-z0-9_-]+`

// CompileHostPattern turns a certificate host pattern into an anchored,
// case-insensitive expression. Every character other than "*" is literal.
func CompileHostPattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile(`(?i)^` + strings.Join(parts, wildcardLabel) + `$`)
}

// MatchHostPattern reports whether host matches pattern. An empty pattern
// matches nothing.
func MatchHostPattern(pattern, host string) bool {
	if pattern == "" {
		return false
	}
	re, err := CompileHostPattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(host)
}
