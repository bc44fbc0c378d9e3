package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalHost returns a hostname in the form used for override keys and
// pattern matching:
// - trimmed and lowercased
// - without trailing dots
// - internationalized labels converted to their ASCII (punycode) form
//
// IP literals are returned without brackets. Names idna rejects are returned
// lowercased but otherwise untouched so the caller still gets a usable key.
func CanonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	for strings.HasSuffix(host, ".") {
		host = strings.TrimSuffix(host, ".")
	}
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

// HostPort joins a canonical host and port into an override key.
// Port -1 selects the default HTTPS port.
func HostPort(host string, port int) string {
	if port == -1 {
		port = 443
	}
	return net.JoinHostPort(CanonicalHost(host), strconv.Itoa(port))
}

// SplitHostPort is the inverse of HostPort.
func SplitHostPort(key string) (string, int, error) {
	host, p, err := net.SplitHostPort(key)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", key)
	}
	return CanonicalHost(host), port, nil
}
