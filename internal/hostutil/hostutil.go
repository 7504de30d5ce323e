// Package hostutil normalizes school API hosts and checks that credentials
// only travel over TLS or to the local machine.
package hostutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalize turns a bare host into a URL. Local hosts get http://, any
// other host gets https://; values that already carry a scheme pass
// through. Surrounding space and trailing slashes are dropped.
func Normalize(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	name, _, _ := strings.Cut(host, "/")
	if IsLocalhost(name) {
		return "http://" + host
	}
	return "https://" + host
}

// IsLocalhost reports whether host (optionally with a port) is a loopback
// name: localhost, a *.localhost subdomain, 127.0.0.1 or [::1].
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		if strings.Contains(host, ":") && host != "::1" {
			return false
		}
	}

	switch {
	case host == "localhost", strings.HasSuffix(host, ".localhost"):
		return true
	case host == "127.0.0.1", host == "::1":
		return true
	}
	return false
}

// RequireSecure rejects plain http:// URLs unless they point at the local
// machine. Empty input is accepted.
func RequireSecure(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "http" && !IsLocalhost(u.Host) {
		return fmt.Errorf("insecure http:// URL %s: tokens are only sent over https or to localhost", rawURL)
	}
	return nil
}
