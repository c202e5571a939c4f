package links

import (
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"github.com/qepting91/linkfinder/internal/domain"
)

var (
	reHostChars  = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
	rePrivateIP  = regexp.MustCompile(`^(?:10\.|127\.|169\.254\.|192\.168\.|172\.(?:1[6-9]|2\d|3[01])\.)`)
	reDottedQuad = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
)

const (
	minURLLength  = 10
	minHostLength = 4
	maxHostLength = 253
)

func invalid(u, reason string) error {
	return &domain.ValidationError{Field: "url", Value: u, Reason: reason}
}

// Validate reports why u is not an acceptable public http(s) link, or nil.
func Validate(u string) error {
	if len(u) < minURLLength {
		return invalid(u, "too short")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return invalid(u, "malformed")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalid(u, "unsupported scheme")
	}
	host := parsed.Hostname()
	if host == "" || !strings.Contains(host, ".") {
		return invalid(u, "missing hostname")
	}
	if len(host) < minHostLength || len(host) > maxHostLength {
		return invalid(u, "hostname length")
	}
	if rePrivateIP.MatchString(host) {
		return invalid(u, "private address")
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			return invalid(u, "private address")
		}
	}
	if !reHostChars.MatchString(host) {
		return invalid(u, "hostname characters")
	}
	parts := strings.Split(host, ".")
	tld := strings.ToLower(parts[len(parts)-1])
	if len(tld) < 2 || !reAlpha.MatchString(tld) || !ValidTLDs[tld] {
		return invalid(u, "top-level domain not allowed")
	}
	return nil
}

// IsValid reports whether u passes Validate.
func IsValid(u string) bool {
	return Validate(u) == nil
}
