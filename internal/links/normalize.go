// Package links finds, cleans and validates URLs embedded in post text.
package links

import (
	"net/url"
	"regexp"
	"strings"
)

// ValidTLDs limits accepted hosts to a fixed set of top-level domains so that
// ordinary prose ("this.is") is not mistaken for a link.
var ValidTLDs = map[string]bool{
	"com": true, "net": true, "org": true, "cn": true, "co": true, "io": true,
	"me": true, "app": true, "shop": true, "vip": true, "xyz": true, "cc": true,
	"top": true, "tv": true, "us": true, "uk": true, "de": true, "fr": true,
	"it": true, "es": true, "nl": true, "be": true, "pl": true, "se": true,
	"no": true, "dk": true, "fi": true, "ru": true, "jp": true, "kr": true,
	"hk": true, "tw": true,
}

var trackingParams = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^utm_`),
	regexp.MustCompile(`(?i)^spm$`),
	regexp.MustCompile(`(?i)^spider_token$`),
	regexp.MustCompile(`(?i)^from$`),
	regexp.MustCompile(`(?i)^ref$`),
	regexp.MustCompile(`(?i)^referrer$`),
	regexp.MustCompile(`(?i)^campaign$`),
	regexp.MustCompile(`(?i)^camp$`),
	regexp.MustCompile(`(?i)^fbclid$`),
	regexp.MustCompile(`(?i)^gclid$`),
}

var (
	reControl       = regexp.MustCompile(`[\r\n\t]`)
	reLeadingWrap   = regexp.MustCompile("^[`'\"<(\\[{]+")
	reTrailingPunct = regexp.MustCompile("[`'\">)\\]}.,;:!?…]+$")
	reWWW           = regexp.MustCompile(`(?i)^www\.`)
	reHasScheme     = regexp.MustCompile(`(?i)^https?://`)
	reAlpha         = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// Normalize cleans one raw URL candidate: wrapping punctuation and trailing
// sentence punctuation are removed, a scheme is added to bare hosts with an
// allow-listed TLD, and tracking parameters are dropped. Every other query
// parameter survives.
func Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = reControl.ReplaceAllString(u, "")
	u = deobfuscate(u)

	u = reLeadingWrap.ReplaceAllString(u, "")
	u = reTrailingPunct.ReplaceAllString(u, "")

	if reWWW.MatchString(u) {
		u = "http://" + u
	}
	if !reHasScheme.MatchString(u) && strings.Contains(u, ".") {
		host := u
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		parts := strings.Split(host, ".")
		tld := strings.ToLower(parts[len(parts)-1])
		if len(tld) >= 2 && reAlpha.MatchString(tld) && ValidTLDs[tld] {
			u = "http://" + u
		}
	}

	return stripTracking(u)
}

func stripTracking(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.RawQuery == "" {
		return raw
	}
	params := parsed.Query()
	modified := false
	for key := range params {
		if isTrackingParam(key) {
			params.Del(key)
			modified = true
		}
	}
	if !modified {
		return raw
	}
	parsed.RawQuery = params.Encode()
	return parsed.String()
}

func isTrackingParam(key string) bool {
	for _, re := range trackingParams {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// Host returns the lower-cased hostname without a leading "www.", or "" when
// raw does not parse as an absolute URL.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
