package links

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/qepting91/linkfinder/internal/domain"
)

// ContextRadius is how many bytes of text around a match are kept as context.
const ContextRadius = 150

var (
	reSchemeURL = regexp.MustCompile(`(?i)https?://[-\w.]+(?::[0-9]+)?(?:/[\w/.\-~%+]*)?(?:\?[\w&=%.\-+~]*)?(?:#[\w.\-]*)?`)
	reMarkdown  = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	reBareText  = regexp.MustCompile(`(?i)(?:^|\s)((?:https?://)?(?:www\.)?[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)*\.[a-z]{2,}(?:/\S*)?)`)
)

var errBareHost = errors.New("bare host is an address or single label")

// Extractor scans text for links in four notations. The zero value is ready
// to use.
type Extractor struct {
	// Rejected, when set, observes every candidate dropped by validation.
	Rejected func(format domain.Format, err error)
}

type span struct {
	raw        string
	start, end int
	format     domain.Format
	bare       bool
}

// Extract returns every valid link in text, deduplicated by canonical URL, in
// scan order: markdown, HTML anchor, explicit scheme, bare domain.
func (e *Extractor) Extract(text string) []domain.ExtractedLink {
	return e.scan(text, true)
}

// ExtractWithContext is Extract without the HTML anchor scan; every link
// carries up to ContextRadius bytes of surrounding text.
func (e *Extractor) ExtractWithContext(text string) []domain.ExtractedLink {
	return e.scan(text, false)
}

func (e *Extractor) scan(text string, withHTML bool) []domain.ExtractedLink {
	norm := Prenormalize(text)
	if norm == "" {
		return nil
	}

	// Markdown and HTML run first so a URL keeps the notation it was
	// written in when the scheme scan finds it again.
	var spans []span
	for _, m := range reMarkdown.FindAllStringSubmatchIndex(norm, -1) {
		spans = append(spans, span{raw: norm[m[4]:m[5]], start: m[0], end: m[1], format: domain.FormatMarkdown})
	}
	if withHTML {
		spans = append(spans, anchorSpans(norm)...)
	}
	for _, m := range reSchemeURL.FindAllStringIndex(norm, -1) {
		spans = append(spans, span{raw: norm[m[0]:m[1]], start: m[0], end: m[1], format: domain.FormatPlain})
	}
	for _, m := range reBareText.FindAllStringSubmatchIndex(norm, -1) {
		spans = append(spans, span{raw: strings.TrimSpace(norm[m[2]:m[3]]), start: m[2], end: m[3], format: domain.FormatPlain, bare: true})
	}

	seen := make(map[string]bool, len(spans))
	var out []domain.ExtractedLink
	for _, s := range spans {
		u, err := candidate(s)
		if err != nil {
			if e.Rejected != nil {
				e.Rejected(s.format, err)
			}
			continue
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, domain.ExtractedLink{
			URL:     u,
			Context: window(norm, s.start, s.end),
			Format:  s.format,
		})
	}
	return out
}

func candidate(s span) (string, error) {
	u := Normalize(s.raw)
	if err := Validate(u); err != nil {
		return "", err
	}
	if s.bare {
		parsed, err := url.Parse(u)
		if err != nil {
			return "", invalid(u, "malformed")
		}
		host := parsed.Hostname()
		if reDottedQuad.MatchString(host) || len(strings.Split(host, ".")) < 2 {
			return "", errBareHost
		}
	}
	return u, nil
}

// anchorSpans finds <a href> targets with the HTML tokenizer and locates each
// one in text for its context window.
func anchorSpans(text string) []span {
	if !strings.Contains(text, "<") {
		return nil
	}
	var spans []span
	from := 0
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return spans
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "a" {
			continue
		}
		for _, a := range tok.Attr {
			if a.Key != "href" || a.Val == "" {
				continue
			}
			start := strings.Index(text[from:], a.Val)
			if start < 0 {
				start = 0
			} else {
				start += from
				from = start + len(a.Val)
			}
			spans = append(spans, span{raw: a.Val, start: start, end: start + len(a.Val), format: domain.FormatHTML})
		}
	}
}

func window(text string, start, end int) string {
	lo := max(0, start-ContextRadius)
	hi := min(len(text), end+ContextRadius)
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return text[lo:hi]
}

var defaultExtractor = &Extractor{}

// Extract runs the default extractor.
func Extract(text string) []domain.ExtractedLink {
	return defaultExtractor.Extract(text)
}

// ExtractWithContext runs the default extractor without the HTML scan.
func ExtractWithContext(text string) []domain.ExtractedLink {
	return defaultExtractor.ExtractWithContext(text)
}

// URLs flattens links to their URL strings.
func URLs(found []domain.ExtractedLink) []string {
	out := make([]string, 0, len(found))
	for _, l := range found {
		out = append(out, l.URL)
	}
	return out
}
