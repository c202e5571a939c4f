package links

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reHxxp         = regexp.MustCompile(`(?i)\bhxxp(s?)://`)
	reSpacedScheme = regexp.MustCompile(`(?i)\b(https?)\s*:\s*/\s*/\s*`)
	reBracketDot   = regexp.MustCompile(`(?i)\s*\[dot\]\s*`)
	reParenDot     = regexp.MustCompile(`(?i)\s*\(dot\)\s*`)
	reWordDot      = regexp.MustCompile(`(?i)\s+dot\s+`)
	reSpacedDot    = regexp.MustCompile(`([a-zA-Z0-9])[ \t]*\.([ \t]*)([a-zA-Z0-9])`)
	reSpacedSlash  = regexp.MustCompile(`([a-zA-Z0-9])[ \t]*/[ \t]*([a-zA-Z0-9])`)
	reBreakTag     = regexp.MustCompile(`(?i)<br\s*/?>`)
	dotVariants    = strings.NewReplacer("·", ".", "•", ".", "。", ".", "．", ".")
	invisibleRunes = runes.Remove(runes.In(unicode.Cf))
)

// Prenormalize rewrites a whole post body so that obfuscated links become
// scannable: invisible characters are removed, compatibility forms folded,
// dot variants and "[dot]" style spellings rewritten, hxxp and spaced-out
// schemes repaired, and HTML entities decoded.
func Prenormalize(text string) string {
	if text == "" {
		return ""
	}
	s := fold(text)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "`", "")
	return deobfuscate(s)
}

// fold strips format characters (zero-width space, joiners, BOM) and applies
// NFKC so full-width letters, digits and punctuation become ASCII.
func fold(s string) string {
	t := transform.Chain(invisibleRunes, norm.NFKC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func deobfuscate(s string) string {
	s = fold(s)
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&AMP;", "&")
	s = dotVariants.Replace(s)
	s = reHxxp.ReplaceAllString(s, "http$1://")
	s = reSpacedScheme.ReplaceAllStringFunc(s, func(m string) string {
		sub := reSpacedScheme.FindStringSubmatch(m)
		return strings.ToLower(sub[1]) + "://"
	})
	s = reBracketDot.ReplaceAllString(s, ".")
	s = reParenDot.ReplaceAllString(s, ".")
	s = reWordDot.ReplaceAllString(s, ".")
	s = collapseSpacedDots(s)
	s = reSpacedSlash.ReplaceAllString(s, "$1/$2")
	return s
}

// collapseSpacedDots joins "weidian . com" into "weidian.com". A dot
// followed by whitespace and a capital letter ends a sentence and is kept.
func collapseSpacedDots(s string) string {
	return reSpacedDot.ReplaceAllStringFunc(s, func(m string) string {
		sub := reSpacedDot.FindStringSubmatch(m)
		if sub[2] != "" && unicode.IsUpper(rune(sub[3][0])) {
			return m
		}
		return sub[1] + "." + sub[3]
	})
}

// HTMLToText flattens an HTML fragment to text, keeping anchor targets so
// links in bodies that only exist as HTML are still found.
func HTMLToText(fragment string) string {
	if fragment == "" {
		return ""
	}
	src := reBreakTag.ReplaceAllString(html.UnescapeString(fragment), "\n")
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, a := range tok.Attr {
				if a.Key == "href" && a.Val != "" {
					b.WriteString(" " + a.Val + " ")
				}
			}
		}
	}
}
