package ranking

import (
	"regexp"
	"strings"
)

var abbreviations = []struct {
	re   *regexp.Regexp
	full string
}{
	{regexp.MustCompile(`\bw2c\b`), "where to cop"},
	{regexp.MustCompile(`\bqc\b`), "quality check"},
	{regexp.MustCompile(`\blc\b`), "legit check"},
	{regexp.MustCompile(`\bgl\b`), "green light"},
	{regexp.MustCompile(`\brl\b`), "red light"},
	{regexp.MustCompile(`\bwtb\b`), "want to buy"},
	{regexp.MustCompile(`\bwts\b`), "want to sell"},
	{regexp.MustCompile(`\bwtc\b`), "where to cop"},
	{regexp.MustCompile(`\bfs\b`), "for sale"},
}

var synonymGroups = [][]string{
	{"quality", "qc", "check", "legit", "authentic", "real"},
	{"buy", "cop", "purchase", "order"},
	{"sell", "sale", "selling", "sold"},
	{"price", "cost", "cheap", "expensive"},
	{"shipping", "delivery", "shipped"},
	{"size", "sizing", "fit", "tts", "measurement"},
}

const (
	neutralSimilarity = 0.5
	minSimilarity     = 0.2
	exactShare        = 0.4
	partialShare      = 0.2
	semanticShare     = 0.3
	titleBonus        = 0.25
	lengthBonusCap    = 0.2
	lengthBonusWords  = 200.0
)

// expand lower-cases s, blanks punctuation and spells out forum shorthand.
func expand(s string) string {
	s = strings.Join(strings.Fields(reNonWord.ReplaceAllString(strings.ToLower(s), " ")), " ")
	for _, a := range abbreviations {
		s = a.re.ReplaceAllString(s, a.full)
	}
	return s
}

func longWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func synonyms(word string) []string {
	for _, g := range synonymGroups {
		for _, s := range g {
			if strings.Contains(word, s) || strings.Contains(s, word) {
				return g
			}
		}
	}
	return []string{word}
}

func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// LexicalSimilarity is a secondary relevance signal in [0.2,1] that credits
// synonyms, shorthand and query words placed in the title. It returns 0.5
// when either side has no usable words.
func LexicalSimilarity(query, title, body string) float64 {
	qw := longWords(expand(query))
	tw := longWords(expand(title + " " + body))
	if len(qw) == 0 || len(tw) == 0 {
		return neutralSimilarity
	}

	var exact, partial, semantic int
	for _, q := range qw {
		syn := synonyms(q)
		hasExact, hasPartial, hasSemantic := false, false, false
		for _, t := range tw {
			synHit := false
			for _, s := range syn {
				if overlaps(t, s) {
					synHit = true
				}
				if t == s {
					hasExact = true
				}
			}
			if t == q {
				hasExact = true
			}
			if synHit {
				hasSemantic = true
				hasPartial = true
			}
			if overlaps(t, q) {
				hasPartial = true
			}
		}
		switch {
		case hasExact:
			exact++
		case hasPartial:
			partial++
		}
		if hasSemantic {
			semantic++
		}
	}

	n := float64(len(qw))
	score := float64(exact)/n*exactShare + float64(partial)/n*partialShare + float64(semantic)/n*semanticShare

	for _, w := range longWords(expand(title)) {
		matched := false
		for _, q := range qw {
			if overlaps(w, q) {
				matched = true
				break
			}
		}
		if matched {
			score += titleBonus
			break
		}
	}
	score += min(lengthBonusCap, float64(len(tw))/lengthBonusWords)
	return clamp(score, minSimilarity, 1)
}
