package shopping

import (
	"strings"
	"sync"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Phrases matches a fixed vocabulary against text in one pass.
// Matcher.Match keeps per-call state, so calls are serialised.
type Phrases struct {
	mu      sync.Mutex
	terms   []string
	matcher *ahocorasick.Matcher
	words   bool
}

// NewPhrases matches terms as case-insensitive substrings.
func NewPhrases(terms []string) *Phrases {
	return newPhrases(terms, false)
}

// NewWordPhrases matches terms only on whole-token boundaries, so "ts" does
// not fire inside "shorts".
func NewWordPhrases(terms []string) *Phrases {
	return newPhrases(terms, true)
}

func newPhrases(terms []string, words bool) *Phrases {
	p := &Phrases{words: words}
	seen := make(map[string]bool, len(terms))
	var keys []string
	for _, t := range terms {
		n := p.prepare(t)
		if strings.TrimSpace(n) == "" || seen[n] {
			continue
		}
		seen[n] = true
		p.terms = append(p.terms, strings.TrimSpace(n))
		keys = append(keys, n)
	}
	if len(keys) > 0 {
		p.matcher = ahocorasick.NewStringMatcher(keys)
	}
	return p
}

// prepare lower-cases s; in word mode it also collapses every run of
// separators to one space and pads both ends.
func (p *Phrases) prepare(s string) string {
	s = strings.ToLower(s)
	if !p.words {
		return s
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	if len(fields) == 0 {
		return ""
	}
	return " " + strings.Join(fields, " ") + " "
}

// Find returns the distinct terms present in text, in vocabulary order.
func (p *Phrases) Find(text string) []string {
	if p == nil || p.matcher == nil || text == "" {
		return nil
	}
	in := []byte(p.prepare(text))
	p.mu.Lock()
	hits := p.matcher.Match(in)
	p.mu.Unlock()
	if len(hits) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if h < 0 || h >= len(p.terms) || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, p.terms[h])
	}
	return out
}

// Any reports whether any term occurs in text.
func (p *Phrases) Any(text string) bool {
	return len(p.Find(text)) > 0
}

// Len is the vocabulary size.
func (p *Phrases) Len() int {
	if p == nil {
		return 0
	}
	return len(p.terms)
}

// TitleBlacklist marks threads that never carry product finds.
var TitleBlacklist = []string{
	"giveaway", "discount event", "free gifts", "mod post",
	"weekly thread", "daily thread", "bst thread", "nsfw",
}

// LinkKeywords tag extracted links by the marketplace names in their URL.
var LinkKeywords = []string{
	"weidan", "weidian", "weidan.com", "weidian.com", "weidian.shop",
	"taobao", "tmall", "1688", "alibaba", "dhgate", "aliexpress",
	"pandabuy", "wegobuy", "superbuy", "cssbuy", "ytaopal",
}

// NewTitleFilter matches TitleBlacklist as substrings of a title.
func NewTitleFilter() *Phrases { return NewPhrases(TitleBlacklist) }

// NewLinkTagger matches LinkKeywords as substrings of a URL.
func NewLinkTagger() *Phrases { return NewPhrases(LinkKeywords) }
