package ranking

import (
	"math"
	"regexp"
	"strings"

	"github.com/qepting91/linkfinder/internal/shopping"
)

var reNonWord = regexp.MustCompile(`[^\w\s]+`)

var stopWords = set(
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had",
	"her", "was", "one", "our", "out", "day", "get", "has", "him", "his",
	"how", "man", "new", "now", "old", "see", "two", "way", "who", "boy",
	"did", "its", "let", "put", "say", "she", "too", "use",
)

var genericWords = set(
	"help", "please", "thanks", "hello", "good", "bad", "nice", "cool",
	"awesome", "great",
)

// FashionTerms and BrandTerms form the default domain vocabulary.
var (
	FashionTerms = []string{
		"qc", "quality", "check", "review", "batch", "seller", "agent",
		"shipping", "size", "fit", "tts", "w2c", "find", "link", "store",
		"buy", "cop", "price",
	}
	BrandTerms = []string{
		"nike", "adidas", "jordan", "yeezy", "supreme", "balenciaga", "gucci",
		"louis", "vuitton", "dior", "prada",
	}
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// words lower-cases s, blanks punctuation and keeps tokens longer than two
// bytes that are not stop words.
func words(s string) []string {
	s = reNonWord.ReplaceAllString(strings.ToLower(s), " ")
	var out []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// Vocabulary flags text that talks about the domain.
type Vocabulary struct {
	phrases *shopping.Phrases
}

// NewVocabulary matches the default terms plus extra on token boundaries.
func NewVocabulary(extra ...string) *Vocabulary {
	terms := make([]string, 0, len(FashionTerms)+len(BrandTerms)+len(extra))
	terms = append(terms, FashionTerms...)
	terms = append(terms, BrandTerms...)
	terms = append(terms, extra...)
	return &Vocabulary{phrases: shopping.NewWordPhrases(terms)}
}

func (v *Vocabulary) mentions(tokens []string) bool {
	if v == nil || len(tokens) == 0 {
		return false
	}
	return v.phrases.Any(strings.Join(tokens, " "))
}

// Keyword score components.
const (
	exactWeight      = 0.6
	fuzzyCap         = 0.3
	fuzzyThreshold   = 0.85
	vocabularyBonus  = 0.2
	genericShare     = 0.3
	genericPenalty   = 0.3
	lengthGapCeiling = 0.7
)

// KeywordScore measures how well text answers query, in [0,1]: exact token
// overlap outweighs near-miss spellings, shared domain vocabulary adds a
// bonus and filler-heavy text is penalised.
func (v *Vocabulary) KeywordScore(query, text string) float64 {
	qw := words(query)
	tw := words(text)
	if len(qw) == 0 || len(tw) == 0 {
		return 0
	}

	inText := set(tw...)
	exact := 0
	for _, q := range qw {
		if inText[q] {
			exact++
		}
	}

	var fuzzy float64
	for _, q := range qw {
		for _, t := range tw {
			if sim := Similarity(q, t); sim > fuzzyThreshold {
				fuzzy += sim
			}
		}
	}

	bonus := 0.0
	if v.mentions(qw) && v.mentions(tw) {
		bonus = vocabularyBonus
	}

	generic := 0
	for _, t := range tw {
		if genericWords[t] {
			generic++
		}
	}
	penalty := 0.0
	if float64(generic) > float64(len(tw))*genericShare {
		penalty = genericPenalty
	}

	n := float64(len(qw))
	score := float64(exact)/n*exactWeight + math.Min(fuzzyCap, fuzzy/n) + bonus - penalty
	return clamp(score, 0, 1)
}

// Similarity is 1 minus the edit distance over the longer length. Strings
// whose lengths differ by more than 70% score 0 without computing it.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}
	longest := max(la, lb)
	if math.Abs(float64(la-lb)) > float64(longest)*lengthGapCeiling {
		return 0
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return 1 - float64(prev[lb])/float64(longest)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
