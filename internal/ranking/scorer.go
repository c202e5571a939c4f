// Package ranking scores posts against a query and decides which of their
// shopping links are relevant.
package ranking

import (
	"math"
	"strings"
	"time"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/links"
	"github.com/qepting91/linkfinder/internal/shopping"
)

// Boosts supplies learned multipliers. Every method returns 1 when it has
// no history.
type Boosts interface {
	QueryBoost(query string) float64
	CTRBoost(query, resultID string) float64
	QualityBoost(subreddit, author string) float64
}

type neutral struct{}

func (neutral) QueryBoost(string) float64           { return 1 }
func (neutral) CTRBoost(string, string) float64     { return 1 }
func (neutral) QualityBoost(string, string) float64 { return 1 }

// Blend of learned boosts applied to the keyword score.
const (
	queryBoostWeight   = 0.4
	ctrBoostWeight     = 0.3
	qualityBoostWeight = 0.2
	boostBaseline      = 0.1
	maxKeyword         = 10.0
)

// Rank weights.
const (
	rankScoreWeight    = 0.25
	rankCommentsWeight = 0.18
	rankRecencyWeight  = 0.25
	rankKeywordWeight  = 0.45
	imageBonus         = 0.3
	linkStep           = 0.08
	linkCap            = 0.4
	shoppingStep       = 0.15
	shoppingCap        = 0.6
	domainCap          = 0.6
	agePenalty         = -0.2
	stalePostAge       = 6 * 30 * 24 * time.Hour
)

// Quality weights.
const (
	qualityScoreWeight    = 0.18
	qualityCommentsWeight = 0.14
	qualityRecencyWeight  = 0.18
	qualityKeywordWeight  = 0.28
	qualityLinkWeight     = 0.08
	qualityShoppingWeight = 0.12
	qualityDomainWeight   = 0.12
	qualityImageWeight    = 0.08
	qualityLexicalWeight  = 0.06
)

// MinContextWord is the shortest query word the context gate checks.
const MinContextWord = 3

// Signals are the normalised inputs of the rank and quality formulas.
type Signals struct {
	ScoreNorm     float64
	CommentsNorm  float64
	Recency       float64
	Keyword       float64
	LinkBonus     float64
	ShoppingBonus float64
	DomainBonus   float64
	AgePenalty    float64
	IsImage       bool
	Lexical       float64
}

// Rank is the unbounded ordering score.
func (s Signals) Rank() float64 {
	r := rankScoreWeight*s.ScoreNorm + rankCommentsWeight*s.CommentsNorm + rankRecencyWeight*s.Recency +
		rankKeywordWeight*s.Keyword + s.LinkBonus + s.ShoppingBonus + s.DomainBonus + s.AgePenalty
	if s.IsImage {
		r += imageBonus
	}
	return r
}

// Quality is the [0,1] score used for thresholding.
func (s Signals) Quality() float64 {
	q := qualityScoreWeight*s.ScoreNorm + qualityCommentsWeight*s.CommentsNorm + qualityRecencyWeight*s.Recency +
		qualityLinkWeight*s.LinkBonus + qualityShoppingWeight*s.ShoppingBonus + qualityDomainWeight*s.DomainBonus +
		qualityLexicalWeight*s.Lexical
	if s.Keyword > 0 {
		q += qualityKeywordWeight
	}
	if s.IsImage {
		q += qualityImageWeight
	}
	return clamp(q, 0, 1)
}

// Options configures a Scorer.
type Options struct {
	Boosts     Boosts
	Converter  *shopping.Converter
	Extractor  *links.Extractor
	Vocabulary *Vocabulary
	Now        func() time.Time
}

// Scorer is a pure function of post, query and the Boosts it reads.
type Scorer struct {
	boosts    Boosts
	converter *shopping.Converter
	extractor *links.Extractor
	vocab     *Vocabulary
	now       func() time.Time
}

func NewScorer(opts Options) *Scorer {
	s := &Scorer{
		boosts:    opts.Boosts,
		converter: opts.Converter,
		extractor: opts.Extractor,
		vocab:     opts.Vocabulary,
		now:       opts.Now,
	}
	if s.boosts == nil {
		s.boosts = neutral{}
	}
	if s.converter == nil {
		s.converter = shopping.NewConverter(nil, shopping.DefaultAffiliate())
	}
	if s.extractor == nil {
		s.extractor = &links.Extractor{}
	}
	if s.vocab == nil {
		s.vocab = NewVocabulary()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ContextMatches reports whether every query word of at least
// MinContextWord bytes occurs in context. Queries without such words match
// everything.
func ContextMatches(context, query string) bool {
	c := strings.ToLower(context)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) < MinContextWord {
			continue
		}
		if !strings.Contains(c, w) {
			return false
		}
	}
	return true
}

// BodyText is the post body, falling back to the HTML rendering when the
// plain body is empty.
func BodyText(p domain.Post) string {
	if strings.TrimSpace(p.Body) != "" {
		return p.Body
	}
	return links.HTMLToText(p.BodyHTML)
}

// ShoppingLinks extracts the body's links and keeps the shopping links whose
// context mentions the query. It also returns every extracted URL.
func (s *Scorer) ShoppingLinks(p domain.Post, query string) ([]domain.ShoppingMatch, []string) {
	found := s.extractor.ExtractWithContext(BodyText(p))
	all := links.URLs(found)
	var out []domain.ShoppingMatch
	for _, l := range found {
		m, ok := s.converter.Match(l)
		if !ok || !ContextMatches(l.Context, query) {
			continue
		}
		out = append(out, m)
	}
	return out, all
}

// Score builds the RankedResult of p for query.
func (s *Scorer) Score(p domain.Post, query string) domain.RankedResult {
	body := BodyText(p)
	shop, all := s.ShoppingLinks(p, query)
	sig := s.signals(p, query, body, shop)

	if all == nil {
		all = []string{}
	}
	return domain.RankedResult{
		Post:           p,
		ExtractedLinks: all,
		ShoppingLinks:  shop,
		HasShopping:    len(shop) > 0,
		RankScore:      round4(sig.Rank()),
		QualityScore:   round4(sig.Quality()),
		Similarity:     round4(sig.Lexical),
	}
}

func (s *Scorer) signals(p domain.Post, query, body string, shop []domain.ShoppingMatch) Signals {
	age := s.now().Sub(time.Unix(int64(p.CreatedUTC), 0))
	ageHours := math.Max(1, age.Hours())

	sig := Signals{
		ScoreNorm:    math.Log10(1 + math.Max(0, float64(p.Score))),
		CommentsNorm: math.Log10(1 + math.Max(0, float64(p.CommentCount))),
		Recency:      1 / math.Log10(2+ageHours),
		IsImage:      p.IsImage,
		Lexical:      LexicalSimilarity(query, p.Title, body),
	}

	base := s.vocab.KeywordScore(query, p.Title+" "+body)
	blend := queryBoostWeight*s.boosts.QueryBoost(query) +
		ctrBoostWeight*s.boosts.CTRBoost(query, p.ID) +
		qualityBoostWeight*s.boosts.QualityBoost(p.Subreddit, p.Author) +
		boostBaseline
	sig.Keyword = clamp(base*blend, 0, maxKeyword)

	linkCount := len(s.extractor.Extract(p.Title + " " + body))
	sig.LinkBonus = math.Min(linkCap, float64(linkCount)*linkStep)

	if len(shop) > 0 {
		sig.ShoppingBonus = math.Min(shoppingCap, float64(len(shop))*shoppingStep+shoppingStep)
		var sum float64
		for _, m := range shop {
			sum += s.converter.Registry.DomainWeight(m.URL)
		}
		sig.DomainBonus = math.Min(domainCap, sum/float64(len(shop)))
	}

	if age > stalePostAge {
		sig.AgePenalty = agePenalty
	}
	return sig
}
