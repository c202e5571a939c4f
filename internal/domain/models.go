package domain

import (
	"context"
	"strings"
)

// Post is an immutable snapshot of one upstream submission.
type Post struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Body         string  `json:"selftext,omitempty"`
	BodyHTML     string  `json:"selftext_html,omitempty"`
	Author       string  `json:"author"`
	Subreddit    string  `json:"subreddit"`
	Source       string  `json:"source"`
	Permalink    string  `json:"permalink,omitempty"`
	URL          string  `json:"url,omitempty"`
	Preview      string  `json:"image_preview,omitempty"`
	Score        int     `json:"score"`
	CommentCount int     `json:"num_comments"`
	CreatedUTC   float64 `json:"created_utc"`
	IsSelf       bool    `json:"is_self"`
	IsImage      bool    `json:"is_image"`
}

func (p Post) IsText() bool { return p.IsSelf }

func (p Post) IsLink() bool { return !p.IsSelf }

// PermalinkURL returns the absolute link to the post on the content site.
func (p Post) PermalinkURL() string {
	if p.Permalink == "" || strings.HasPrefix(p.Permalink, "http") {
		return p.Permalink
	}
	return "https://www.reddit.com" + p.Permalink
}

// PostRef identifies a single post by id, permalink or both.
type PostRef struct {
	ID        string
	Permalink string
}

// SearchOptions are passed through to the upstream search endpoint.
type SearchOptions struct {
	Sort  string
	Time  string
	Limit int
}

// Format records which notation a link was written in.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ExtractedLink is a canonical URL found in free text.
type ExtractedLink struct {
	URL     string `json:"url"`
	Context string `json:"context,omitempty"`
	Format  Format `json:"format"`
}

// ShoppingMatch is an ExtractedLink on an allow-listed commerce domain.
// Two matches with the same CanonicalID are the same product.
type ShoppingMatch struct {
	ExtractedLink
	Domain       string `json:"domain"`
	Platform     string `json:"platform,omitempty"`
	ItemID       string `json:"id,omitempty"`
	CanonicalID  string `json:"canonical_id"`
	AffiliateURL string `json:"affiliate_url,omitempty"`
}

// RankedResult is a Post enriched with its links and scores for one query.
type RankedResult struct {
	Post
	ExtractedLinks []string        `json:"extracted_links"`
	ShoppingLinks  []ShoppingMatch `json:"shopping_links"`
	HasShopping    bool            `json:"has_shopping"`
	RankScore      float64         `json:"rank_score"`
	QualityScore   float64         `json:"quality_score"`
	Similarity     float64         `json:"ai_similarity"`
}

// Conversion is one affiliate rewrite, appended to the conversion log.
type Conversion struct {
	Origin       string `json:"origin"`
	Query        string `json:"query,omitempty"`
	PostID       string `json:"post_id"`
	SourceURL    string `json:"source_url"`
	Platform     string `json:"platform"`
	ItemID       string `json:"id"`
	AffiliateURL string `json:"affiliate_url"`
	At           int64  `json:"at"`
}

// Collector defines the interface for data fetching
type Collector interface {
	FetchNewPosts(ctx context.Context, source string, limit int) ([]Post, error)
	SearchPosts(ctx context.Context, source, query string, opts SearchOptions) ([]Post, error)
	FetchPost(ctx context.Context, ref PostRef) (Post, error)
}

// Target is a configured source and the minimum score its posts need.
type Target struct {
	Source   string
	MinScore int
}
