package pipeline

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/ranking"
)

var reCommentsID = regexp.MustCompile(`(?i)/comments/([a-z0-9]+)`)

// Ref names the post to extract from. Exactly one field is needed; URL must
// point at the content site.
type Ref struct {
	Permalink string
	ID        string
	URL       string
}

func (r Ref) resolve() (domain.PostRef, error) {
	switch {
	case strings.TrimSpace(r.Permalink) != "":
		return domain.PostRef{Permalink: strings.TrimSpace(r.Permalink)}, nil
	case strings.TrimSpace(r.ID) != "":
		return domain.PostRef{ID: strings.TrimSpace(r.ID)}, nil
	case strings.TrimSpace(r.URL) != "":
		u := strings.TrimSpace(r.URL)
		if !strings.Contains(strings.ToLower(u), "reddit.com") {
			return domain.PostRef{}, &domain.ValidationError{Field: "url", Value: u, Reason: "must be a post URL on reddit.com"}
		}
		return domain.PostRef{Permalink: u}, nil
	}
	return domain.PostRef{}, &domain.ValidationError{Field: "permalink", Reason: "one of permalink, id or url is required"}
}

// postID is the id a ref points at, used for cache lookups.
func (r Ref) postID() string {
	if id := strings.TrimPrefix(strings.TrimSpace(r.ID), "t3_"); id != "" {
		return id
	}
	for _, s := range []string{r.Permalink, r.URL} {
		if m := reCommentsID.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

// Link is one shopping link found in a post body.
type Link struct {
	domain.ShoppingMatch
	Origin   string   `json:"source"`
	Author   string   `json:"author"`
	Score    int      `json:"score"`
	Keywords []string `json:"keywords"`
	Title    string   `json:"title"`
	Created  float64  `json:"created"`
}

type ExtractStats struct {
	TotalLinks   int `json:"totalLinks"`
	FromPost     int `json:"fromPost"`
	FromComments int `json:"fromComments"`
	WithKeywords int `json:"withKeywords"`
	Domains      int `json:"domains"`
}

type PostSummary struct {
	ID        string  `json:"id,omitempty"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	Score     int     `json:"score"`
	Created   float64 `json:"created"`
	Subreddit string  `json:"subreddit"`
}

type ExtractResponse struct {
	RequestID      string              `json:"request_id"`
	Links          []Link              `json:"links"`
	Stats          ExtractStats        `json:"stats"`
	ConvertedLinks []domain.Conversion `json:"converted_links"`
	Post           PostSummary         `json:"post"`
	Source         string              `json:"source"`
	Warning        string              `json:"warning,omitempty"`
	Details        string              `json:"details,omitempty"`
}

// Extract returns the shopping links in one post's body, keeping only links
// whose context mentions query when query is set.
//
// A missing post is domain.ErrPostNotFound and a throttled upstream is a
// rate-limited *domain.UpstreamError. Any other upstream failure is served
// from the cache or answered with an empty response and a warning.
func (s *Service) Extract(ctx context.Context, ref Ref, query string) (*ExtractResponse, error) {
	pr, err := ref.resolve()
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)

	resp := &ExtractResponse{
		RequestID:      uuid.NewString(),
		Links:          []Link{},
		ConvertedLinks: []domain.Conversion{},
		Source:         SourceLive,
	}

	post, err := s.collector.FetchPost(ctx, pr)
	if err != nil {
		var ue *domain.UpstreamError
		var ve *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrPostNotFound), errors.As(err, &ve):
			return nil, err
		case errors.As(err, &ue) && ue.RateLimited():
			return nil, err
		}

		cached, ok := s.cache.FindPost(ref.postID())
		if !ok {
			s.logger.Warn("extract degraded to empty result", "ref", pr, "err", err)
			resp.Source = SourceEmpty
			resp.Warning = WarnUnavailable
			resp.Details = err.Error()
			return resp, nil
		}
		s.logger.Info("extract served from cache", "id", cached.ID, "err", err)
		post = cached
		resp.Source = SourceCache
	}

	resp.Post = PostSummary{
		ID:        post.ID,
		Title:     post.Title,
		Author:    post.Author,
		Score:     post.Score,
		Created:   post.CreatedUTC,
		Subreddit: post.Subreddit,
	}
	if resp.Post.Subreddit == "" {
		resp.Post.Subreddit = post.Source
	}

	resp.Links = s.postLinks(post, query)
	resp.Stats = stats(resp.Links)

	at := s.now()
	for _, l := range resp.Links {
		if c, ok := s.converter.Conversion(l.ShoppingMatch, "extract", query, post.ID, at); ok {
			resp.ConvertedLinks = append(resp.ConvertedLinks, c)
		}
	}
	s.emit(resp.ConvertedLinks)
	return resp, nil
}

func (s *Service) postLinks(post domain.Post, query string) []Link {
	found := s.extractor.ExtractWithContext(ranking.BodyText(post))
	out := []Link{}
	for _, l := range found {
		m, ok := s.converter.Match(l)
		if !ok || !ranking.ContextMatches(l.Context, query) {
			continue
		}
		out = append(out, Link{
			ShoppingMatch: m,
			Origin:        "post",
			Author:        post.Author,
			Score:         post.Score,
			Keywords:      nonNil(s.tagger.Find(strings.ToLower(m.URL))),
			Title:         post.Title,
			Created:       post.CreatedUTC,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Keywords) != len(out[j].Keywords) {
			return len(out[i].Keywords) > len(out[j].Keywords)
		}
		return out[i].Score > out[j].Score
	})
	return out
}

func stats(ls []Link) ExtractStats {
	st := ExtractStats{TotalLinks: len(ls)}
	var domains []string
	for _, l := range ls {
		if l.Origin == "post" {
			st.FromPost++
		}
		if len(l.Keywords) > 0 {
			st.WithKeywords++
		}
		if !slices.Contains(domains, l.Domain) {
			domains = append(domains, l.Domain)
		}
	}
	st.Domains = len(domains)
	return st
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
